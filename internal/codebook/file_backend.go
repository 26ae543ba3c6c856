package codebook

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

// FileBackend persists each entry as a Markdown file with YAML frontmatter
// under <dir>/<intent>/<id>.md. The frontmatter carries the structured record;
// the body is the original query text.
type FileBackend struct {
	rootDir string
}

// NewFileBackend creates the root directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if strings.HasPrefix(dir, "~/") {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, dir[2:])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create codebook dir: %w", err)
	}
	return &FileBackend{rootDir: dir}, nil
}

type planStepFrontmatter struct {
	Step        int    `yaml:"step"`
	Description string `yaml:"description"`
	Worker      string `yaml:"worker"`
	Resource    string `yaml:"resource,omitempty"`
}

type entryFrontmatter struct {
	ID               string                `yaml:"id"`
	Intent           string                `yaml:"intent"`
	Topics           []string              `yaml:"topics,omitempty"`
	Complexity       string                `yaml:"complexity"`
	Created          string                `yaml:"created"`
	TTLDays          int                   `yaml:"ttl_days"`
	UseCount         int                   `yaml:"use_count"`
	FailCount        int                   `yaml:"fail_count"`
	SupersededBy     string                `yaml:"superseded_by,omitempty"`
	CorrectionReason string                `yaml:"correction_reason,omitempty"`
	Plan             []planStepFrontmatter `yaml:"plan"`
}

// WriteEntry writes the entry file atomically (temp file + rename).
func (b *FileBackend) WriteEntry(_ context.Context, entry *Entry) error {
	intentDir := filepath.Join(b.rootDir, sanitizeDirName(entry.Intent))
	if err := os.MkdirAll(intentDir, 0o755); err != nil {
		return fmt.Errorf("ensure intent dir: %w", err)
	}

	fm := entryFrontmatter{
		ID:               entry.ID,
		Intent:           entry.Intent,
		Topics:           entry.Topics,
		Complexity:       entry.Complexity,
		Created:          entry.CreatedAt.Format(time.RFC3339),
		TTLDays:          entry.TTLDays,
		UseCount:         entry.UseCount,
		FailCount:        entry.FailCount,
		SupersededBy:     entry.SupersededBy,
		CorrectionReason: entry.CorrectionReason,
	}
	for _, step := range entry.Plan {
		fm.Plan = append(fm.Plan, planStepFrontmatter{
			Step:        step.Step,
			Description: step.Description,
			Worker:      step.Worker,
			Resource:    step.Resource,
		})
	}

	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("---\n")
	buf.Write(fmBytes)
	buf.WriteString("---\n")
	buf.WriteString(entry.Query)
	buf.WriteByte('\n')

	path := filepath.Join(intentDir, entry.ID+".md")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("write entry file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename entry file: %w", err)
	}
	return nil
}

// LoadAll reads every entry under the root. Unparseable files are skipped.
func (b *FileBackend) LoadAll(_ context.Context) ([]*Entry, error) {
	intentDirs, err := os.ReadDir(b.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read codebook dir: %w", err)
	}

	var entries []*Entry
	for _, dir := range intentDirs {
		if !dir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(b.rootDir, dir.Name()))
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
				continue
			}
			entry, err := b.parseEntryFile(filepath.Join(b.rootDir, dir.Name(), file.Name()))
			if err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (b *FileBackend) parseEntryFile(path string) (*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	var (
		inFrontmatter bool
		fmDone        bool
		fmLines       []string
		bodyLines     []string
	)

	for scanner.Scan() {
		line := scanner.Text()
		if !fmDone && strings.TrimSpace(line) == "---" {
			if !inFrontmatter {
				inFrontmatter = true
				continue
			}
			inFrontmatter = false
			fmDone = true
			continue
		}
		if inFrontmatter {
			fmLines = append(fmLines, line)
		} else if fmDone {
			bodyLines = append(bodyLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var fm entryFrontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(fmLines, "\n")), &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if fm.ID == "" {
		return nil, fmt.Errorf("entry without id: %s", path)
	}

	createdAt, _ := time.Parse(time.RFC3339, fm.Created)

	entry := &Entry{
		ID:               fm.ID,
		Query:            strings.TrimSpace(strings.Join(bodyLines, "\n")),
		Intent:           fm.Intent,
		Topics:           fm.Topics,
		Complexity:       fm.Complexity,
		CreatedAt:        createdAt,
		TTLDays:          fm.TTLDays,
		UseCount:         fm.UseCount,
		FailCount:        fm.FailCount,
		SupersededBy:     fm.SupersededBy,
		CorrectionReason: fm.CorrectionReason,
	}
	for _, step := range fm.Plan {
		entry.Plan = append(entry.Plan, &types.SubTask{
			Step:        step.Step,
			Description: step.Description,
			Worker:      step.Worker,
			Resource:    step.Resource,
			Status:      types.TaskPending,
		})
	}
	return entry, nil
}

func sanitizeDirName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
