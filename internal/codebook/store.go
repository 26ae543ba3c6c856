package codebook

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aaaa47080/stock-agent-sub002/internal/logging"
)

const (
	// DefaultMatchThreshold is the Layer-3 similarity bound for flat lookup.
	DefaultMatchThreshold = 0.85
	// DefaultTopKThreshold is the looser bound used by top-k retrieval.
	DefaultTopKThreshold = 0.60
)

// Backend persists entries. The in-memory index inside Store is the source of
// truth for lookups; the backend only has to survive restarts.
type Backend interface {
	LoadAll(ctx context.Context) ([]*Entry, error)
	WriteEntry(ctx context.Context, entry *Entry) error
}

// Options configures a Store.
type Options struct {
	Retention      RetentionPolicy
	MatchThreshold float64
	TopKThreshold  float64
	Logger         *logging.Logger
	Clock          func() time.Time
}

// Store is the learned-experience store. All index mutations happen under one
// lock so a concurrent lookup always observes a consistent index.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	backend Backend
	scorer  *similarityScorer

	retention      RetentionPolicy
	matchThreshold float64
	topKThreshold  float64
	logger         *logging.Logger
	clock          func() time.Time
}

// New builds a store, loading any persisted entries from the backend. A nil
// backend yields a memory-only store.
func New(ctx context.Context, backend Backend, opts Options) (*Store, error) {
	if opts.Retention.DefaultTTLDays == 0 && opts.Retention.IntentTTLDays == nil {
		opts.Retention = DefaultRetentionPolicy()
	}
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = DefaultMatchThreshold
	}
	if opts.TopKThreshold <= 0 {
		opts.TopKThreshold = DefaultTopKThreshold
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Store{
		entries:        make(map[string]*Entry),
		backend:        backend,
		scorer:         newSimilarityScorer(),
		retention:      opts.Retention,
		matchThreshold: opts.MatchThreshold,
		topKThreshold:  opts.TopKThreshold,
		logger:         logging.OrNop(opts.Logger).WithComponent("codebook"),
		clock:          opts.Clock,
	}

	if backend != nil {
		loaded, err := backend.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load codebook: %w", err)
		}
		for _, entry := range loaded {
			s.entries[entry.ID] = entry
		}
		s.logger.Info("codebook loaded", "entries", len(loaded))
	}

	return s, nil
}

// Len reports the number of indexed entries, including unusable ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// FindMatch runs the three-layer lookup: exact intent, topic overlap, then
// best similarity at or above the flat threshold. Expired, unreliable, and
// superseded entries never match.
func (s *Store) FindMatch(query, intent string, topics []string) (*Entry, bool) {
	matches := s.match(query, intent, topics, 1, s.matchThreshold)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

// TopK returns up to k candidates above the looser retrieval threshold,
// best first.
func (s *Store) TopK(query, intent string, topics []string, k int) []*Entry {
	if k <= 0 {
		k = 3
	}
	return s.match(query, intent, topics, k, s.topKThreshold)
}

func (s *Store) match(query, intent string, topics []string, limit int, threshold float64) []*Entry {
	intent = normalizeIntent(intent)
	topics = normalizeTopics(topics)
	now := s.clock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		entry *Entry
		score float64
	}
	var candidates []scored

	for _, entry := range s.entries {
		if !entry.usable(now) {
			continue
		}
		if entry.Intent != intent {
			continue
		}
		if !topicsOverlap(entry.Topics, topics) {
			continue
		}
		score := s.scorer.Score(query, entry.Query)
		if score < threshold {
			continue
		}
		candidates = append(candidates, scored{entry: entry, score: score})
	}

	if len(candidates) == 0 {
		return nil
	}

	// Highest score first; ties broken by recency so repeated saves of the
	// same query prefer the newest precedent.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0; j-- {
			a, b := candidates[j-1], candidates[j]
			if b.score > a.score || (b.score == a.score && b.entry.CreatedAt.After(a.entry.CreatedAt)) {
				candidates[j-1], candidates[j] = b, a
			} else {
				break
			}
		}
	}

	if limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]*Entry, 0, limit)
	for _, c := range candidates[:limit] {
		out = append(out, cloneEntry(c.entry))
	}
	return out
}

// Save creates a new entry from a finished run and returns its id. TTL is
// intent-dependent.
func (s *Store) Save(ctx context.Context, rec Record) (string, error) {
	entry, err := s.buildEntry(rec, "")
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.entries[entry.ID] = entry
	s.mu.Unlock()

	if err := s.persist(ctx, entry); err != nil {
		return entry.ID, err
	}
	s.logger.Debug("entry saved", "id", entry.ID, "intent", entry.Intent, "ttl_days", entry.TTLDays)
	return entry.ID, nil
}

// RecordFeedback updates an entry's use/fail counters. An entry that crosses
// the unreliable threshold has its TTL forced to zero so the next lookup
// skips it. Concurrent feedback against the same entry is last-write-wins.
func (s *Store) RecordFeedback(ctx context.Context, entryID string, satisfied bool, reason string) error {
	s.mu.Lock()
	entry, ok := s.entries[entryID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("entry not found: %s", entryID)
	}
	entry.UseCount++
	if !satisfied {
		entry.FailCount++
	}
	if entry.Unreliable() {
		entry.TTLDays = 0
		s.logger.Info("entry marked unreliable", "id", entryID, "use", entry.UseCount, "fail", entry.FailCount)
	}
	snapshot := cloneEntry(entry)
	s.mu.Unlock()

	if !satisfied && reason != "" {
		s.logger.Debug("negative feedback", "id", entryID, "reason", reason)
	}
	return s.persist(ctx, snapshot)
}

// SaveCorrection retires the original entry (TTL zero, superseding pointer)
// and writes a fresh entry carrying the correction reason. Both index updates
// happen under one lock so a concurrent lookup never sees a half-applied
// correction.
func (s *Store) SaveCorrection(ctx context.Context, originalID string, rec Record, reason string) (string, error) {
	replacement, err := s.buildEntry(rec, reason)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	original, ok := s.entries[originalID]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("entry not found: %s", originalID)
	}
	original.TTLDays = 0
	original.SupersededBy = replacement.ID
	s.entries[replacement.ID] = replacement
	retired := cloneEntry(original)
	s.mu.Unlock()

	if err := s.persist(ctx, retired); err != nil {
		return replacement.ID, err
	}
	if err := s.persist(ctx, replacement); err != nil {
		return replacement.ID, err
	}
	s.logger.Info("correction saved", "retired", originalID, "replacement", replacement.ID)
	return replacement.ID, nil
}

// Get returns a copy of the entry, including unusable ones. Mostly for
// inspection and tests.
func (s *Store) Get(entryID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, false
	}
	return cloneEntry(entry), true
}

func (s *Store) buildEntry(rec Record, correctionReason string) (*Entry, error) {
	if strings.TrimSpace(rec.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if len(rec.Plan) == 0 {
		return nil, fmt.Errorf("plan is required")
	}

	intent := normalizeIntent(rec.Intent)
	if intent == "" {
		intent = "chat"
	}

	entry := &Entry{
		ID:               uuid.NewString(),
		Query:            strings.TrimSpace(rec.Query),
		Intent:           intent,
		Topics:           normalizeTopics(rec.Topics),
		Complexity:       rec.Complexity,
		CreatedAt:        s.clock(),
		TTLDays:          s.retention.TTLDays(intent),
		CorrectionReason: correctionReason,
	}
	for _, step := range rec.Plan {
		entry.Plan = append(entry.Plan, step.CloneStripped())
	}
	return entry, nil
}

func (s *Store) persist(ctx context.Context, entry *Entry) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.WriteEntry(ctx, entry); err != nil {
		return fmt.Errorf("persist entry %s: %w", entry.ID, err)
	}
	return nil
}

func cloneEntry(entry *Entry) *Entry {
	clone := *entry
	clone.Topics = append([]string(nil), entry.Topics...)
	clone.Plan = entry.InstantiatePlan()
	return &clone
}
