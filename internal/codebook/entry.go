// Package codebook is the learned-experience store: a cache of past
// query→plan precedents used to skip re-planning for similar queries.
package codebook

import (
	"strings"
	"time"

	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

// unreliableFailRatio marks an entry unreliable once its observed fail ratio
// crosses this bound with at least minUseForReliability uses.
const (
	unreliableFailRatio  = 0.5
	minUseForReliability = 3
)

// Entry is one learned precedent. The store owns entries exclusively; callers
// only read them and feed outcomes back through the store API.
type Entry struct {
	ID               string           `json:"id"`
	Query            string           `json:"query"`
	Intent           string           `json:"intent"`
	Topics           []string         `json:"topics"`
	Plan             []*types.SubTask `json:"plan"`
	Complexity       string           `json:"complexity"`
	CreatedAt        time.Time        `json:"created_at"`
	TTLDays          int              `json:"ttl_days"`
	UseCount         int              `json:"use_count"`
	FailCount        int              `json:"fail_count"`
	SupersededBy     string           `json:"superseded_by,omitempty"`
	CorrectionReason string           `json:"correction_reason,omitempty"`
}

// Expired reports whether the entry's age exceeds its TTL. A zero or negative
// TTL means the entry was force-expired.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTLDays <= 0 {
		return true
	}
	return now.Sub(e.CreatedAt) > time.Duration(e.TTLDays)*24*time.Hour
}

// Unreliable reports whether feedback marks this entry as not worth reusing.
func (e *Entry) Unreliable() bool {
	if e.UseCount < minUseForReliability {
		return false
	}
	return float64(e.FailCount)/float64(e.UseCount) > unreliableFailRatio
}

// usable combines the three lookup exclusions: expiry, reliability, and a
// superseding pointer.
func (e *Entry) usable(now time.Time) bool {
	return !e.Expired(now) && !e.Unreliable() && e.SupersededBy == ""
}

// InstantiatePlan returns fresh pending copies of the stored plan steps.
func (e *Entry) InstantiatePlan() []*types.SubTask {
	plan := make([]*types.SubTask, 0, len(e.Plan))
	for _, step := range e.Plan {
		plan = append(plan, step.CloneStripped())
	}
	return plan
}

// Record is the writable projection of a finished run.
type Record struct {
	Query      string
	Intent     string
	Topics     []string
	Complexity string
	Plan       []*types.SubTask
}

func normalizeIntent(intent string) string {
	return strings.ToLower(strings.TrimSpace(intent))
}

func normalizeTopics(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	out := make([]string, 0, len(topics))
	for _, topic := range topics {
		trimmed := strings.ToLower(strings.TrimSpace(topic))
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		out = append(out, trimmed)
	}
	return out
}

// topicsOverlap implements Layer-2 matching: an empty tag set on either side
// is a wildcard match, not a rejection.
func topicsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	set := make(map[string]bool, len(a))
	for _, topic := range a {
		set[topic] = true
	}
	for _, topic := range b {
		if set[topic] {
			return true
		}
	}
	return false
}
