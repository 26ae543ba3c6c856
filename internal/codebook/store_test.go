package codebook

import (
	"context"
	"testing"
	"time"

	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

func testPlan() []*types.SubTask {
	return []*types.SubTask{
		{Step: 1, Description: "fetch daily candles", Worker: "market-data"},
		{Step: 2, Description: "compute indicators", Worker: "technical"},
	}
}

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	store, err := New(context.Background(), nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestFindMatchExactQuery(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	id, err := store.Save(ctx, Record{
		Query:      "analyze AAPL technicals",
		Intent:     "technical",
		Topics:     []string{"aapl"},
		Complexity: "complex",
		Plan:       testPlan(),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	entry, ok := store.FindMatch("analyze AAPL technicals", "technical", []string{"aapl"})
	if !ok {
		t.Fatal("expected a match for the identical query")
	}
	if entry.ID != id {
		t.Fatalf("matched entry %s, want %s", entry.ID, id)
	}
	if len(entry.Plan) != 2 || entry.Plan[0].Worker != "market-data" {
		t.Fatalf("unexpected plan: %+v", entry.Plan)
	}
}

func TestFindMatchNormalizesCaseAndWhitespace(t *testing.T) {
	store := newTestStore(t, Options{})
	if _, err := store.Save(context.Background(), Record{
		Query:  "Analyze  AAPL   Technicals",
		Intent: "Technical",
		Plan:   testPlan(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, ok := store.FindMatch("analyze aapl technicals", "technical", nil); !ok {
		t.Fatal("case and whitespace differences should not break the match")
	}
}

func TestFindMatchIntentMismatch(t *testing.T) {
	store := newTestStore(t, Options{})
	if _, err := store.Save(context.Background(), Record{
		Query:  "what happened to TSLA today",
		Intent: "news",
		Plan:   testPlan(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, ok := store.FindMatch("what happened to TSLA today", "technical", nil); ok {
		t.Fatal("different intent must never match")
	}
}

func TestFindMatchTopicWildcard(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	if _, err := store.Save(ctx, Record{
		Query:  "compare sector performance",
		Intent: "analysis",
		Topics: []string{"tech", "energy"},
		Plan:   testPlan(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Empty lookup topics act as a wildcard.
	if _, ok := store.FindMatch("compare sector performance", "analysis", nil); !ok {
		t.Fatal("empty lookup topics should wildcard-match")
	}
	// Overlap of one topic suffices.
	if _, ok := store.FindMatch("compare sector performance", "analysis", []string{"energy", "crypto"}); !ok {
		t.Fatal("single-topic overlap should match")
	}
	// Disjoint topic sets do not.
	if _, ok := store.FindMatch("compare sector performance", "analysis", []string{"crypto"}); ok {
		t.Fatal("disjoint topics must not match")
	}
}

func TestFindMatchThresholdBoundary(t *testing.T) {
	// "abcd" vs "abcf": 3 common runes of 8 total, ratio exactly 0.75.
	store := newTestStore(t, Options{MatchThreshold: 0.75})
	if _, err := store.Save(context.Background(), Record{
		Query:  "abcd",
		Intent: "analysis",
		Plan:   testPlan(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, ok := store.FindMatch("abcf", "analysis", nil); !ok {
		t.Fatal("similarity exactly at the threshold should match")
	}

	strict := newTestStore(t, Options{MatchThreshold: 0.76})
	if _, err := strict.Save(context.Background(), Record{
		Query:  "abcd",
		Intent: "analysis",
		Plan:   testPlan(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := strict.FindMatch("abcf", "analysis", nil); ok {
		t.Fatal("similarity below the threshold must not match")
	}
}

func TestExpiredEntriesAreSkipped(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newTestStore(t, Options{Clock: func() time.Time { return now }})

	// "news" carries a one-day TTL.
	if _, err := store.Save(context.Background(), Record{
		Query:  "latest NVDA headlines",
		Intent: "news",
		Plan:   testPlan(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, ok := store.FindMatch("latest NVDA headlines", "news", nil); !ok {
		t.Fatal("fresh entry should match")
	}

	now = now.Add(48 * time.Hour)
	if _, ok := store.FindMatch("latest NVDA headlines", "news", nil); ok {
		t.Fatal("expired entry must be skipped")
	}
	if got := store.TopK("latest NVDA headlines", "news", nil, 3); len(got) != 0 {
		t.Fatalf("TopK returned %d expired entries", len(got))
	}
}

func TestUnreliableEntryForceExpires(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	id, err := store.Save(ctx, Record{
		Query:  "evaluate my portfolio",
		Intent: "analysis",
		Plan:   testPlan(),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Two uses, one failure: ratio 0.5 is not over the bound, still usable.
	if err := store.RecordFeedback(ctx, id, true, ""); err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if err := store.RecordFeedback(ctx, id, false, "missed risk metrics"); err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if _, ok := store.FindMatch("evaluate my portfolio", "analysis", nil); !ok {
		t.Fatal("entry at exactly the fail ratio bound should still match")
	}

	// Third use fails: 2/3 > 0.5 with >=3 uses, TTL forced to zero.
	if err := store.RecordFeedback(ctx, id, false, "still wrong"); err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if _, ok := store.FindMatch("evaluate my portfolio", "analysis", nil); ok {
		t.Fatal("unreliable entry must be skipped")
	}
	entry, _ := store.Get(id)
	if entry.TTLDays != 0 {
		t.Fatalf("TTLDays = %d, want 0 after unreliability", entry.TTLDays)
	}
}

func TestRecordFeedbackUnknownEntry(t *testing.T) {
	store := newTestStore(t, Options{})
	if err := store.RecordFeedback(context.Background(), "missing", true, ""); err == nil {
		t.Fatal("expected an error for an unknown entry id")
	}
}

func TestSaveCorrectionSupersedes(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	oldID, err := store.Save(ctx, Record{
		Query:  "full analysis of MSFT",
		Intent: "analysis",
		Plan:   testPlan(),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	newPlan := append(testPlan(), &types.SubTask{Step: 3, Description: "summarize news", Worker: "news"})
	newID, err := store.SaveCorrection(ctx, oldID, Record{
		Query:  "full analysis of MSFT",
		Intent: "analysis",
		Plan:   newPlan,
	}, "third step was missing")
	if err != nil {
		t.Fatalf("SaveCorrection: %v", err)
	}

	old, _ := store.Get(oldID)
	if old.SupersededBy != newID {
		t.Fatalf("SupersededBy = %q, want %q", old.SupersededBy, newID)
	}
	if old.TTLDays != 0 {
		t.Fatalf("retired entry TTLDays = %d, want 0", old.TTLDays)
	}

	match, ok := store.FindMatch("full analysis of MSFT", "analysis", nil)
	if !ok {
		t.Fatal("replacement entry should match")
	}
	if match.ID != newID {
		t.Fatalf("matched %s, want replacement %s", match.ID, newID)
	}
	if len(match.Plan) != 3 {
		t.Fatalf("replacement plan has %d steps, want 3", len(match.Plan))
	}
	if match.CorrectionReason != "third step was missing" {
		t.Fatalf("CorrectionReason = %q", match.CorrectionReason)
	}
}

func TestSaveCorrectionUnknownOriginal(t *testing.T) {
	store := newTestStore(t, Options{})
	if _, err := store.SaveCorrection(context.Background(), "missing", Record{
		Query:  "q",
		Intent: "analysis",
		Plan:   testPlan(),
	}, ""); err == nil {
		t.Fatal("expected an error for an unknown original id")
	}
}

func TestTopKOrdering(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	queries := []string{
		"analyze AAPL momentum indicators",
		"analyze AAPL momentum",
		"completely different request about bonds",
	}
	for _, q := range queries {
		if _, err := store.Save(ctx, Record{Query: q, Intent: "technical", Plan: testPlan()}); err != nil {
			t.Fatalf("Save(%q): %v", q, err)
		}
	}

	got := store.TopK("analyze AAPL momentum indicators", "technical", nil, 3)
	if len(got) < 2 {
		t.Fatalf("TopK returned %d entries, want at least 2", len(got))
	}
	if got[0].Query != "analyze AAPL momentum indicators" {
		t.Fatalf("best match is %q, want the identical query first", got[0].Query)
	}
	for _, entry := range got {
		if entry.Query == "completely different request about bonds" {
			t.Fatal("unrelated query should fall below the retrieval threshold")
		}
	}
}

func TestMatchReturnsCopies(t *testing.T) {
	store := newTestStore(t, Options{})
	id, err := store.Save(context.Background(), Record{
		Query:  "inspect copies",
		Intent: "analysis",
		Plan:   testPlan(),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	match, _ := store.FindMatch("inspect copies", "analysis", nil)
	match.Plan[0].Status = types.TaskCompleted
	match.Topics = append(match.Topics, "mutated")

	fresh, _ := store.Get(id)
	if fresh.Plan[0].Status == types.TaskCompleted {
		t.Fatal("mutating a match leaked into the store")
	}
}

func TestSaveValidation(t *testing.T) {
	store := newTestStore(t, Options{})
	if _, err := store.Save(context.Background(), Record{Intent: "analysis", Plan: testPlan()}); err == nil {
		t.Fatal("expected an error for an empty query")
	}
	if _, err := store.Save(context.Background(), Record{Query: "q", Intent: "analysis"}); err == nil {
		t.Fatal("expected an error for an empty plan")
	}
}
