package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/aaaa47080/stock-agent-sub002/internal/hitl"
	"github.com/aaaa47080/stock-agent-sub002/pkg/types"
)

func suspendedState() *State {
	return &State{
		SessionID:    "ckpt-1",
		Query:        "full analysis of AAPL",
		WorkingQuery: "full analysis of AAPL",
		Node:         NodeConfirmDecision,
		Pending:      &hitl.Question{Type: hitl.QuestionConfirmPlan, Question: "Proceed?"},
		Complexity:   ComplexityComplex,
		Intent:       "analysis",
		Topics:       []string{"aapl"},
		Tasks: []*types.SubTask{
			{Step: 1, Description: "technical pass", Worker: "technical", Status: types.TaskPending},
			{Step: 2, Description: "news pass", Worker: "news", Status: types.TaskPending},
		},
		TaskAnswers: map[int][]string{0: {"30d"}},
		ExecIndex:   0,
	}
}

func TestFileCheckpointStoreRoundTrip(t *testing.T) {
	store, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCheckpointStore: %v", err)
	}
	ctx := context.Background()

	want := suspendedState()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "ckpt-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Node != NodeConfirmDecision || got.Complexity != ComplexityComplex {
		t.Fatalf("loaded state %+v", got)
	}
	if len(got.Tasks) != 2 || got.Tasks[1].Worker != "news" {
		t.Fatalf("tasks did not survive: %+v", got.Tasks)
	}
	if got.Pending == nil || got.Pending.Type != hitl.QuestionConfirmPlan {
		t.Fatalf("pending question did not survive: %+v", got.Pending)
	}
	if len(got.TaskAnswers[0]) != 1 || got.TaskAnswers[0][0] != "30d" {
		t.Fatalf("task answers did not survive: %+v", got.TaskAnswers)
	}
}

func TestFileCheckpointStoreMissingAndDelete(t *testing.T) {
	store, err := NewFileCheckpointStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCheckpointStore: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Load(ctx, "nope"); !errors.Is(err, ErrCheckpointNotFound) {
		t.Fatalf("Load error = %v, want ErrCheckpointNotFound", err)
	}
	if err := store.Delete(ctx, "nope"); err != nil {
		t.Fatalf("Delete of a missing checkpoint should be a no-op, got %v", err)
	}

	if err := store.Save(ctx, suspendedState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, "ckpt-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "ckpt-1"); !errors.Is(err, ErrCheckpointNotFound) {
		t.Fatalf("Load after delete = %v, want ErrCheckpointNotFound", err)
	}
}

func TestCheckpointRejectsEmptySessionID(t *testing.T) {
	store := NewMemoryCheckpointStore()
	if err := store.Save(context.Background(), &State{}); err == nil {
		t.Fatal("expected an error for a state without a session id")
	}
}
