package session

import (
	"fmt"
	"testing"
)

func TestNewGeneratesID(t *testing.T) {
	sess := New("")
	if sess.ID == "" {
		t.Fatal("empty id should be replaced with a generated one")
	}
	if got := New("abc").ID; got != "abc" {
		t.Fatalf("ID = %q, want abc", got)
	}
}

func TestAddMessageTrimsWindow(t *testing.T) {
	sess := New("s1")
	for i := 0; i < DefaultMessageWindow+5; i++ {
		sess.AddMessage("user", fmt.Sprintf("msg %d", i))
	}
	if len(sess.Messages) != DefaultMessageWindow {
		t.Fatalf("window holds %d messages, want %d", len(sess.Messages), DefaultMessageWindow)
	}
	if sess.Messages[0].Content != "msg 5" {
		t.Fatalf("oldest retained message is %q, want msg 5", sess.Messages[0].Content)
	}
}

func TestRecentWindow(t *testing.T) {
	sess := New("s1")
	sess.AddMessage("user", "a")
	sess.AddMessage("assistant", "b")
	sess.AddMessage("user", "c")

	recent := sess.RecentWindow(2)
	if len(recent) != 2 || recent[0].Content != "b" || recent[1].Content != "c" {
		t.Fatalf("RecentWindow(2) = %+v", recent)
	}
	if got := sess.RecentWindow(10); len(got) != 3 {
		t.Fatalf("oversized window returned %d messages, want all 3", len(got))
	}
}

func TestTurnCount(t *testing.T) {
	sess := New("s1")
	if sess.TurnCount() != 0 {
		t.Fatalf("TurnCount = %d on empty session", sess.TurnCount())
	}
	sess.AddMessage("user", "hi")
	if sess.TurnCount() != 0 {
		t.Fatal("half a turn should not count")
	}
	sess.AddMessage("assistant", "hello")
	sess.AddMessage("user", "another")
	if sess.TurnCount() != 1 {
		t.Fatalf("TurnCount = %d, want 1", sess.TurnCount())
	}
}

func TestMergeFactsDeduplicatesByKey(t *testing.T) {
	sess := New("s1")
	sess.MergeFacts([]Fact{
		{Key: "risk_tolerance", Value: "low", Confidence: "high"},
		{Key: "favorite_ticker", Value: "AAPL", Confidence: "high"},
	})
	sess.MergeFacts([]Fact{
		{Key: "risk_tolerance", Value: "medium", Confidence: "high"},
	})

	if len(sess.Facts) != 2 {
		t.Fatalf("have %d facts, want 2", len(sess.Facts))
	}
	if got := sess.FactMap()["risk_tolerance"]; got != "medium" {
		t.Fatalf("risk_tolerance = %q, want the newer value", got)
	}
	// The refreshed key moved to the tail.
	if sess.Facts[len(sess.Facts)-1].Key != "risk_tolerance" {
		t.Fatalf("refreshed fact should be last, got %q", sess.Facts[len(sess.Facts)-1].Key)
	}
}

func TestMergeFactsCapDropsStalest(t *testing.T) {
	sess := New("s1")
	for i := 0; i < DefaultFactCap+3; i++ {
		sess.MergeFacts([]Fact{{Key: fmt.Sprintf("k%d", i), Value: "v"}})
	}
	if len(sess.Facts) != DefaultFactCap {
		t.Fatalf("have %d facts, want the cap of %d", len(sess.Facts), DefaultFactCap)
	}
	if _, ok := sess.FactMap()["k0"]; ok {
		t.Fatal("stalest fact should have been dropped")
	}
	if _, ok := sess.FactMap()[fmt.Sprintf("k%d", DefaultFactCap+2)]; !ok {
		t.Fatal("newest fact should be retained")
	}
}

func TestMergeFactsSkipsBlank(t *testing.T) {
	sess := New("s1")
	sess.MergeFacts([]Fact{
		{Key: "  ", Value: "v"},
		{Key: "k", Value: ""},
	})
	if len(sess.Facts) != 0 {
		t.Fatalf("blank facts were stored: %+v", sess.Facts)
	}
}
