// Package session keeps per-conversation state: a bounded recent message
// window and durable memory facts extracted from past turns. Facts outlive a
// single run and belong to the session.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMessageWindow bounds the retained conversation window.
	DefaultMessageWindow = 20
	// DefaultFactCap bounds the number of retained memory facts.
	DefaultFactCap = 30
)

// Message is one conversational exchange half.
type Message struct {
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Fact is a durable key/value extracted from one conversational turn.
// Facts are deduplicated by key; the last write wins.
type Fact struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	SourceTurn int    `json:"source_turn"`
	Confidence string `json:"confidence"` // high, medium, low
}

// Session is the conversation aggregate.
type Session struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	Facts     []Fact    `json:"facts"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	window  int
	factCap int
}

// New creates a session with default bounds. An empty id gets a generated one.
func New(id string) *Session {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		window:    DefaultMessageWindow,
		factCap:   DefaultFactCap,
	}
}

// AddMessage appends to the window, trimming the oldest entries past the cap.
func (s *Session) AddMessage(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	window := s.window
	if window <= 0 {
		window = DefaultMessageWindow
	}
	if len(s.Messages) > window {
		s.Messages = s.Messages[len(s.Messages)-window:]
	}
	s.UpdatedAt = time.Now()
}

// RecentWindow returns up to n most recent messages in order.
func (s *Session) RecentWindow(n int) []Message {
	if n <= 0 || n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// TurnCount reports completed user/assistant turns.
func (s *Session) TurnCount() int {
	users := 0
	assistants := 0
	for _, msg := range s.Messages {
		switch msg.Role {
		case "user":
			users++
		case "assistant":
			assistants++
		}
	}
	if users < assistants {
		return users
	}
	return assistants
}

// MergeFacts folds new facts into the session by key (new value wins) and
// caps the result to the most recently updated entries.
func (s *Session) MergeFacts(facts []Fact) {
	for _, fact := range facts {
		key := strings.TrimSpace(fact.Key)
		if key == "" || strings.TrimSpace(fact.Value) == "" {
			continue
		}
		fact.Key = key

		replaced := false
		for i, existing := range s.Facts {
			if existing.Key == key {
				// Move to the tail so the cap drops the stalest keys first.
				s.Facts = append(append(s.Facts[:i:i], s.Facts[i+1:]...), fact)
				replaced = true
				break
			}
		}
		if !replaced {
			s.Facts = append(s.Facts, fact)
		}
	}

	cap := s.factCap
	if cap <= 0 {
		cap = DefaultFactCap
	}
	if len(s.Facts) > cap {
		s.Facts = s.Facts[len(s.Facts)-cap:]
	}
	s.UpdatedAt = time.Now()
}

// FactMap returns facts keyed by name.
func (s *Session) FactMap() map[string]string {
	if len(s.Facts) == 0 {
		return nil
	}
	facts := make(map[string]string, len(s.Facts))
	for _, fact := range s.Facts {
		facts[fact.Key] = fact.Value
	}
	return facts
}
