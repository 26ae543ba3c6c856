package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient implements Client for testing. Responses are either scripted in
// order or produced by Fn when set. All requests are recorded.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Fn        func(req CompletionRequest) (string, error)
	Requests  []CompletionRequest
	pos       int
}

// NewMockClient returns a mock that replays the given responses in order,
// repeating the last one when exhausted.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{Responses: responses}
}

func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if m.Fn != nil {
		content, err := m.Fn(req)
		if err != nil {
			return nil, err
		}
		return mockResponse(content), nil
	}

	if m.Err != nil {
		return nil, m.Err
	}

	if len(m.Responses) == 0 {
		return nil, fmt.Errorf("mock has no responses")
	}

	idx := m.pos
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.pos++
	}
	return mockResponse(m.Responses[idx]), nil
}

func (m *MockClient) Model() string {
	return "mock"
}

// CallCount reports how many completions were requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func mockResponse(content string) *CompletionResponse {
	return &CompletionResponse{
		Content:    content,
		StopReason: "stop",
		Usage:      TokenUsage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}
}
