package narrative

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockLLM is a deterministic LLM implementation for testing.
// It returns predictable responses based on prompt content.
type MockLLM struct {
	// Response is the fixed text returned by Generate.
	// If empty, a default response is generated from the messages.
	Response string

	// Error, if set, is returned by Generate instead of a response.
	Error error

	mu           sync.Mutex
	lastMessages []Message
	calls        int
}

// NewMockLLM creates a mock LLM with the given fixed response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Response: response}
}

// NewMockLLMWithError creates a mock LLM that always returns an error.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Error: err}
}

// Generate returns the configured response or generates a deterministic one.
func (m *MockLLM) Generate(ctx context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.lastMessages = append([]Message(nil), messages...)
	m.calls++
	m.mu.Unlock()

	if m.Error != nil {
		return "", m.Error
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return generateMockResponse(messages), nil
}

// Calls returns how many times Generate was invoked.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastMessages returns the messages of the most recent call.
func (m *MockLLM) LastMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessages
}

// LastPrompt returns the user content of the most recent call.
func (m *MockLLM) LastPrompt() string {
	for _, msg := range m.LastMessages() {
		if msg.Role == RoleUser {
			return msg.Content
		}
	}
	return ""
}

// generateMockResponse summarizes how much evidence the prompt carried.
func generateMockResponse(messages []Message) string {
	var user string
	for _, msg := range messages {
		if msg.Role == RoleUser {
			user = msg.Content
		}
	}

	reviews := 0
	for _, line := range strings.Split(user, "\n") {
		if strings.HasPrefix(line, "Cluster ") && strings.Contains(line, " | ") {
			reviews++
		}
	}
	question := user
	if i := strings.LastIndex(user, "\n\n"); i >= 0 {
		question = user[i+2:]
	}

	return fmt.Sprintf("Based on %d reviews, here is what customers say about %q.", reviews, strings.TrimSpace(question))
}
