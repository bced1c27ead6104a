package llm

import (
	"context"
	"sync"
)

// MockClassifier is a canned-response classifier for development and
// tests. Calls is tracked so orchestrator tests can assert exactly how
// many provider calls were made.
type MockClassifier struct {
	Response string
	Err      error

	mu    sync.Mutex
	calls int
}

// NewMockClassifier returns a classifier that always reports a high-risk
// scam in the compliant JSON shape.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{
		Response: `{"diagnostico": "Estafa", "explicacion": "El mensaje solicita datos bancarios a cambio de un premio inexistente.", "riesgo": 90}`,
	}
}

// Classify returns the configured response or error.
func (m *MockClassifier) Classify(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Calls reports how many times Classify has been invoked.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
