package stt

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fraudwatch/server/domain/repositories"
)

// MockSpeechToText is a canned-response implementation for development and
// tests. Calls is incremented on every invocation so tests can assert that
// the silence gate made zero provider calls.
type MockSpeechToText struct {
	logger     *zap.Logger
	Transcript string
	Err        error

	mu    sync.Mutex
	calls int
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger:     logger,
		Transcript: "Has sido seleccionado para recibir un premio, comparte tus datos bancarios",
	}
}

// TranscribeAudio returns the configured transcript or error.
func (m *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	m.logger.Info("Mock transcription",
		zap.Int("size", len(audioData)),
		zap.String("language", config.Language))

	if m.Err != nil {
		return "", m.Err
	}
	return m.Transcript, nil
}

// Calls reports how many times TranscribeAudio has been invoked.
func (m *MockSpeechToText) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
