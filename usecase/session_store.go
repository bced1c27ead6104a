package usecase

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionStore accumulates transcript text per session id in memory.
// Entries expire after a TTL so the map cannot grow without bound; the
// background sweeper is started by the service and stopped on shutdown.
type SessionStore struct {
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*sessionEntry

	stopChan chan struct{}
}

type sessionEntry struct {
	text      string
	updatedAt time.Time
}

// NewSessionStore creates a session transcript store with the given TTL.
func NewSessionStore(ttl time.Duration, logger *zap.Logger) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		logger:   logger,
		entries:  make(map[string]*sessionEntry),
		stopChan: make(chan struct{}),
	}
}

// Append adds fresh transcript text to the session's running context.
// Sessions are created implicitly on first use.
func (s *SessionStore) Append(sessionID, text string) {
	if sessionID == "" || text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sessionID]
	if !ok {
		entry = &sessionEntry{}
		s.entries[sessionID] = entry
	}
	if entry.text == "" {
		entry.text = text
	} else {
		entry.text = strings.TrimSpace(entry.text) + " " + text
	}
	entry.updatedAt = time.Now()
}

// Text returns the accumulated transcript for a session, or "".
func (s *SessionStore) Text(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[sessionID]; ok {
		return entry.text
	}
	return ""
}

// Start begins the background eviction loop.
func (s *SessionStore) Start() {
	go s.sweepLoop()
	s.logger.Info("Session store sweeper started", zap.Duration("ttl", s.ttl))
}

// Stop gracefully stops the eviction loop.
func (s *SessionStore) Stop() {
	close(s.stopChan)
	s.logger.Info("Session store sweeper stopped")
}

func (s *SessionStore) sweepLoop() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *SessionStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted int
	for id, entry := range s.entries {
		if now.Sub(entry.updatedAt) > s.ttl {
			delete(s.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("Evicted expired sessions", zap.Int("count", evicted))
	}
}
