package usecase

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSessionStoreAppendAndText(t *testing.T) {
	store := NewSessionStore(time.Hour, zap.NewNop())

	if got := store.Text("missing"); got != "" {
		t.Errorf("Text(missing) = %q, want empty", got)
	}

	store.Append("s1", "hola")
	store.Append("s1", "mundo")
	if got := store.Text("s1"); got != "hola mundo" {
		t.Errorf("Text = %q, want %q", got, "hola mundo")
	}

	// Empty ids and texts are ignored.
	store.Append("", "ignored")
	store.Append("s1", "")
	if got := store.Text("s1"); got != "hola mundo" {
		t.Errorf("Text = %q after no-op appends, want %q", got, "hola mundo")
	}
}

func TestSessionStoreSessionsAreIsolated(t *testing.T) {
	store := NewSessionStore(time.Hour, zap.NewNop())

	store.Append("a", "texto de a")
	store.Append("b", "texto de b")

	if got := store.Text("a"); got != "texto de a" {
		t.Errorf("Text(a) = %q", got)
	}
	if got := store.Text("b"); got != "texto de b" {
		t.Errorf("Text(b) = %q", got)
	}
}

func TestSessionStoreSweepEvictsExpired(t *testing.T) {
	store := NewSessionStore(time.Minute, zap.NewNop())

	store.Append("old", "texto viejo")
	store.sweep(time.Now().Add(2 * time.Minute))

	if got := store.Text("old"); got != "" {
		t.Errorf("Text(old) = %q after sweep, want empty", got)
	}
}

func TestSessionStoreSweepKeepsFresh(t *testing.T) {
	store := NewSessionStore(time.Hour, zap.NewNop())

	store.Append("fresh", "texto reciente")
	store.sweep(time.Now())

	if got := store.Text("fresh"); got != "texto reciente" {
		t.Errorf("Text(fresh) = %q after sweep, want the text kept", got)
	}
}
