package scratch

import (
	"os"
	"testing"

	"go.uber.org/zap"
)

func TestPutWritesUniqueFiles(t *testing.T) {
	store, err := NewStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	pathA, cleanupA, err := store.Put("stream_16k", []byte("aaa"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	defer cleanupA()

	pathB, cleanupB, err := store.Put("stream_16k", []byte("bbb"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	defer cleanupB()

	if pathA == pathB {
		t.Error("two Puts with the same prefix must not share a filename")
	}

	data, err := os.ReadFile(pathA)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "aaa" {
		t.Errorf("file contents = %q, want %q", data, "aaa")
	}
}

func TestCleanupRemovesFile(t *testing.T) {
	store, err := NewStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	path, cleanup, err := store.Put("stream_16k", []byte("data"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cleanup should remove the scratch file")
	}

	// Double cleanup must be harmless.
	cleanup()
}
