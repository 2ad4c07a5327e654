package devwatch

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherFiresOnDirectoryReplace(t *testing.T) {
	root := t.TempDir()
	served := filepath.Join(root, "public")
	if err := os.Mkdir(served, 0o755); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	w, err := New(served, discardLogger(), func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	// Simulate an atomic "build output swap": remove the old directory
	// and create a new one at the same path.
	if err := os.RemoveAll(served); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(served, 0o755); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onReplace was not called after directory swap")
	}
}

func TestWatcherIgnoresUnrelatedSiblings(t *testing.T) {
	root := t.TempDir()
	served := filepath.Join(root, "public")
	if err := os.Mkdir(served, 0o755); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	w, err := New(served, discardLogger(), func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	sibling := filepath.Join(root, "other")
	if err := os.Mkdir(sibling, 0o755); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
		t.Fatal("onReplace fired for an unrelated sibling directory")
	case <-time.After(300 * time.Millisecond):
	}
}
