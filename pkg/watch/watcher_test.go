package watch

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/debtmap/pkg/config"
)

func newTestWatcher(t *testing.T, root string, debounce time.Duration) *Watcher {
	t.Helper()
	w, err := NewWatcher(root, config.DefaultConfig(), debounce, WithOutput(nil))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestNewWatcher(t *testing.T) {
	tests := []struct {
		name     string
		debounce time.Duration
		want     time.Duration
	}{
		{name: "default debounce", debounce: 0, want: DefaultDebounce},
		{name: "custom debounce", debounce: time.Second, want: time.Second},
		{name: "negative debounce defaults", debounce: -time.Second, want: DefaultDebounce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWatcher(t, t.TempDir(), tt.debounce)
			if w.debounce != tt.want {
				t.Errorf("debounce = %v, want %v", w.debounce, tt.want)
			}
			if w.pending == nil {
				t.Error("pending map should be initialized")
			}
			if !filepath.IsAbs(w.Root()) {
				t.Errorf("Root() = %q, want absolute path", w.Root())
			}
		})
	}
}

func TestWatcher_handleEvent(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, time.Second)

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{name: "write to source", path: "src/a.ts", op: fsnotify.Write, want: true},
		{name: "create source", path: "b.go", op: fsnotify.Create, want: true},
		{name: "remove source", path: "c.py", op: fsnotify.Remove, want: true},
		{name: "manifest change", path: "package.json", op: fsnotify.Write, want: true},
		{name: "chmod ignored", path: "d.ts", op: fsnotify.Chmod, want: false},
		{name: "unsupported extension", path: "README.md", op: fsnotify.Write, want: false},
		{name: "excluded directory", path: "node_modules/x/index.js", op: fsnotify.Write, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.handleEvent(fsnotify.Event{Name: filepath.Join(w.Root(), tt.path), Op: tt.op})
			w.mu.Lock()
			_, got := w.pending[tt.path]
			w.mu.Unlock()
			if got != tt.want {
				t.Errorf("pending[%q] = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestWatcher_takeReady(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), 100*time.Millisecond)
	now := time.Now()

	w.pending["b.ts"] = now.Add(-time.Second)
	w.pending["a.ts"] = now.Add(-time.Second)
	w.pending["c.ts"] = now

	if got := w.takeReady(now); got != nil {
		t.Errorf("takeReady() = %v while a path is settling, want nil", got)
	}

	got := w.takeReady(now.Add(200 * time.Millisecond))
	want := []string{"a.ts", "b.ts", "c.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("takeReady() = %v, want %v", got, want)
	}
	if len(w.pending) != 0 {
		t.Errorf("pending should be empty, got %d", len(w.pending))
	}
}

func TestWatcher_processPending_NoCallback(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), time.Millisecond)
	w.pending["a.ts"] = time.Now().Add(-time.Second)
	w.processPending(context.Background())
	if len(w.pending) != 0 {
		t.Error("pending should be drained even without a callback")
	}
}

func TestWatcher_Start_Context(t *testing.T) {
	w := newTestWatcher(t, t.TempDir(), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Start() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Error("Start() did not return after context cancellation")
	}
}

func TestWatcher_Start_FileChange(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, 50*time.Millisecond)

	var mu sync.Mutex
	var bursts [][]string
	w.SetCallback(func(_ context.Context, changed []string) {
		mu.Lock()
		bursts = append(bursts, changed)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	for _, name := range []string{"a.ts", "b.ts", "notes.md"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("// TODO\n"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(bursts)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bursts) != 1 {
		t.Fatalf("callback called %d times, want 1", len(bursts))
	}
	if !reflect.DeepEqual(bursts[0], []string{"a.ts", "b.ts"}) {
		t.Errorf("changed = %v, want [a.ts b.ts]", bursts[0])
	}
}

func TestWatcher_Start_ExcludedDirectory(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"node_modules/pkg", "vendor", "src"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	w := newTestWatcher(t, root, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	for _, dir := range w.WatchedDirs() {
		base := filepath.Base(dir)
		if base == "node_modules" || base == "pkg" || base == "vendor" {
			t.Errorf("excluded directory %s should not be watched", dir)
		}
	}
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	dir := filepath.Join(w.Root(), "lib")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, d := range w.WatchedDirs() {
			if d == dir {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("new directory %s was not added to the watch list", dir)
}
