// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const waitFor = 5 * time.Second

func noop(context.Context, []string) error { return nil }

// tempDir resolves symlinks so that event paths compare equal on macOS.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// collector records every changed path and signals once all wanted paths
// were seen.
type collector struct {
	mu    sync.Mutex
	seen  map[string]int
	calls int
	want  []string
	done  chan struct{}
}

func newCollector(want ...string) *collector {
	return &collector{seen: map[string]int{}, want: want, done: make(chan struct{})}
}

func (c *collector) onChange(_ context.Context, changed []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	for _, p := range changed {
		c.seen[p]++
	}
	for _, w := range c.want {
		if c.seen[w] == 0 {
			return nil
		}
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return nil
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(waitFor):
		c.mu.Lock()
		defer c.mu.Unlock()
		t.Fatalf("timed out waiting for %v, saw %v", c.want, c.seen)
	}
}

func start(t *testing.T, opts Options) {
	t.Helper()
	w, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
}

func TestOptionsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    Options
		wantErr int
	}{
		{"valid", Options{Roots: []string{"mods"}, OnChange: noop}, 0},
		{"no roots", Options{OnChange: noop}, 1},
		{"no callback", Options{Roots: []string{"mods"}}, 1},
		{"bad ignore", Options{Roots: []string{"mods"}, OnChange: noop, Ignore: []string{"[x"}}, 1},
		{"everything wrong", Options{Ignore: []string{"[x"}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.opts.Validate()
			if tt.wantErr == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var oe *InvalidOptionsError
			if !errors.As(err, &oe) || !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("Validate() error = %v, want *InvalidOptionsError", err)
			}
			if len(oe.FieldErrors) != tt.wantErr {
				t.Errorf("FieldErrors = %v, want %d", oe.FieldErrors, tt.wantErr)
			}
			if tt.name == "bad ignore" && !errors.Is(err, doublestar.ErrBadPattern) {
				t.Errorf("bad pattern not reachable: %v", err)
			}
		})
	}
}

func TestNew_NothingToWatch(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Roots: []string{filepath.Join(t.TempDir(), "missing")}, OnChange: noop})
	if !errors.Is(err, ErrNothingToWatch) {
		t.Errorf("New() error = %v, want ErrNothingToWatch", err)
	}
}

func TestRelevant(t *testing.T) {
	t.Parallel()

	mods := filepath.FromSlash("/srv/mods")
	w := &Watcher{
		roots: []root{
			{dir: mods},
			{dir: filepath.FromSlash("/opt"), file: "tool.zip"},
		},
		ignores: append(slices.Clone(defaultIgnores), "old-*"),
	}

	tests := []struct {
		path string
		want bool
	}{
		{"/srv/mods/alpha", true},
		{"/srv/mods/alpha/mod.cue", true},
		{"/srv/mods/alpha/mod.toml", true},
		{"/srv/mods/alpha/libs/inner.jar", true},
		{"/srv/mods/beta.zip", true},
		{"/srv/mods/alpha/README.md", false},
		{"/srv/mods/alpha/mod.cue.swp", false},
		{"/srv/mods/.git/index", false},
		{"/srv/mods/old-alpha/mod.cue", false},
		{"/srv/mods", false},
		{"/srv/other/mod.cue", false},
		{"/opt/tool.zip", true},
		{"/opt/other.zip", false},
	}
	for _, tt := range tests {
		if got := w.relevant(filepath.FromSlash(tt.path)); got != tt.want {
			t.Errorf("relevant(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcher_DebouncedChanges(t *testing.T) {
	t.Parallel()

	mods := tempDir(t)
	write(t, filepath.Join(mods, "alpha", "mod.cue"), `id: "alpha", version: "1.0"`)

	descriptor := filepath.Join(mods, "alpha", "mod.cue")
	archive := filepath.Join(mods, "beta.zip")
	readme := filepath.Join(mods, "alpha", "README.md")
	c := newCollector(descriptor, archive)
	start(t, Options{Roots: []string{mods}, Debounce: 100 * time.Millisecond, OnChange: c.onChange})

	write(t, readme, "docs")
	write(t, descriptor, `id: "alpha", version: "1.1"`)
	write(t, archive, "zip")
	c.wait(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[readme] != 0 {
		t.Errorf("README change should be filtered, saw %v", c.seen)
	}
}

func TestWatcher_FileRoot(t *testing.T) {
	t.Parallel()

	dir := tempDir(t)
	tool := filepath.Join(dir, "tool.zip")
	sibling := filepath.Join(dir, "other.zip")
	write(t, tool, "v1")

	c := newCollector(tool)
	start(t, Options{Roots: []string{tool}, Debounce: 50 * time.Millisecond, OnChange: c.onChange})

	write(t, sibling, "x")
	write(t, tool, "v2")
	c.wait(t)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[sibling] != 0 {
		t.Errorf("sibling of a file root should be ignored, saw %v", c.seen)
	}
}

func TestWatcher_NewModuleDirectory(t *testing.T) {
	t.Parallel()

	mods := tempDir(t)
	gamma := filepath.Join(mods, "gamma")
	nested := filepath.Join(gamma, "mod.cue")

	dirSeen := newCollector(gamma)
	fileSeen := newCollector(nested)
	start(t, Options{
		Roots:    []string{mods},
		Debounce: 50 * time.Millisecond,
		OnChange: func(ctx context.Context, changed []string) error {
			_ = dirSeen.onChange(ctx, changed)
			return fileSeen.onChange(ctx, changed)
		},
	})

	if err := os.Mkdir(gamma, 0o755); err != nil {
		t.Fatal(err)
	}
	dirSeen.wait(t)

	write(t, nested, `id: "gamma", version: "1.0"`)
	fileSeen.wait(t)
}

func TestWatcher_RunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Options{Roots: []string{t.TempDir()}, OnChange: noop})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := w.Run(ctx); err == nil {
		t.Error("second Run() should fail")
	}
}
