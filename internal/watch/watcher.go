// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs module resolution when the mods directory or an
// include path changes.
//
// Events are filtered to the files that can change discovery (descriptors,
// archives and top-level entries) and debounced so that a burst, such as
// unpacking a module, triggers one callback with every changed path.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/modsolve/modsolve/pkg/descriptor"
)

// DefaultDebounce is the quiet period used when Options.Debounce is unset.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrInvalidOptions is the sentinel error wrapped by InvalidOptionsError.
	ErrInvalidOptions = errors.New("invalid watch options")
	// ErrNothingToWatch is returned when no root exists.
	ErrNothingToWatch = errors.New("no watchable path")

	// defaultIgnores are always excluded: VCS metadata and editor or OS
	// noise.
	defaultIgnores = []string{
		"**/.git/**",
		"**/*.swp",
		"**/*.swo",
		"**/*~",
		"**/.DS_Store",
		"**/*.tmp",
	}

	// modulePatterns select the paths whose change can alter discovery.
	modulePatterns = []string{
		"*",
		"**/" + descriptor.FileCUE,
		"**/" + descriptor.FileJSON,
		"**/" + descriptor.FileTOML,
		"**/*.zip",
		"**/*.jar",
	}
)

type (
	// Options holds the parameters for a Watcher.
	Options struct {
		// Roots are the mods directory and include paths. A root that is a
		// file, such as an archive, is watched through its parent directory.
		Roots []string
		// Ignore are doublestar globs, relative to their root, merged with
		// the default ignores.
		Ignore []string
		// Debounce of zero or less means DefaultDebounce.
		Debounce time.Duration
		// OnChange receives the absolute changed paths. It never runs
		// concurrently with itself.
		OnChange func(ctx context.Context, changed []string) error
		Logger   *log.Logger
	}

	// InvalidOptionsError collects the problems of an Options value.
	InvalidOptionsError struct {
		FieldErrors []error
	}

	root struct {
		dir  string
		file string // base name when the root is a single file
	}

	// Watcher monitors module roots. Run must be called exactly once.
	Watcher struct {
		opts     Options
		fsw      *fsnotify.Watcher
		roots    []root
		ignores  []string
		debounce time.Duration
		logger   *log.Logger
		started  atomic.Bool
	}
)

func (e *InvalidOptionsError) Error() string {
	return fmt.Sprintf("invalid watch options: %v", errors.Join(e.FieldErrors...))
}

func (e *InvalidOptionsError) Unwrap() []error {
	return append([]error{ErrInvalidOptions}, e.FieldErrors...)
}

// Validate reports every invalid field at once.
func (o Options) Validate() error {
	var errs []error
	if len(o.Roots) == 0 {
		errs = append(errs, errors.New("at least one root is required"))
	}
	if o.OnChange == nil {
		errs = append(errs, errors.New("OnChange callback is required"))
	}
	for _, pat := range o.Ignore {
		if !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("ignore pattern %q: %w", pat, doublestar.ErrBadPattern))
		}
	}
	if len(errs) > 0 {
		return &InvalidOptionsError{FieldErrors: errs}
	}
	return nil
}

// New validates opts and registers every existing root. Missing roots are
// skipped with a warning; ErrNothingToWatch is returned when none remain.
func New(opts Options) (*Watcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		opts:     opts,
		fsw:      fsw,
		ignores:  append(slices.Clone(defaultIgnores), opts.Ignore...),
		debounce: debounce,
		logger:   logger,
	}
	if err := w.addRoots(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			logger.Warn("close watcher after init failure", "error", closeErr)
		}
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRoots() error {
	for _, p := range w.opts.Roots {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("watch: resolve %q: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			w.logger.Warn("not watching missing path", "location", abs)
			continue
		}
		if !info.IsDir() {
			if err := w.fsw.Add(filepath.Dir(abs)); err != nil {
				return fmt.Errorf("watch: add %q: %w", filepath.Dir(abs), err)
			}
			w.roots = append(w.roots, root{dir: filepath.Dir(abs), file: filepath.Base(abs)})
			continue
		}
		if err := w.addTree(abs); err != nil {
			return err
		}
		w.roots = append(w.roots, root{dir: abs})
	}
	if len(w.roots) == 0 {
		return ErrNothingToWatch
	}
	return nil
}

// addTree registers dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("not watching inaccessible path", "location", path, "error", walkErr)
			return nil //nolint:nilerr // inaccessible paths are skipped
		}
		if !d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(dir, path); err == nil && rel != "." && w.isIgnored(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %q: %w", dir, err)
	}
	return nil
}

// relevant reports whether an event on path can change discovery.
func (w *Watcher) relevant(path string) bool {
	for _, r := range w.roots {
		if r.file != "" {
			if filepath.Dir(path) == r.dir && filepath.Base(path) == r.file {
				return true
			}
			continue
		}
		rel, err := filepath.Rel(r.dir, path)
		if err != nil || rel == "." || !filepath.IsLocal(rel) {
			continue
		}
		if w.isIgnored(rel) {
			return false
		}
		return matchAny(modulePatterns, rel)
	}
	return false
}

// isIgnored matches rel and each of its parent directories.
func (w *Watcher) isIgnored(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		if matchAny(w.ignores, prefix) || matchAny(w.ignores, prefix+"/") {
			return true
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// Run blocks until ctx is canceled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when the watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may run after ctx is canceled since it is scheduled by
	// time.AfterFunc. A run still in progress defers the batch by one
	// debounce period instead of dropping it.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("previous run still in progress, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		clear(pending)
		mu.Unlock()

		slices.Sort(changed)
		w.logger.Info("module sources changed", "paths", len(changed))
		if err := w.opts.OnChange(ctx, changed); err != nil {
			w.logger.Warn("re-run failed", "error", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.relevant(evt.Name) {
				continue
			}
			w.logger.Debug("change", "location", evt.Name, "op", evt.Op.String())

			mu.Lock()
			pending[evt.Name] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// maybeAddDir extends the watch to a directory created inside a root.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	for _, r := range w.roots {
		if r.file != "" {
			continue
		}
		rel, err := filepath.Rel(r.dir, path)
		if err != nil || !filepath.IsLocal(rel) || w.isIgnored(rel) {
			continue
		}
		if err := w.addTree(path); err != nil {
			w.logger.Warn("watch new directory", "location", path, "error", err)
		}
		return
	}
}
