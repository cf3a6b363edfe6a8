// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/modsolve/modsolve/pkg/descriptor"
	"github.com/modsolve/modsolve/pkg/modgraph"
	"github.com/modsolve/modsolve/pkg/version"
)

const (
	// DefaultMaxNestingDepth bounds how deep nested modules are followed.
	DefaultMaxNestingDepth = 3
	// MaxWorkers caps the default worker count.
	MaxWorkers = 8

	// NestedSeparator joins a parent location and a path inside it.
	NestedSeparator = "!/"
)

// ErrNoCandidates is returned when finders failed and nothing was discovered.
var ErrNoCandidates = errors.New("no module candidates could be discovered")

type (
	// Builtin is a synthetic module injected ahead of discovered candidates.
	Builtin struct {
		ID      string
		Version version.Version
	}

	// NonModule is a location without a usable descriptor. Err wraps
	// descriptor.ErrNoDescriptor when no descriptor file exists.
	NonModule struct {
		Path string
		Err  error
	}

	// Excluded is a module left out because its environment does not match
	// the run. Modules nested inside it are never scanned.
	Excluded struct {
		Path        string
		ID          string
		Version     version.Version
		Environment descriptor.Environment
	}

	// Result is the outcome of one discovery run. Candidates are ordered by
	// discovery index: builtins first, then each top-level location followed
	// by the modules nested inside it.
	Result struct {
		Candidates  []*modgraph.Candidate
		NonModules  []NonModule
		Excluded    []Excluded
		Diagnostics []Diagnostic
	}

	// Error reports a run in which finders failed and no candidate was found.
	Error struct {
		Errs []error
	}

	// Option configures a Discoverer.
	Option func(*Discoverer)

	// Discoverer runs finders, loads descriptors and expands nested modules.
	Discoverer struct {
		finders  []Finder
		loader   descriptor.Loader
		env      descriptor.Environment
		workers  int
		maxDepth int
		builtins []Builtin
		logger   *log.Logger
	}

	found struct {
		finder int
		loc    Location
	}

	// entry is one loaded module and the modules nested inside it.
	entry struct {
		path     string
		desc     *descriptor.Descriptor
		children []*entry
	}

	// scan collects everything learned from one top-level location.
	scan struct {
		root        *entry
		nonModules  []NonModule
		excluded    []Excluded
		diagnostics []Diagnostic
	}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNoCandidates, strings.Join(msgs, "; "))
}

// Unwrap returns ErrNoCandidates and the finder errors.
func (e *Error) Unwrap() []error {
	return append([]error{ErrNoCandidates}, e.Errs...)
}

// WithFinders appends finders. Their order decides which of two identical
// locations is kept.
func WithFinders(finders ...Finder) Option {
	return func(d *Discoverer) { d.finders = append(d.finders, finders...) }
}

// WithLoader sets the descriptor loader. Default descriptor.FSLoader{}.
func WithLoader(l descriptor.Loader) Option {
	return func(d *Discoverer) { d.loader = l }
}

// WithEnvironment sets the run environment. Universal admits every module.
func WithEnvironment(env descriptor.Environment) Option {
	return func(d *Discoverer) { d.env = env }
}

// WithWorkers bounds concurrent finders and loads. Values below one keep
// the default.
func WithWorkers(n int) Option {
	return func(d *Discoverer) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithMaxNestingDepth bounds nesting. Values below zero keep the default.
func WithMaxNestingDepth(n int) Option {
	return func(d *Discoverer) {
		if n >= 0 {
			d.maxDepth = n
		}
	}
}

// WithBuiltins appends synthetic modules.
func WithBuiltins(b ...Builtin) Option {
	return func(d *Discoverer) { d.builtins = append(d.builtins, b...) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Discoverer) {
		if l != nil {
			d.logger = l
		}
	}
}

// DefaultWorkers is GOMAXPROCS capped at MaxWorkers.
func DefaultWorkers() int {
	return max(1, min(runtime.GOMAXPROCS(0), MaxWorkers))
}

// New creates a Discoverer.
func New(opts ...Option) *Discoverer {
	d := &Discoverer{
		loader:   descriptor.FSLoader{},
		env:      descriptor.EnvUniversal,
		workers:  DefaultWorkers(),
		maxDepth: DefaultMaxNestingDepth,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover runs every finder and loads the locations they emit. Per-location
// failures end up in the result; the error is non-nil only when ctx is done
// or when finders failed and no candidate was discovered, in which case it
// is an *Error and the partial result is still returned.
func (d *Discoverer) Discover(ctx context.Context) (*Result, error) {
	locs, finderErrs, err := d.find(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, ferr := range finderErrs {
		if ferr == nil {
			continue
		}
		res.Diagnostics = append(res.Diagnostics, NewDiagnosticWithCause(SeverityError, CodeFinderFailed,
			ferr.Error(), d.finders[i].Name(), ferr))
	}

	canon := d.canonicalize(locs, res)
	scans, err := d.loadAll(ctx, canon)
	if err != nil {
		return nil, err
	}

	for i, b := range d.builtins {
		res.Candidates = append(res.Candidates, modgraph.NewBuiltin(b.ID, b.Version, i))
	}
	discovered := 0
	for _, s := range scans {
		res.NonModules = append(res.NonModules, s.nonModules...)
		res.Excluded = append(res.Excluded, s.excluded...)
		res.Diagnostics = append(res.Diagnostics, s.diagnostics...)
		if s.root != nil {
			before := len(res.Candidates)
			res.Candidates = appendEntry(res.Candidates, s.root, nil)
			discovered += len(res.Candidates) - before
		}
	}

	d.logger.Debug("discovery finished", "locations", len(canon), "candidates", discovered,
		"non_modules", len(res.NonModules), "excluded", len(res.Excluded), "diagnostics", len(res.Diagnostics))

	if discovered == 0 {
		var errs []error
		for _, ferr := range finderErrs {
			if ferr != nil {
				errs = append(errs, ferr)
			}
		}
		if len(errs) > 0 {
			return res, &Error{Errs: errs}
		}
	}
	return res, nil
}

// appendEntry adds e and its nested modules in pre-order.
func appendEntry(out []*modgraph.Candidate, e *entry, parent *modgraph.Candidate) []*modgraph.Candidate {
	c := modgraph.FromDescriptor(e.desc, e.path, parent, len(out))
	out = append(out, c)
	for _, child := range e.children {
		out = appendEntry(out, child, c)
	}
	return out
}

// find runs the finders on the worker pool and returns what they emitted.
// Finder errors are returned per finder; only ctx ends the run early.
func (d *Discoverer) find(ctx context.Context) ([]found, []error, error) {
	var (
		mu   sync.Mutex
		all  []found
		errs = make([]error, len(d.finders))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, f := range d.finders {
		g.Go(func() error {
			err := f.Find(gctx, func(loc Location) {
				mu.Lock()
				all = append(all, found{finder: i, loc: loc})
				mu.Unlock()
			})
			if err != nil && ctx.Err() == nil {
				d.logger.Warn("finder failed", "finder", f.Name(), "error", err)
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return all, errs, nil
}

// canonicalize resolves disk paths, sorts by finder then path and drops
// repeated locations, keeping the first. A disk location whose path cannot
// be resolved is skipped, since it could not be deduplicated.
func (d *Discoverer) canonicalize(locs []found, res *Result) []Location {
	kept := locs[:0]
	for _, f := range locs {
		if !f.loc.Virtual {
			p, err := canonicalPath(f.loc.Path)
			if err != nil {
				res.Diagnostics = append(res.Diagnostics, NewDiagnosticWithCause(SeverityWarning, CodeLocationPathInvalid,
					"could not resolve location path, location skipped", f.loc.Path, err))
				continue
			}
			f.loc.Path = p
		}
		kept = append(kept, f)
	}
	locs = kept

	slices.SortStableFunc(locs, func(a, b found) int {
		return cmp.Or(cmp.Compare(a.finder, b.finder), strings.Compare(a.loc.Path, b.loc.Path))
	})

	seen := make(map[string]bool, len(locs))
	out := make([]Location, 0, len(locs))
	for _, f := range locs {
		if seen[f.loc.Path] {
			d.logger.Debug("duplicate location dropped", "location", f.loc.Path)
			continue
		}
		seen[f.loc.Path] = true
		out = append(out, f.loc)
	}
	return out
}

func canonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, err
	}
	return resolved, nil
}

// loadAll scans every location on the worker pool. Results keep the
// location order.
func (d *Discoverer) loadAll(ctx context.Context, locs []Location) ([]scan, error) {
	scans := make([]scan, len(locs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, loc := range locs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scans[i] = d.scanLocation(gctx, loc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scans, nil
}

func (d *Discoverer) scanLocation(ctx context.Context, loc Location) scan {
	var s scan
	fsys, closer, err := loc.Open()
	if err != nil {
		s.unreadable(loc.Path, err)
		return s
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil {
			d.logger.Warn("failed to close location", "location", loc.Path, "error", cerr)
		}
	}()
	s.root = d.load(ctx, &s, fsys, loc.Path, 0)
	return s
}

// load reads the descriptor at the root of fsys and follows its nested
// references. It returns nil when the location holds no admissible module.
func (d *Discoverer) load(ctx context.Context, s *scan, fsys fs.FS, loc string, depth int) *entry {
	desc, err := d.loader.Load(fsys)
	switch {
	case errors.Is(err, descriptor.ErrNoDescriptor):
		s.nonModules = append(s.nonModules, NonModule{Path: loc, Err: err})
		return nil
	case err != nil:
		s.nonModules = append(s.nonModules, NonModule{Path: loc, Err: err})
		s.diagnostics = append(s.diagnostics, NewDiagnosticWithCause(SeverityError, CodeDescriptorInvalid,
			err.Error(), loc, err))
		d.logger.Debug("invalid descriptor", "location", loc, "error", err)
		return nil
	}

	if !desc.Environment.Allows(d.env) {
		s.excluded = append(s.excluded, Excluded{
			Path:        loc,
			ID:          desc.ID,
			Version:     desc.Version,
			Environment: desc.Environment,
		})
		d.logger.Debug("module excluded by environment", "location", loc, "id", desc.ID, "environment", desc.Environment)
		return nil
	}

	e := &entry{path: loc, desc: desc}
	d.logger.Debug("module found", "location", loc, "id", desc.ID, "version", desc.Version, "depth", depth)

	for _, rel := range desc.Nested {
		if ctx.Err() != nil {
			break
		}
		rel = path.Clean(strings.TrimPrefix(rel, "./"))
		childLoc := loc + NestedSeparator + rel
		if depth+1 > d.maxDepth {
			s.diagnostics = append(s.diagnostics, NewDiagnosticWithPath(SeverityError, CodeNestingTooDeep,
				fmt.Sprintf("nested module skipped: nesting depth %d exceeds maximum %d", depth+1, d.maxDepth), childLoc))
			continue
		}

		child, err := openNested(fsys, rel)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.diagnostics = append(s.diagnostics, NewDiagnosticWithCause(SeverityWarning, CodeNestedMissing,
				"declared nested module does not exist", childLoc, err))
			continue
		case err != nil:
			s.unreadable(childLoc, err)
			continue
		}
		if ce := d.load(ctx, s, child, childLoc, depth+1); ce != nil {
			e.children = append(e.children, ce)
		}
	}
	return e
}

func (s *scan) unreadable(loc string, err error) {
	s.nonModules = append(s.nonModules, NonModule{Path: loc, Err: err})
	s.diagnostics = append(s.diagnostics, NewDiagnosticWithCause(SeverityError, CodeLocationUnreadable,
		err.Error(), loc, err))
}

// openNested opens a directory or archive inside a parent filesystem.
func openNested(parent fs.FS, rel string) (fs.FS, error) {
	info, err := fs.Stat(parent, rel)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return fs.Sub(parent, rel)
	}
	if !isArchive(rel) {
		return nil, fmt.Errorf("%s is neither a directory nor a zip/jar archive", rel)
	}
	data, err := fs.ReadFile(parent, rel)
	if err != nil {
		return nil, err
	}
	return openZipBytes(data)
}
