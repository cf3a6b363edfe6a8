// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MemoryPrefix marks locations that live in memory rather than on disk.
const MemoryPrefix = "mem:"

var archiveExts = []string{".zip", ".jar"}

type (
	// Opener opens the filesystem rooted at a location. The closer is
	// released once the location and everything nested in it has been loaded.
	Opener func() (fs.FS, io.Closer, error)

	// Location is one place that may hold a module.
	Location struct {
		// Path identifies the location. Disk paths are canonicalized by the
		// Discoverer; virtual paths are used as they are.
		Path    string
		Virtual bool
		open    Opener
	}

	// Finder enumerates candidate locations. Find may call emit from a single
	// goroutine only, but several finders run concurrently.
	Finder interface {
		Name() string
		Find(ctx context.Context, emit func(Location)) error
	}

	// DirFinder emits the subdirectories and archives directly inside Dir.
	// Hidden entries and entries matching an Ignore glob are skipped. A
	// missing Dir yields nothing.
	DirFinder struct {
		Dir    string
		Ignore []string
	}

	// PathFinder emits explicitly configured locations. Every path must
	// exist.
	PathFinder struct {
		Paths []string
	}

	// MemoryFinder emits in-memory zip archives keyed by name.
	MemoryFinder struct {
		Archives map[string][]byte
	}

	nopCloser struct{}
)

func (nopCloser) Close() error { return nil }

// NewLocation creates a virtual location backed by open.
func NewLocation(path string, open Opener) Location {
	return Location{Path: path, Virtual: true, open: open}
}

// DiskLocation creates a location for a directory or archive on disk.
func DiskLocation(path string) Location {
	return Location{Path: path, open: func() (fs.FS, io.Closer, error) { return openDisk(path) }}
}

// Open opens the location.
func (l Location) Open() (fs.FS, io.Closer, error) {
	if l.open == nil {
		return nil, nil, fmt.Errorf("location %s has no opener", l.Path)
	}
	return l.open()
}

func isArchive(name string) bool {
	return slices.Contains(archiveExts, strings.ToLower(filepath.Ext(name)))
}

func openDisk(path string) (fs.FS, io.Closer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if info.IsDir() {
		return os.DirFS(path), nopCloser{}, nil
	}
	if !isArchive(path) {
		return nil, nil, fmt.Errorf("%s is neither a directory nor a zip/jar archive", path)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	return zr, zr, nil
}

func openZipBytes(data []byte) (fs.FS, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return zr, nil
}

// Name implements Finder.
func (f DirFinder) Name() string { return "dir:" + f.Dir }

// Find implements Finder.
func (f DirFinder) Find(ctx context.Context, emit func(Location)) error {
	for _, pattern := range f.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}

	entries, err := os.ReadDir(f.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("scan %s: %w", f.Dir, err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || f.ignored(name) {
			continue
		}
		full := filepath.Join(f.Dir, name)
		isDir := e.IsDir()
		if e.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				continue
			}
			isDir = info.IsDir()
		}
		if isDir || isArchive(name) {
			emit(DiskLocation(full))
		}
	}
	return nil
}

func (f DirFinder) ignored(name string) bool {
	for _, pattern := range f.Ignore {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Name implements Finder.
func (PathFinder) Name() string { return "paths" }

// Find implements Finder. Missing paths are reported together after the
// others have been emitted.
func (f PathFinder) Find(ctx context.Context, emit func(Location)) error {
	var errs []error
	for _, p := range f.Paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Stat(p); err != nil {
			errs = append(errs, fmt.Errorf("include %s: %w", p, err))
			continue
		}
		emit(DiskLocation(p))
	}
	return errors.Join(errs...)
}

// Name implements Finder.
func (MemoryFinder) Name() string { return "memory" }

// Find implements Finder. Archives are emitted in name order.
func (f MemoryFinder) Find(ctx context.Context, emit func(Location)) error {
	names := make([]string, 0, len(f.Archives))
	for name := range f.Archives {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		data := f.Archives[name]
		emit(NewLocation(MemoryPrefix+name, func() (fs.FS, io.Closer, error) {
			fsys, err := openZipBytes(data)
			if err != nil {
				return nil, nil, err
			}
			return fsys, nopCloser{}, nil
		}))
	}
	return nil
}
