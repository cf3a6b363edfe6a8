// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/modsolve/modsolve/pkg/descriptor"
)

// ModCUE renders a minimal mod.cue. extra lines are appended verbatim.
func ModCUE(id, ver string, extra ...string) string {
	s := fmt.Sprintf("id: %q\nversion: %q\n", id, ver)
	for _, e := range extra {
		s += e + "\n"
	}
	return s
}

// TempDir returns a temporary directory with symlinks resolved, so paths
// compare equal to canonicalized discovery locations.
func TempDir(t testing.TB) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	return dir
}

// WriteFiles creates files (slash-separated relative path -> content) under dir.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

// WriteModule writes a module directory dir/name holding a mod.cue with
// content and returns its path.
func WriteModule(t testing.TB, dir, name, content string) string {
	t.Helper()
	WriteFiles(t, dir, map[string]string{name + "/" + descriptor.FileCUE: content})
	return filepath.Join(dir, name)
}

// ZipBytes builds a zip archive in memory. Entries are written in name order.
func ZipBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes a zip archive of files to path and returns path.
func WriteZip(t testing.TB, path string, files map[string]string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, ZipBytes(t, files), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
