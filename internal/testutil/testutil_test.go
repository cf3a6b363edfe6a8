// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/modsolve/modsolve/pkg/descriptor"
)

func TestModCUE(t *testing.T) {
	t.Parallel()

	got := ModCUE("alpha", "1.0", `environment: "client"`)
	want := "id: \"alpha\"\nversion: \"1.0\"\nenvironment: \"client\"\n"
	if got != want {
		t.Errorf("ModCUE() = %q, want %q", got, want)
	}

	d, err := descriptor.Parse([]byte(got), descriptor.FormatCUE, descriptor.FileCUE, 0)
	if err != nil {
		t.Fatalf("ModCUE output does not validate: %v", err)
	}
	if d.ID != "alpha" || d.Environment != descriptor.EnvClient {
		t.Errorf("descriptor = %+v", d)
	}
}

func TestWriteModule(t *testing.T) {
	t.Parallel()

	dir := TempDir(t)
	p := WriteModule(t, dir, "beta", ModCUE("beta", "2.0"))
	if p != filepath.Join(dir, "beta") {
		t.Errorf("WriteModule() = %q", p)
	}
	d, err := descriptor.LoadDir(p)
	if err != nil || d.ID != "beta" {
		t.Errorf("LoadDir() = %+v, %v", d, err)
	}
}

func TestWriteZip(t *testing.T) {
	t.Parallel()

	path := WriteZip(t, filepath.Join(TempDir(t), "sub", "gamma.zip"), map[string]string{
		"mod.cue":       ModCUE("gamma", "0.1"),
		"inner/mod.cue": ModCUE("inner", "0.2"),
	})

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 2 || zr.File[0].Name != "inner/mod.cue" {
		t.Fatalf("entries = %v", zr.File)
	}
	f, err := zr.Open("mod.cue")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil || string(data) != ModCUE("gamma", "0.1") {
		t.Errorf("mod.cue = %q, %v", data, err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("archive missing: %v", err)
	}
}
