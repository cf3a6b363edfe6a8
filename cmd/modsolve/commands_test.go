// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modsolve/modsolve/internal/config"
	"github.com/modsolve/modsolve/internal/testutil"
)

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteModule(t, dir, "lib", `id: "lib", version: "2.0.0"`)
	testutil.WriteModule(t, dir, "srv", `id: "srv", version: "1.0", environment: "server"`)
	if err := os.Mkdir(filepath.Join(dir, "assets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	provider := stubConfigProvider{cfg: testConfig(dir)}

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := runCLI(t, provider, "discover", "--env", "client", "--format", "json")
		if err != nil {
			t.Fatalf("discover error = %v", err)
		}
		var view discoverView
		if err := json.Unmarshal([]byte(stdout), &view); err != nil {
			t.Fatalf("invalid JSON %q: %v", stdout, err)
		}
		var found bool
		for _, c := range view.Candidates {
			if c.ID == "lib" && c.Version == "2.0.0" && !c.Builtin {
				found = true
			}
		}
		if !found {
			t.Errorf("lib missing from candidates %+v", view.Candidates)
		}
		if len(view.Excluded) != 1 || view.Excluded[0].ID != "srv" || view.Excluded[0].Environment != "server" {
			t.Errorf("excluded = %+v", view.Excluded)
		}
		if len(view.NonModules) != 1 || !strings.HasSuffix(view.NonModules[0].Path, "assets") {
			t.Errorf("non-modules = %+v", view.NonModules)
		}
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := runCLI(t, provider, "discover", "--env", "client")
		if err != nil {
			t.Fatalf("discover error = %v", err)
		}
		for _, want := range []string{"Candidates", "lib", "Excluded by environment", "srv", "not modules"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("output missing %q:\n%s", want, stdout)
			}
		}
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := testutil.WriteModule(t, dir, "good", `
id: "good"
version: "1.2.0"
depends: lib: ">=1.0"
provides: ["good-api"]
`)
	self := testutil.WriteModule(t, dir, "self", `id: "self", version: "1.0", depends: self: "*"`)
	empty := filepath.Join(dir, "empty")
	if err := os.Mkdir(empty, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	provider := stubConfigProvider{cfg: config.DefaultConfig()}

	stdout, _, err := runCLI(t, provider, "--verbose", "validate", good)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	for _, want := range []string{"good", "1.2.0", "mod.cue", "depends: lib >=1.0", "provides: good-api"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}

	for name, path := range map[string]string{
		"self dependency": self,
		"no descriptor":   empty,
		"missing":         filepath.Join(dir, "missing"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, _, err := runCLI(t, provider, "validate", path)
			if code := exitCode(t, err); code != ExitUsage {
				t.Errorf("exit code = %d, want %d", code, ExitUsage)
			}
		})
	}
}

func TestVersionCheck(t *testing.T) {
	t.Parallel()

	provider := stubConfigProvider{cfg: config.DefaultConfig()}
	tests := []struct {
		args []string
		code int
		want string
	}{
		{[]string{"1.4.2", "^1.2"}, ExitOK, "satisfies"},
		{[]string{"2.0.0", "^1.2", ">=2.0 <3"}, ExitOK, "satisfies"},
		{[]string{"0.9", "^1.2"}, ExitResolution, "does not satisfy"},
		{[]string{"not-a-version", "*"}, ExitUsage, ""},
		{[]string{"1.0", ">>1"}, ExitUsage, ""},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			t.Parallel()

			stdout, _, err := runCLI(t, provider, append([]string{"version", "check"}, tt.args...)...)
			if code := exitCode(t, err); code != tt.code {
				t.Fatalf("exit code = %d, want %d", code, tt.code)
			}
			if !strings.Contains(stdout, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, stdout)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCLI(t, stubConfigProvider{cfg: config.DefaultConfig()}, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(stdout, "modsolve ") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	cfg := testConfig("my-mods")
	cfg.Source = "/etc/modsolve/config.cue"
	provider := stubConfigProvider{cfg: cfg}
	path := filepath.Join(t.TempDir(), "nested", "config.cue")

	stdout, _, err := runCLI(t, provider, "--config", path, "config", "path")
	if err != nil || strings.TrimSpace(stdout) != path {
		t.Fatalf("config path = %q, %v", stdout, err)
	}

	stdout, _, err = runCLI(t, provider, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"/etc/modsolve/config.cue", "my-mods", "resolver.tie_break"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config show missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = runCLI(t, provider, "config", "dump")
	if err != nil || !strings.Contains(stdout, `mods_dir: "my-mods"`) {
		t.Fatalf("config dump = %q, %v", stdout, err)
	}

	stdout, _, err = runCLI(t, provider, "--config", path, "config", "init")
	if err != nil || !strings.Contains(stdout, "wrote") {
		t.Fatalf("config init = %q, %v", stdout, err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), `mods_dir: "mods"`) {
		t.Fatalf("default config = %q, %v", data, err)
	}

	stdout, _, err = runCLI(t, provider, "--config", path, "config", "init")
	if err != nil || !strings.Contains(stdout, "already exists") {
		t.Errorf("second config init = %q, %v", stdout, err)
	}
}
