// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"cargo-pod/internal/config"
)

func TestCargoArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"cargo subcommand", []string{"pod", "build", "--ios"}, []string{"build", "--ios"}},
		{"direct invocation", []string{"build", "--ios"}, []string{"build", "--ios"}},
		{"only pod", []string{"pod"}, []string{}},
		{"empty", nil, nil},
		{"pod later is kept", []string{"build", "pod"}, []string{"build", "pod"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := cargoArgs(tt.args); !slices.Equal(got, tt.want) {
				t.Errorf("cargoArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

// Not parallel: mutates the package-level version variables.
func TestGetVersionString(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = oldVersion, oldCommit, oldDate })

	Version = "dev"
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q", got)
	}

	Version, Commit, BuildDate = "1.0.0", "abc123", "2026-01-02"
	want := "1.0.0 (commit: abc123, built: 2026-01-02)"
	if got := getVersionString(); got != want {
		t.Errorf("getVersionString() = %q, want %q", got, want)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	app, _, _ := newTestApp(t, testConfig(t), &stubToolchain{})
	root := NewRootCommand(app)

	for _, name := range []string{"build", "targets", "init", "verify", "config"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
	for _, flag := range []string{"verbose", "config"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestLoadConfigAppliesVerbose(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.UI.Verbose = true
	app, _, _ := newTestApp(t, cfg, &stubToolchain{})

	opts := &rootOptions{}
	if _, _, err := loadConfig(context.Background(), app, opts); err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if !opts.verbose {
		t.Error("verbose not taken from configuration")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug output without verbose: %q", buf.String())
	}

	newLogger(&buf, true).Debug("shown")
	if !strings.Contains(buf.String(), "shown") || !strings.Contains(buf.String(), "cargo-pod") {
		t.Errorf("verbose logger output = %q", buf.String())
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Targets = []string{"ios", "desktop"}

	t.Run("show", func(t *testing.T) {
		t.Parallel()
		app, stdout, _ := newTestApp(t, cfg, &stubToolchain{})
		root := NewRootCommand(app)
		root.SetArgs([]string{"config", "show"})
		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("config show error = %v", err)
		}
		for _, want := range []string{"(using defaults)", "targets", "ios, desktop", "archive.format", "zip"} {
			if !strings.Contains(stdout.String(), want) {
				t.Errorf("config show output missing %q:\n%s", want, stdout.String())
			}
		}
	})

	t.Run("dump", func(t *testing.T) {
		t.Parallel()
		app, stdout, _ := newTestApp(t, cfg, &stubToolchain{})
		root := NewRootCommand(app)
		root.SetArgs([]string{"config", "dump"})
		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("config dump error = %v", err)
		}
		if got, want := stdout.String(), config.GenerateCUE(cfg); got != want {
			t.Errorf("config dump = %q, want %q", got, want)
		}
	})

	t.Run("path honours --config", func(t *testing.T) {
		t.Parallel()
		app, stdout, _ := newTestApp(t, cfg, &stubToolchain{})
		root := NewRootCommand(app)
		root.SetArgs([]string{"config", "path", "--config", "/tmp/custom.cue"})
		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("config path error = %v", err)
		}
		if got := strings.TrimSpace(stdout.String()); got != "/tmp/custom.cue" {
			t.Errorf("config path = %q", got)
		}
	})

	t.Run("init writes once", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "config.cue")
		for i, want := range []string{"Created", "already exists"} {
			app, stdout, _ := newTestApp(t, cfg, &stubToolchain{})
			root := NewRootCommand(app)
			root.SetArgs([]string{"config", "init", "--config", path})
			if err := root.ExecuteContext(context.Background()); err != nil {
				t.Fatalf("config init #%d error = %v", i, err)
			}
			if !strings.Contains(stdout.String(), want) {
				t.Errorf("config init #%d output = %q, want %q", i, stdout.String(), want)
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != config.GenerateCUE(config.DefaultConfig()) {
			t.Errorf("config file content = %q", data)
		}
	})
}
