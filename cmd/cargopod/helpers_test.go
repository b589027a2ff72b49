// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"debug/macho"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"cargo-pod/internal/config"
	"cargo-pod/internal/testutil"
	"cargo-pod/internal/toolchain"
	"cargo-pod/pkg/target"
)

const testCargoToml = `[package]
name = "demo-core"
version = "0.4.0"
license = "MIT"
repository = "https://github.com/example/demo-core"
authors = ["Jane Doe <jane@example.com>"]

[lib]
crate-type = ["staticlib"]
`

type (
	// staticConfig serves a fixed configuration.
	staticConfig struct {
		cfg    *config.Config
		source string
		err    error
	}

	// stubToolchain writes a thin static library where cargo would, failing
	// for the triples in fail.
	stubToolchain struct {
		fail map[string]bool
	}

	// joinMerger concatenates inputs in architecture order.
	joinMerger struct{}
)

func (s *staticConfig) Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error) {
	cfg, _, err := s.LoadWithSource(ctx, opts)
	return cfg, err
}

func (s *staticConfig) LoadWithSource(context.Context, config.LoadOptions) (*config.Config, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return s.cfg, s.source, nil
}

func (s *stubToolchain) Build(_ context.Context, inv toolchain.Invocation) (toolchain.Artifact, error) {
	if s.fail[inv.Target.Triple()] {
		if inv.Stderr != nil {
			_, _ = inv.Stderr.Write([]byte("error: linker `cc` not found\n"))
		}
		return toolchain.Artifact{}, errors.New("cargo exited with status 101")
	}
	cpu := macho.CpuAmd64
	if inv.Target.Arch == target.ArchARM64 {
		cpu = macho.CpuArm64
	}
	path := toolchain.ArtifactPath(inv)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return toolchain.Artifact{}, err
	}
	if err := os.WriteFile(path, testutil.StaticLibrary(testutil.MachOObject(cpu)), 0o644); err != nil {
		return toolchain.Artifact{}, err
	}
	return toolchain.Artifact{Target: inv.Target, Path: path}, nil
}

func (joinMerger) Merge(_ context.Context, inputs []toolchain.MergeInput, output string) error {
	sorted := slices.Clone(inputs)
	slices.SortFunc(sorted, func(a, b toolchain.MergeInput) int { return strings.Compare(string(a.Arch), string(b.Arch)) })
	var buf bytes.Buffer
	for _, in := range sorted {
		data, err := os.ReadFile(in.Path)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return os.WriteFile(output, buf.Bytes(), 0o644)
}

func allInstalled(context.Context) map[string]bool {
	installed := make(map[string]bool)
	for _, d := range target.Supported() {
		installed[d.Triple()] = true
	}
	return installed
}

// testConfig returns the default configuration with a per-test scratch dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.WorkDir = t.TempDir()
	return cfg
}

// newTestApp builds an App whose output goes to the returned buffers.
func newTestApp(t *testing.T, cfg *config.Config, tc toolchain.Toolchain) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := NewApp(Dependencies{
		Config:     &staticConfig{cfg: cfg},
		Toolchain:  tc,
		Merger:     joinMerger{},
		Installed:  allInstalled,
		Host:       "darwin",
		Stdout:     &stdout,
		Stderr:     &stderr,
		IsTerminal: func() bool { return false },
	})
	return app, &stdout, &stderr
}

// newTestCrate writes a staticlib crate with one public header.
func newTestCrate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"Cargo.toml":     testCargoToml,
		"include/demo.h": "void demo_run(void);\n",
	}
	testutil.WriteTree(t, dir, files)
	return dir
}
