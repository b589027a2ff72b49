// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"cargo-pod/pkg/target"
)

func TestLipoMerge(t *testing.T) {
	t.Parallel()

	rec := &commandRecorder{}
	l := NewLipo("", rec.execCommand)
	out := filepath.Join(t.TempDir(), "slices", "macos-arm64_x86_64", "libdemo.a")

	inputs := []MergeInput{
		{Arch: target.ArchARM64, Path: "/a/libdemo.a"},
		{Arch: target.ArchX86_64, Path: "/b/libdemo.a"},
	}
	if err := l.Merge(context.Background(), inputs, out); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	want := []string{"lipo", "-create", "-output", out, "/a/libdemo.a", "/b/libdemo.a"}
	if got := rec.last(t); !slices.Equal(got, want) {
		t.Errorf("invoked %v, want %v", got, want)
	}
}

func TestLipoMergeFailure(t *testing.T) {
	t.Parallel()

	rec := &commandRecorder{exitCode: 1, stderr: "fatal error: have the same architectures"}
	l := NewLipo("", rec.execCommand)

	err := l.Merge(context.Background(), []MergeInput{{Arch: target.ArchARM64, Path: "/a"}}, filepath.Join(t.TempDir(), "out.a"))
	if !errors.Is(err, ErrToolchain) {
		t.Fatalf("Merge() error = %v, want ErrToolchain", err)
	}
}

func TestLipoMergeNoInputs(t *testing.T) {
	t.Parallel()

	if err := NewLipo("", nil).Merge(context.Background(), nil, "out.a"); !errors.Is(err, ErrToolchain) {
		t.Errorf("Merge() error = %v, want ErrToolchain", err)
	}
}
