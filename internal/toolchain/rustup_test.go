// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"slices"
	"testing"
)

func TestRustupInstalledTargets(t *testing.T) {
	t.Parallel()

	rec := &commandRecorder{stdout: "aarch64-apple-darwin\naarch64-apple-ios\n\n"}
	r := NewRustup("", rec.execCommand)

	got := r.InstalledTargets(context.Background())
	if len(got) != 2 || !got["aarch64-apple-darwin"] || !got["aarch64-apple-ios"] {
		t.Errorf("InstalledTargets() = %v", got)
	}
	if args := rec.last(t); !slices.Equal(args, []string{"rustup", "target", "list", "--installed"}) {
		t.Errorf("invoked %v", args)
	}
}

func TestRustupInstalledTargetsUnknown(t *testing.T) {
	t.Parallel()

	rec := &commandRecorder{exitCode: 1}
	r := NewRustup("", rec.execCommand)

	if got := r.InstalledTargets(context.Background()); got != nil {
		t.Errorf("InstalledTargets() = %v, want nil on failure", got)
	}
}

func TestParseTargetListMarkers(t *testing.T) {
	t.Parallel()

	got := parseTargetList([]byte("x86_64-apple-darwin (installed)\n"))
	if !got["x86_64-apple-darwin"] {
		t.Errorf("parseTargetList() = %v", got)
	}
}
