// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cargo-pod/internal/toolchain"
	"cargo-pod/pkg/target"
)

var (
	macX86 = target.Descriptor{OS: target.OSmacOS, Arch: target.ArchX86_64}
	macARM = target.Descriptor{OS: target.OSmacOS, Arch: target.ArchARM64}
	iosARM = target.Descriptor{OS: target.OSiOS, Arch: target.ArchARM64}
	simARM = target.Descriptor{OS: target.OSiOS, Arch: target.ArchARM64, ABI: target.ABISimulator}
	simX86 = target.Descriptor{OS: target.OSiOS, Arch: target.ArchX86_64, ABI: target.ABISimulator}
)

type fakeToolchain struct {
	fail    map[string]string
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32

	mu    sync.Mutex
	calls []string
	dirs  map[string]string
}

func (f *fakeToolchain) Build(ctx context.Context, inv toolchain.Invocation) (toolchain.Artifact, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	triple := inv.Target.Triple()
	f.mu.Lock()
	f.calls = append(f.calls, triple)
	if f.dirs == nil {
		f.dirs = make(map[string]string)
	}
	f.dirs[triple] = inv.TargetDir
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return toolchain.Artifact{}, ctx.Err()
		}
	}

	fmt.Fprintf(inv.Stderr, "   Compiling demo (%s)\n", triple)
	if msg, ok := f.fail[triple]; ok {
		fmt.Fprintln(inv.Stderr, msg)
		return toolchain.Artifact{}, &toolchain.CommandError{Command: "cargo build", ExitCode: 101}
	}
	return toolchain.Artifact{Target: inv.Target, Path: filepath.Join("/target", triple, "libdemo.a")}, nil
}

type platformRecorder struct {
	mu    sync.Mutex
	calls map[target.Platform][]target.Descriptor
	count map[target.Platform]int
}

func newPlatformRecorder() *platformRecorder {
	return &platformRecorder{calls: make(map[target.Platform][]target.Descriptor), count: make(map[target.Platform]int)}
}

func (r *platformRecorder) record(_ context.Context, p target.Platform, results []Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count[p]++
	for _, res := range results {
		r.calls[p] = append(r.calls[p], res.Descriptor)
	}
	return nil
}

func TestRunAllSucceed(t *testing.T) {
	t.Parallel()

	descs := []target.Descriptor{macX86, macARM, iosARM, simARM, simX86}
	tc := &fakeToolchain{}
	rec := newPlatformRecorder()
	o := &Orchestrator{Toolchain: tc, Jobs: 3}

	results, err := o.Run(context.Background(), Request{Descriptors: descs, LibName: "demo"}, rec.record)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(results) != len(descs) {
		t.Fatalf("got %d results, want %d", len(results), len(descs))
	}
	for i, r := range results {
		if r.Descriptor != descs[i] {
			t.Errorf("results[%d] = %s, want %s (descriptor order)", i, r.Descriptor, descs[i])
		}
		if !r.Success || r.ArtifactPath == "" {
			t.Errorf("results[%d] = %+v, want success with artifact", i, r)
		}
	}

	wantGroups := map[target.Platform][]target.Descriptor{
		macX86.Platform(): {macX86, macARM},
		iosARM.Platform(): {iosARM},
		simARM.Platform(): {simARM, simX86},
	}
	for p, want := range wantGroups {
		if rec.count[p] != 1 {
			t.Errorf("platform %s called %d times, want 1", p, rec.count[p])
		}
		if !slices.Equal(rec.calls[p], want) {
			t.Errorf("platform %s got %v, want %v", p, rec.calls[p], want)
		}
	}
}

func TestRunCollectsEveryFailure(t *testing.T) {
	t.Parallel()

	descs := []target.Descriptor{macX86, macARM, iosARM}
	tc := &fakeToolchain{fail: map[string]string{"aarch64-apple-darwin": "error[E0308]: mismatched types"}}
	rec := newPlatformRecorder()
	o := &Orchestrator{Toolchain: tc, Jobs: 2}

	results, err := o.Run(context.Background(), Request{Descriptors: descs, LibName: "demo"}, rec.record)

	var buildErr *BuildFailedError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Run() error = %v, want *BuildFailedError", err)
	}
	if !errors.Is(err, ErrBuild) {
		t.Error("error does not wrap ErrBuild")
	}
	if len(buildErr.Failed) != 1 || buildErr.Failed[0].Descriptor != macARM {
		t.Fatalf("Failed = %v, want exactly aarch64-apple-darwin", buildErr.Failed)
	}
	want := "   Compiling demo (aarch64-apple-darwin)\nerror[E0308]: mismatched types\n"
	if buildErr.Failed[0].Diagnostics != want {
		t.Errorf("Diagnostics = %q, want %q", buildErr.Failed[0].Diagnostics, want)
	}

	// Remaining targets still ran.
	if len(tc.calls) != 3 {
		t.Errorf("toolchain invoked %d times, want 3", len(tc.calls))
	}
	if !results[0].Success || !results[2].Success {
		t.Error("unrelated targets should succeed")
	}

	// The failed platform is never assembled; the healthy one is.
	if rec.count[macX86.Platform()] != 0 {
		t.Error("macos callback invoked despite a failed build")
	}
	if rec.count[iosARM.Platform()] != 1 {
		t.Error("ios callback not invoked")
	}
}

func TestRunFailFast(t *testing.T) {
	t.Parallel()

	descs := []target.Descriptor{macARM, macX86, iosARM, simARM}
	tc := &fakeToolchain{fail: map[string]string{"aarch64-apple-darwin": "boom"}}
	rec := newPlatformRecorder()
	o := &Orchestrator{Toolchain: tc, Jobs: 1, FailFast: true}

	results, err := o.Run(context.Background(), Request{Descriptors: descs, LibName: "demo"}, rec.record)

	var buildErr *BuildFailedError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Run() error = %v, want *BuildFailedError", err)
	}
	if len(tc.calls) != 1 {
		t.Errorf("toolchain invoked %d times after fail-fast, want 1", len(tc.calls))
	}
	if len(buildErr.Failed) != 1 || buildErr.Failed[0].Descriptor != macARM {
		t.Errorf("Failed = %v, want only aarch64-apple-darwin", buildErr.Failed)
	}
	if len(buildErr.Cancelled) != 3 {
		t.Errorf("Cancelled = %v, want the three remaining targets", buildErr.Cancelled)
	}
	want := "1 target(s) failed to build: aarch64-apple-darwin (3 cancelled)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	for _, r := range results[1:] {
		if r.Success || !r.Cancelled {
			t.Errorf("%s: Success = %v, Cancelled = %v after fail-fast", r.Descriptor, r.Success, r.Cancelled)
		}
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("%s error = %v, want context.Canceled", r.Descriptor, r.Err)
		}
	}
	if len(rec.count) != 0 {
		t.Errorf("platform callbacks invoked after failure: %v", rec.count)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	descs := target.Supported()
	tc := &fakeToolchain{delay: 20 * time.Millisecond}
	o := &Orchestrator{Toolchain: tc, Jobs: 2}

	if _, err := o.Run(context.Background(), Request{Descriptors: descs, LibName: "demo"}, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := tc.maxSeen.Load(); got > 2 {
		t.Errorf("observed %d concurrent builds, limit is 2", got)
	}
}

func TestRunDefaultJobs(t *testing.T) {
	t.Parallel()

	tc := &fakeToolchain{delay: 10 * time.Millisecond}
	o := &Orchestrator{Toolchain: tc}

	if _, err := o.Run(context.Background(), Request{Descriptors: target.Supported(), LibName: "demo"}, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := tc.maxSeen.Load(); got > DefaultJobs {
		t.Errorf("observed %d concurrent builds, default limit is %d", got, DefaultJobs)
	}
}

func TestRunPlatformCallbackError(t *testing.T) {
	t.Parallel()

	errAssemble := errors.New("assemble failed")
	o := &Orchestrator{Toolchain: &fakeToolchain{}}

	_, err := o.Run(context.Background(), Request{Descriptors: []target.Descriptor{iosARM}, LibName: "demo"},
		func(context.Context, target.Platform, []Result) error { return errAssemble })
	if !errors.Is(err, errAssemble) {
		t.Errorf("Run() error = %v, want %v", err, errAssemble)
	}
}

func TestBuildFailedErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *BuildFailedError
		want string
	}{
		{
			name: "failures only",
			err:  &BuildFailedError{Failed: []Result{{Descriptor: macARM}, {Descriptor: iosARM}}},
			want: "2 target(s) failed to build: aarch64-apple-darwin, aarch64-apple-ios",
		},
		{
			name: "failure with cancellations",
			err:  &BuildFailedError{Failed: []Result{{Descriptor: macARM}}, Cancelled: []Result{{Descriptor: iosARM}}},
			want: "1 target(s) failed to build: aarch64-apple-darwin (1 cancelled)",
		},
		{
			name: "cancelled run",
			err:  &BuildFailedError{Cancelled: []Result{{Descriptor: macARM}, {Descriptor: iosARM}}},
			want: "build cancelled: aarch64-apple-darwin, aarch64-apple-ios not built",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tc := &fakeToolchain{}
	o := &Orchestrator{Toolchain: tc}

	_, err := o.Run(ctx, Request{Descriptors: []target.Descriptor{macARM, iosARM}, LibName: "demo"}, nil)

	var buildErr *BuildFailedError
	if !errors.As(err, &buildErr) {
		t.Fatalf("Run() error = %v, want *BuildFailedError", err)
	}
	if len(buildErr.Failed) != 0 || len(buildErr.Cancelled) != 2 {
		t.Errorf("Failed = %d, Cancelled = %d, want 0 and 2", len(buildErr.Failed), len(buildErr.Cancelled))
	}
	if len(tc.calls) != 0 {
		t.Errorf("toolchain invoked %d times on a cancelled context", len(tc.calls))
	}
}

func TestRunTargetDirs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		jobs      int
		targetDir string
		want      map[string]string
	}{
		{
			name:      "serial shares the target dir",
			jobs:      1,
			targetDir: "/tmp/target",
			want: map[string]string{
				macX86.Triple(): "/tmp/target",
				iosARM.Triple(): "/tmp/target",
			},
		},
		{
			name:      "parallel splits per triple",
			jobs:      2,
			targetDir: "/tmp/target",
			want: map[string]string{
				macX86.Triple(): filepath.Join("/tmp/target", macX86.Triple()),
				iosARM.Triple(): filepath.Join("/tmp/target", iosARM.Triple()),
			},
		},
		{
			name: "parallel defaults below the crate",
			jobs: 2,
			want: map[string]string{
				macX86.Triple(): filepath.Join("/src", "target", macX86.Triple()),
				iosARM.Triple(): filepath.Join("/src", "target", iosARM.Triple()),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tc := &fakeToolchain{}
			o := &Orchestrator{Toolchain: tc, Jobs: tt.jobs}
			req := Request{
				Descriptors: []target.Descriptor{macX86, iosARM},
				ProjectDir:  "/src",
				TargetDir:   tt.targetDir,
			}
			if _, err := o.Run(context.Background(), req, nil); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for triple, want := range tt.want {
				if got := tc.dirs[triple]; got != want {
					t.Errorf("%s target dir = %q, want %q", triple, got, want)
				}
			}
		})
	}
}

func TestTargetDirForSingleTarget(t *testing.T) {
	t.Parallel()

	req := Request{Descriptors: []target.Descriptor{macARM}, TargetDir: "/tmp/target"}
	if got := TargetDirFor(req, macARM, 4); got != "/tmp/target" {
		t.Errorf("TargetDirFor() = %q, want the shared dir for a single target", got)
	}
}
