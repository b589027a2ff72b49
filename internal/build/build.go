// SPDX-License-Identifier: MPL-2.0

package build

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/pool"

	"cargo-pod/internal/toolchain"
	"cargo-pod/pkg/target"
)

// DefaultJobs is the number of concurrent builds when Jobs is unset. Each
// cargo invocation is itself parallel, so the pool stays small.
//
// Cargo holds an exclusive lock on its target directory for the whole build,
// so concurrent builds sharing one directory run one at a time. When more than
// one build may run at once, each target gets its own directory below the
// request's TargetDir; see TargetDirFor.
const DefaultJobs = 2

// ErrBuild is the sentinel wrapped by BuildFailedError.
var ErrBuild = errors.New("build failed")

type (
	// Result is the outcome of building one target. It is not modified after
	// Run returns it.
	Result struct {
		Descriptor   target.Descriptor
		ArtifactPath string
		Success      bool
		// Diagnostics is the combined stdout/stderr of the native build.
		Diagnostics string
		Duration    time.Duration
		Err         error
		// Cancelled is set when the build was stopped, or never started,
		// because the run was cancelled. A cancelled build is not a failure
		// of its target.
		Cancelled bool
	}

	// Request describes one build run.
	Request struct {
		Descriptors []target.Descriptor
		Profile     toolchain.Profile
		ProjectDir  string
		TargetDir   string
		LibName     string
		Features    []string
		Args        []string
	}

	// PlatformFunc is called once per platform whose builds all succeeded,
	// with the platform's results in descriptor order.
	PlatformFunc func(ctx context.Context, platform target.Platform, results []Result) error

	// Orchestrator runs builds in parallel.
	Orchestrator struct {
		Toolchain toolchain.Toolchain
		Logger    *log.Logger
		// Jobs bounds concurrent builds. Values below 1 use DefaultJobs.
		// Above 1, builds use per-target directories.
		Jobs int
		// FailFast cancels outstanding builds after the first failure and
		// suppresses further PlatformFunc calls.
		FailFast bool
	}

	// BuildFailedError lists every target that failed to build, and
	// separately the targets cancelled before they could finish.
	// It wraps ErrBuild for errors.Is() compatibility.
	BuildFailedError struct {
		Failed    []Result
		Cancelled []Result
	}

	// platformGroup tracks the barrier for one platform.
	platformGroup struct {
		indexes   []int
		remaining int
		failed    bool
	}
)

// Error implements the error interface for BuildFailedError.
func (e *BuildFailedError) Error() string {
	if len(e.Failed) == 0 {
		return fmt.Sprintf("build cancelled: %s not built", joinTriples(e.Cancelled))
	}
	msg := fmt.Sprintf("%d target(s) failed to build: %s", len(e.Failed), joinTriples(e.Failed))
	if len(e.Cancelled) > 0 {
		msg += fmt.Sprintf(" (%d cancelled)", len(e.Cancelled))
	}
	return msg
}

func joinTriples(results []Result) string {
	triples := make([]string, 0, len(results))
	for _, r := range results {
		triples = append(triples, r.Descriptor.Triple())
	}
	return strings.Join(triples, ", ")
}

// Unwrap returns ErrBuild for errors.Is() compatibility.
func (e *BuildFailedError) Unwrap() error { return ErrBuild }

// Failed returns the failed results in order. Cancelled builds are not
// failures.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Success && !r.Cancelled {
			out = append(out, r)
		}
	}
	return out
}

// Cancelled returns the cancelled results in order.
func Cancelled(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Cancelled {
			out = append(out, r)
		}
	}
	return out
}

// Run builds every descriptor in req and returns one Result per descriptor,
// in descriptor order. onPlatform may be nil.
//
// The returned error is a *BuildFailedError when any build failed. Otherwise
// it carries the errors returned by onPlatform, if any.
func (o *Orchestrator) Run(ctx context.Context, req Request, onPlatform PlatformFunc) ([]Result, error) {
	logger := o.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	jobs := o.Jobs
	if jobs < 1 {
		jobs = DefaultJobs
	}

	results := make([]Result, len(req.Descriptors))
	groups := make(map[target.Platform]*platformGroup)
	for i, d := range req.Descriptors {
		g, ok := groups[d.Platform()]
		if !ok {
			g = &platformGroup{}
			groups[d.Platform()] = g
		}
		g.indexes = append(g.indexes, i)
		g.remaining++
	}

	var (
		mu           sync.Mutex
		anyFailed    bool
		callbackErrs []error
	)

	p := pool.New().WithMaxGoroutines(jobs).WithContext(ctx)
	if o.FailFast {
		p = p.WithCancelOnError()
	}

	for i, d := range req.Descriptors {
		p.Go(func(ctx context.Context) error {
			res := o.buildOne(ctx, logger, req, d, TargetDirFor(req, d, jobs))

			mu.Lock()
			results[i] = res
			g := groups[d.Platform()]
			g.remaining--
			if !res.Success {
				g.failed = true
				anyFailed = true
			}
			ready := g.remaining == 0 && !g.failed && !(o.FailFast && anyFailed)
			var group []Result
			if ready && onPlatform != nil {
				group = make([]Result, 0, len(g.indexes))
				for _, idx := range g.indexes {
					group = append(group, results[idx])
				}
			}
			mu.Unlock()

			if !res.Success {
				if o.FailFast {
					return res.Err
				}
				return nil
			}
			if group == nil {
				return nil
			}

			logger.Debug("platform builds complete", "platform", d.Platform().Name())
			if err := onPlatform(ctx, d.Platform(), group); err != nil {
				mu.Lock()
				callbackErrs = append(callbackErrs, err)
				mu.Unlock()
				if o.FailFast {
					return err
				}
			}
			return nil
		})
	}

	// Task errors are reflected in results and callbackErrs.
	_ = p.Wait()

	failed, cancelled := Failed(results), Cancelled(results)
	if len(failed) > 0 || len(cancelled) > 0 {
		return results, &BuildFailedError{Failed: failed, Cancelled: cancelled}
	}
	if len(callbackErrs) > 0 {
		return results, errors.Join(callbackErrs...)
	}
	return results, nil
}

// TargetDirFor returns the cargo target directory for d. A run that builds
// several targets with more than one job splits the base directory
// (req.TargetDir, or <ProjectDir>/target) per triple so cargo's directory
// lock does not serialize the builds. Otherwise it returns req.TargetDir.
func TargetDirFor(req Request, d target.Descriptor, jobs int) string {
	if jobs <= 1 || len(req.Descriptors) <= 1 {
		return req.TargetDir
	}
	base := cmp.Or(req.TargetDir, filepath.Join(req.ProjectDir, "target"))
	return filepath.Join(base, d.Triple())
}

// buildOne runs a single build with a private diagnostics buffer.
func (o *Orchestrator) buildOne(ctx context.Context, logger *log.Logger, req Request, d target.Descriptor, targetDir string) Result {
	res := Result{Descriptor: d}
	tlog := logger.With("target", d.Triple())

	if err := ctx.Err(); err != nil {
		res.Err = err
		res.Cancelled = true
		tlog.Warn("build cancelled before start")
		return res
	}

	var diag bytes.Buffer
	start := time.Now()
	tlog.Info("building")

	artifact, err := o.Toolchain.Build(ctx, toolchain.Invocation{
		Target:     d,
		Profile:    req.Profile,
		ProjectDir: req.ProjectDir,
		TargetDir:  targetDir,
		LibName:    req.LibName,
		Features:   req.Features,
		Args:       req.Args,
		Stdout:     &diag,
		Stderr:     &diag,
	})

	res.Duration = time.Since(start)
	res.Diagnostics = diag.String()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if !errors.Is(err, ctxErr) {
				err = fmt.Errorf("%w: %w", ctxErr, err)
			}
			res.Err = err
			res.Cancelled = true
			tlog.Warn("build cancelled", "duration", res.Duration.Round(time.Millisecond))
			return res
		}
		res.Err = err
		tlog.Error("build failed", "err", err, "duration", res.Duration.Round(time.Millisecond))
		return res
	}

	res.Success = true
	res.ArtifactPath = artifact.Path
	tlog.Info("built", "artifact", artifact.Path, "duration", res.Duration.Round(time.Millisecond))
	return res
}
