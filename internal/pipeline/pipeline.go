// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"cargo-pod/internal/assemble"
	"cargo-pod/internal/build"
	"cargo-pod/internal/config"
	"cargo-pod/internal/headers"
	"cargo-pod/internal/manifest"
	"cargo-pod/internal/packager"
	"cargo-pod/internal/project"
	"cargo-pod/internal/remote"
	"cargo-pod/internal/toolchain"
	"cargo-pod/pkg/target"
)

const (
	// DefaultOutputDir is the destination directory below the crate root.
	DefaultOutputDir = "dist"

	// PodspecExtension is appended to the pod name for the manifest file.
	PodspecExtension = ".podspec"

	interfaceDir = "interface"
)

// ErrNoProject is returned when Run is called without a project.
var ErrNoProject = errors.New("no project loaded")

type (
	// InstalledFunc reports the installed Rust triples. A nil map means the
	// set is unknown.
	InstalledFunc func(ctx context.Context) map[string]bool

	// Options are the per-run settings, usually merged from config and flags.
	Options struct {
		Project *project.Project
		// Targets are target specs; empty means every supported target.
		Targets          []string
		Profile          toolchain.Profile
		Jobs             int
		FailFast         bool
		MissingToolchain target.MissingToolchainPolicy
		// Output is the destination directory. Empty uses <crate>/dist.
		Output string
		// TargetDir is passed to cargo. Empty uses <crate>/target.
		TargetDir string
		// TemplatePath overrides the project's template.
		TemplatePath  string
		Archive       bool
		ArchiveFormat packager.Format
		// SourceURL overrides the URL derived from the repository.
		SourceURL         string
		Verify            bool
		VerifyTimeout     time.Duration
		DeploymentTargets manifest.DeploymentTargets
		CargoArgs         []string
		// WorkDir is the parent of the per-run scratch directory. Empty uses
		// the user cache directory.
		WorkDir string
	}

	// Pipeline holds the collaborators shared by runs.
	Pipeline struct {
		Toolchain toolchain.Toolchain
		Merger    toolchain.Merger
		Installed InstalledFunc
		Verifier  remote.Verifier
		Logger    *log.Logger
		// Host is the GOOS of the build machine. Empty uses runtime.GOOS.
		Host string
	}

	// run is the state of one Run call.
	run struct {
		p       *Pipeline
		opts    Options
		proj    *project.Project
		logger  *log.Logger
		report  *Report
		podName string
	}
)

// Run executes every phase for opts.Project. The returned report is never
// nil once the project is set; on failure it describes how far the run got
// and the error is a *PhaseError when the phase is known. A failed run
// leaves the destination untouched and keeps its scratch directory.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Project == nil {
		return nil, ErrNoProject
	}
	logger := p.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	r := &run{
		p:       p,
		opts:    opts,
		proj:    opts.Project,
		report:  &Report{RunID: uuid.NewString()},
		podName: opts.Project.PodName(),
	}
	r.logger = logger.With("run", r.report.RunID[:8])

	if err := r.execute(ctx); err != nil {
		r.report.Error = err.Error()
		r.report.Phase = PhaseOf(err)
		return r.report, err
	}
	return r.report, nil
}

func (r *run) execute(ctx context.Context) error {
	if err := r.proj.CheckStaticlib(); err != nil {
		return err
	}
	if err := toolchain.CheckArgs(r.opts.CargoArgs); err != nil {
		return phaseErr(PhaseBuild, err)
	}

	res, err := r.resolve(ctx)
	if err != nil {
		return phaseErr(PhaseResolution, err)
	}

	tmpl, err := r.loadTemplate()
	if err != nil {
		return phaseErr(PhaseManifest, err)
	}
	m, err := r.baseManifest()
	if err != nil {
		return phaseErr(PhaseManifest, err)
	}

	scratch := filepath.Join(cmp.Or(r.opts.WorkDir, config.CacheDir()), r.report.RunID)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	r.report.WorkDir = scratch

	platformSlices, err := r.build(ctx, res, scratch)
	if err != nil {
		return err
	}

	dest := cmp.Or(r.opts.Output, filepath.Join(r.proj.Dir, DefaultOutputDir))
	staging, err := packager.StagingDir(dest)
	if err != nil {
		return phaseErr(PhasePackaging, err)
	}
	finalized := false
	defer func() {
		if !finalized {
			_ = os.RemoveAll(staging)
		}
	}()

	asm := r.assembler(scratch)
	layout, err := asm.Layout(ctx, filepath.Join(staging, m.VendoredFramework), platformSlices, res.Platforms())
	if err != nil {
		return phaseErr(PhaseAssembly, err)
	}
	r.report.setSlices(layout.Slices)

	if err := r.collectHeaders(ctx, layout, scratch); err != nil {
		return phaseErr(PhaseInterface, err)
	}

	pk := &packager.Packager{Logger: r.logger, Verifier: r.p.Verifier, VerifyTimeout: r.opts.VerifyTimeout}
	archive, err := r.archive(ctx, pk, staging, layout)
	if err != nil {
		return phaseErr(PhasePackaging, err)
	}

	m.Platforms = manifest.PlatformConstraints(layout.Platforms(), r.deploymentTargets())
	m.SourceURL = r.sourceURL(archive)
	if archive != "" {
		d, err := packager.Digest(archive)
		if err != nil {
			return phaseErr(PhasePackaging, err)
		}
		m.Checksum = d.Encoded()
	}

	var pending *packager.Pending
	if r.opts.Verify && m.SourceURL != manifest.Unknown {
		pending = pk.StartVerify(ctx, m.SourceURL)
	}

	podspec, err := m.Render(tmpl)
	if err != nil {
		return phaseErr(PhaseManifest, err)
	}
	podspecPath := filepath.Join(staging, r.podName+PodspecExtension)
	if err := os.WriteFile(podspecPath, []byte(podspec), 0o644); err != nil {
		return phaseErr(PhasePackaging, fmt.Errorf("%w: write podspec: %w", packager.ErrPackaging, err))
	}

	sums := []string{podspecPath}
	if archive != "" {
		sums = append(sums, archive)
	}
	if _, err := packager.WriteChecksums(staging, sums); err != nil {
		return phaseErr(PhasePackaging, err)
	}

	if err := pk.Finalize(staging, dest); err != nil {
		return phaseErr(PhasePackaging, err)
	}
	finalized = true

	r.report.Destination = dest
	r.report.Bundle = filepath.Join(dest, m.VendoredFramework)
	r.report.Manifest = filepath.Join(dest, filepath.Base(podspecPath))
	if archive != "" {
		r.report.Archive = filepath.Join(dest, filepath.Base(archive))
		r.report.Checksum = m.Checksum
	}
	if m.SourceURL != manifest.Unknown {
		r.report.SourceURL = m.SourceURL
	}

	if pending != nil {
		if warning := pending.Wait(); warning != "" {
			r.warn(warning)
		}
	}

	if err := os.RemoveAll(scratch); err != nil {
		r.logger.Debug("could not remove work dir", "path", scratch, "error", err)
	} else {
		r.report.WorkDir = ""
	}
	r.logger.Info("bundle ready", "destination", dest)
	return nil
}

func (r *run) resolve(ctx context.Context) (*target.Resolution, error) {
	var installed map[string]bool
	if r.p.Installed != nil {
		installed = r.p.Installed(ctx)
	}
	res, err := target.Resolve(target.Request{
		Specs:            r.opts.Targets,
		Installed:        installed,
		Host:             cmp.Or(r.p.Host, runtime.GOOS),
		MissingToolchain: r.opts.MissingToolchain,
	})
	if err != nil {
		return nil, err
	}
	r.report.setResolution(res)
	for _, s := range res.Skipped {
		r.warn(fmt.Sprintf("skipped %s: %s", s.Descriptor.Triple(), s.Reason))
	}
	return res, nil
}

// loadTemplate reads the podspec template and checks that every
// placeholder will have a value, so a bad template fails before building.
func (r *run) loadTemplate() (*manifest.Template, error) {
	var tmpl *manifest.Template
	path := cmp.Or(r.opts.TemplatePath, r.proj.TemplatePath())
	if path == "" {
		tmpl = manifest.DefaultTemplate(r.opts.Archive)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read template: %w", manifest.ErrManifest, err)
		}
		if tmpl, err = manifest.Parse(path, string(data)); err != nil {
			return nil, err
		}
	}
	if err := tmpl.Check(manifest.AvailableKeys(r.opts.Archive)); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (r *run) baseManifest() (*manifest.Manifest, error) {
	authors, skipped := r.proj.Authors()
	for _, line := range skipped {
		r.warn(fmt.Sprintf("author %q is not in \"Name <email>\" form; skipped", line))
	}
	m := &manifest.Manifest{
		Name:              r.podName,
		Version:           r.proj.Package.Version,
		Summary:           r.proj.Package.Description,
		License:           r.proj.Package.License,
		Homepage:          r.proj.Homepage(),
		Authors:           authors,
		VendoredFramework: r.podName + ".xcframework",
		XCConfig:          manifest.DefaultXCConfig(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// build runs every target. Outside fail-fast mode each platform is merged
// as soon as its builds finish; in fail-fast mode merging waits for all
// builds so a late failure wastes no merge work.
func (r *run) build(ctx context.Context, res *target.Resolution, scratch string) ([]assemble.PlatformSlice, error) {
	asm := r.assembler(scratch)
	orch := &build.Orchestrator{
		Toolchain: r.p.Toolchain,
		Logger:    r.logger,
		Jobs:      r.opts.Jobs,
		FailFast:  r.opts.FailFast,
	}

	var (
		mu    sync.Mutex
		built []assemble.PlatformSlice
	)
	var onPlatform build.PlatformFunc
	if !r.opts.FailFast {
		onPlatform = func(ctx context.Context, platform target.Platform, results []build.Result) error {
			s, err := asm.AssembleSlice(ctx, platform, results)
			if err != nil {
				return err
			}
			mu.Lock()
			built = append(built, s)
			mu.Unlock()
			return nil
		}
	}

	results, err := orch.Run(ctx, build.Request{
		Descriptors: res.Descriptors,
		Profile:     cmp.Or(r.opts.Profile, toolchain.ProfileRelease),
		ProjectDir:  r.proj.Dir,
		TargetDir:   r.opts.TargetDir,
		LibName:     r.proj.LibName(),
		Features:    r.proj.Pod().Features,
		Args:        r.opts.CargoArgs,
	}, onPlatform)
	r.report.setBuilds(results)
	if err != nil {
		if errors.Is(err, build.ErrBuild) {
			return nil, phaseErr(PhaseBuild, err)
		}
		return nil, phaseErr(PhaseAssembly, err)
	}

	if r.opts.FailFast {
		for _, g := range asm.Group(results) {
			s, err := asm.AssembleSlice(ctx, g.Platform, g.Results)
			if err != nil {
				return nil, phaseErr(PhaseAssembly, err)
			}
			built = append(built, s)
		}
	}
	return built, nil
}

func (r *run) assembler(scratch string) *assemble.Assembler {
	return &assemble.Assembler{
		Merger:  r.p.Merger,
		Logger:  r.logger,
		WorkDir: scratch,
		LibName: toolchain.StaticLibName(r.proj.LibName()),
	}
}

func (r *run) collectHeaders(ctx context.Context, layout *assemble.BundleLayout, scratch string) error {
	pod := r.proj.Pod()
	c := &headers.Collector{Logger: r.logger, Jobs: r.opts.Jobs}
	surface, err := c.Collect(ctx, headers.Request{
		SourceDirs: r.proj.HeaderDirs(),
		Patterns:   pod.Headers,
		Required:   pod.RequireHeaders,
		ModuleName: r.podName,
		LinkName:   r.proj.LibName(),
	}, filepath.Join(scratch, interfaceDir))
	if err != nil {
		return err
	}
	for _, w := range surface.Warnings {
		r.warn(w)
	}
	return layout.AttachHeaders(surface)
}

// archive packs the bundle and the crate's license and readme files into
// staging. It returns "" when archiving is disabled.
func (r *run) archive(ctx context.Context, pk *packager.Packager, staging string, layout *assemble.BundleLayout) (string, error) {
	if !r.opts.Archive {
		return "", nil
	}
	format := cmp.Or(r.opts.ArchiveFormat, packager.FormatZip)
	extras, err := packager.ExtraFiles(r.proj.Dir, packager.DefaultExtraPatterns)
	if err != nil {
		return "", err
	}
	out := filepath.Join(staging, packager.ArchiveName(filepath.Base(layout.Root), format))
	if err := pk.Archive(ctx, append([]string{layout.Root}, extras...), out, format); err != nil {
		return "", err
	}
	return out, nil
}

func (r *run) sourceURL(archive string) string {
	if r.opts.SourceURL != "" {
		return r.opts.SourceURL
	}
	if archive == "" {
		return manifest.Unknown
	}
	return r.proj.SourceURL(filepath.Base(archive))
}

// deploymentTargets prefers the crate's metadata over the run options.
func (r *run) deploymentTargets() manifest.DeploymentTargets {
	dt := r.proj.Pod().DeploymentTargets
	return manifest.DeploymentTargets{
		IOS:   cmp.Or(dt.IOS, r.opts.DeploymentTargets.IOS),
		MacOS: cmp.Or(dt.MacOS, r.opts.DeploymentTargets.MacOS),
	}
}

func (r *run) warn(msg string) {
	r.logger.Warn(msg)
	r.report.Warnings = append(r.report.Warnings, msg)
}
