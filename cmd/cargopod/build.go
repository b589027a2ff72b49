// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cargo-pod/internal/config"
	"cargo-pod/internal/issue"
	"cargo-pod/internal/manifest"
	"cargo-pod/internal/packager"
	"cargo-pod/internal/pipeline"
	"cargo-pod/internal/project"
	"cargo-pod/internal/remote"
	"cargo-pod/internal/toolchain"
	"cargo-pod/pkg/target"
)

// githubTokenEnv authenticates release lookups during verification.
const githubTokenEnv = "GITHUB_TOKEN"

// buildFlags holds the raw flag values of `cargo-pod build`.
type buildFlags struct {
	targets          []string
	ios              bool
	macos            bool
	release          bool
	debug            bool
	output           string
	failFast         bool
	jobs             int
	manifestPath     string
	template         string
	noArchive        bool
	archiveFormat    string
	sourceURL        string
	verify           bool
	report           string
	missingToolchain string
	cargoArgs        string
}

func newBuildCommand(app *App, root *rootOptions) *cobra.Command {
	flags := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the XCFramework and podspec",
		Long: `Build the crate for every requested target, assemble an XCFramework with
the crate's public headers, and write it with a podspec to the output
directory.

Targets are profiles (device, simulator, desktop, catalyst, ios, macos, all)
or Rust target triples. Without --target, --ios or --macos the configured
targets are built.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, app, root, flags)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&flags.targets, "target", "t", nil, "target profile or Rust triple (repeatable)")
	f.BoolVar(&flags.ios, "ios", false, "build iOS device and simulator targets")
	f.BoolVar(&flags.macos, "macos", false, "build macOS targets")
	f.BoolVar(&flags.release, "release", false, "build with the release profile (default)")
	f.BoolVar(&flags.debug, "debug", false, "build with the debug profile")
	f.StringVarP(&flags.output, "output", "o", "", "output directory (default <crate>/"+pipeline.DefaultOutputDir+")")
	f.BoolVar(&flags.failFast, "fail-fast", false, "stop at the first failed build")
	f.IntVarP(&flags.jobs, "jobs", "j", 0, "number of concurrent builds")
	f.StringVar(&flags.manifestPath, "manifest-path", ".", "path to Cargo.toml or the crate directory")
	f.StringVar(&flags.template, "template", "", "podspec template file")
	f.BoolVar(&flags.noArchive, "no-archive", false, "do not archive the bundle")
	f.StringVar(&flags.archiveFormat, "archive-format", "", "archive format (zip, tgz)")
	f.StringVar(&flags.sourceURL, "source-url", "", "podspec source URL (default derived from the repository)")
	f.BoolVar(&flags.verify, "verify", false, "check that the source URL resolves")
	f.StringVar(&flags.report, "report", "", "write a YAML run report to this file")
	f.StringVar(&flags.missingToolchain, "missing-toolchain", "", "targets without an installed toolchain: fail or skip")
	f.StringVar(&flags.cargoArgs, "cargo-args", "", "extra arguments passed to cargo build")
	cmd.MarkFlagsMutuallyExclusive("release", "debug")

	return cmd
}

func runBuild(cmd *cobra.Command, app *App, root *rootOptions, flags *buildFlags) error {
	ctx := cmd.Context()
	cfg, _, err := loadConfig(ctx, app, root)
	if err != nil {
		renderFailure(app, err, root.verbose)
		return &ExitError{Code: pipeline.ExitOther, Err: err}
	}
	logger := newLogger(app.stderr, root.verbose)

	proj, err := project.Load(flags.manifestPath)
	if err != nil {
		err = issue.NewErrorContext().
			WithOperation("load crate manifest").
			WithResource(flags.manifestPath).
			WithIssue(issue.ProjectNotFoundId).
			WithSuggestion("Run cargo-pod from the crate root or pass --manifest-path").
			Wrap(err).
			BuildError()
		renderFailure(app, err, root.verbose)
		return &ExitError{Code: pipeline.ExitOther, Err: err}
	}

	opts, err := pipelineOptions(cmd, flags, cfg, proj)
	if err != nil {
		renderFailure(app, err, root.verbose)
		return &ExitError{Code: pipeline.ExitCode(err), Err: err}
	}

	tc := app.Toolchain
	if tc == nil {
		tc = toolchain.NewCargo(toolchain.WithCargoLogger(logger))
	}
	verifier := app.Verifier
	if verifier == nil {
		verifier = remote.NewAuto(os.Getenv(githubTokenEnv), "cargo-pod/"+Version)
	}
	p := &pipeline.Pipeline{
		Toolchain: tc,
		Merger:    app.Merger,
		Installed: app.Installed,
		Verifier:  verifier,
		Logger:    logger,
		Host:      app.Host,
	}

	report, runErr := p.Run(ctx, opts)
	if flags.report != "" && report != nil {
		if err := pipeline.WriteReport(flags.report, report); err != nil {
			logger.Warn("could not write report", "path", flags.report, "error", err)
		}
	}
	if runErr != nil {
		renderFailure(app, runErr, root.verbose)
		return &ExitError{Code: pipeline.ExitCode(runErr), Err: runErr}
	}

	printSummary(app.stdout, report)
	return nil
}

// pipelineOptions merges flags over configuration. Flags win when given.
func pipelineOptions(cmd *cobra.Command, flags *buildFlags, cfg *config.Config, proj *project.Project) (pipeline.Options, error) {
	opts := pipeline.Options{
		Project:          proj,
		Targets:          selectTargets(flags, cfg),
		Profile:          cfg.Profile,
		Jobs:             cfg.Jobs,
		FailFast:         cfg.FailFast || flags.failFast,
		MissingToolchain: cfg.MissingToolchain,
		Output:           flags.output,
		TemplatePath:     flags.template,
		Archive:          cfg.Archive.Enabled && !flags.noArchive,
		ArchiveFormat:    cfg.Archive.Format,
		SourceURL:        flags.sourceURL,
		Verify:           cfg.Verify.Enabled || flags.verify,
		VerifyTimeout:    cfg.Verify.Timeout,
		DeploymentTargets: manifest.DeploymentTargets{
			IOS:   cfg.DeploymentTargets.IOS,
			MacOS: cfg.DeploymentTargets.MacOS,
		},
		WorkDir: cfg.WorkDir,
	}

	switch {
	case flags.debug:
		opts.Profile = toolchain.ProfileDebug
	case flags.release:
		opts.Profile = toolchain.ProfileRelease
	}
	if cmd.Flags().Changed("jobs") {
		if flags.jobs < 1 {
			return opts, &config.InvalidJobsError{Value: flags.jobs}
		}
		opts.Jobs = flags.jobs
	}
	if flags.archiveFormat != "" {
		opts.ArchiveFormat = packager.Format(flags.archiveFormat)
		if valid, errs := opts.ArchiveFormat.IsValid(); !valid {
			return opts, errs[0]
		}
	}
	if flags.missingToolchain != "" {
		opts.MissingToolchain = target.MissingToolchainPolicy(flags.missingToolchain)
		if valid, errs := opts.MissingToolchain.IsValid(); !valid {
			return opts, &pipeline.PhaseError{Phase: pipeline.PhaseResolution, Err: errs[0]}
		}
	}

	args, err := toolchain.SplitArgs(flags.cargoArgs)
	if err != nil {
		return opts, &pipeline.PhaseError{Phase: pipeline.PhaseBuild, Err: err}
	}
	opts.CargoArgs = args
	return opts, nil
}

// selectTargets returns the explicit targets, the --ios/--macos shortcuts,
// or the configured targets, in that order of preference.
func selectTargets(flags *buildFlags, cfg *config.Config) []string {
	var specs []string
	specs = append(specs, flags.targets...)
	if flags.ios {
		specs = append(specs, string(target.ProfileIOS))
	}
	if flags.macos {
		specs = append(specs, string(target.ProfileMacOS))
	}
	if len(specs) == 0 {
		return cfg.Targets
	}
	return specs
}

func printSummary(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("✓"), TitleStyle.Render("Bundle ready"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("framework:"), CmdStyle.Render(r.Bundle))
	for _, s := range r.Slices {
		fmt.Fprintf(w, "    %s %s\n", CmdStyle.Render(s.Identifier), VerboseStyle.Render(strings.Join(s.Architectures, ", ")))
	}
	fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("podspec:  "), CmdStyle.Render(r.Manifest))
	if r.Archive != "" {
		fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("archive:  "), CmdStyle.Render(r.Archive))
		fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("sha256:   "), r.Checksum)
	}
	if r.SourceURL != "" && r.SourceURL != manifest.Unknown {
		fmt.Fprintf(w, "  %s %s\n", SubtitleStyle.Render("source:   "), r.SourceURL)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "%s %s\n", WarningStyle.Render("!"), warning)
		}
	}
}
