// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for cargo-pod.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cargo-pod/internal/config"
	"cargo-pod/internal/pipeline"
	"cargo-pod/internal/remote"
	"cargo-pod/internal/toolchain"
)

// cargoSubcommand is the argument cargo inserts when running `cargo pod`.
const cargoSubcommand = "pod"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives it and reaches native tools and the network only through it.
	App struct {
		Config config.Provider
		// Toolchain builds targets. Nil uses cargo with the command's logger.
		Toolchain toolchain.Toolchain
		Merger    toolchain.Merger
		Installed pipeline.InstalledFunc
		// Verifier checks source URLs. Nil uses remote.Auto.
		Verifier remote.Verifier
		// Host overrides the detected host OS.
		Host       string
		stdout     io.Writer
		stderr     io.Writer
		isTerminal func() bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config     config.Provider
		Toolchain  toolchain.Toolchain
		Merger     toolchain.Merger
		Installed  pipeline.InstalledFunc
		Verifier   remote.Verifier
		Host       string
		Stdout     io.Writer
		Stderr     io.Writer
		IsTerminal func() bool
	}

	// rootOptions holds the persistent flags.
	rootOptions struct {
		verbose    bool
		configPath string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Merger == nil {
		deps.Merger = toolchain.NewLipo("", nil)
	}
	if deps.Installed == nil {
		deps.Installed = toolchain.NewRustup("", nil).InstalledTargets
	}
	if deps.IsTerminal == nil {
		stderr := deps.Stderr
		deps.IsTerminal = func() bool {
			f, ok := stderr.(*os.File)
			return ok && term.IsTerminal(int(f.Fd()))
		}
	}

	return &App{
		Config:     deps.Config,
		Toolchain:  deps.Toolchain,
		Merger:     deps.Merger,
		Installed:  deps.Installed,
		Verifier:   deps.Verifier,
		Host:       deps.Host,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		isTerminal: deps.IsTerminal,
	}
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "cargo-pod",
		Short: "Package a Rust static library as an XCFramework and CocoaPods pod",
		Long: TitleStyle.Render("cargo-pod") + SubtitleStyle.Render(" - Rust crates as CocoaPods") + `

cargo-pod builds a staticlib crate for Apple device, simulator and macOS
targets, merges the libraries into an XCFramework with the crate's public
headers, and writes a podspec that CocoaPods can consume.

` + SubtitleStyle.Render("Examples:") + `
  cargo pod build                   Build every supported target
  cargo pod build --ios             Build device and simulator slices only
  cargo pod build -t desktop -j 4   Build a universal macOS slice
  cargo pod targets                 List profiles and installed targets
  cargo pod verify dist             Re-check a bundle's checksums`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is "+config.ConfigFilePath(config.ConfigDir())+")")

	root.AddCommand(
		newBuildCommand(app, opts),
		newTargetsCommand(app),
		newInitCommand(app),
		newVerifyCommand(app),
		newConfigCommand(app, opts),
	)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// cargoArgs drops the subcommand name cargo passes to external subcommands.
func cargoArgs(args []string) []string {
	if len(args) > 0 && args[0] == cargoSubcommand {
		return args[1:]
	}
	return args
}

// Execute runs the CLI. This is called by main.main().
func Execute() {
	root := NewRootCommand(NewApp(Dependencies{}))
	root.SetArgs(cargoArgs(os.Args[1:]))

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// loadConfig loads configuration for a command and applies the verbose
// setting when the flag was not given.
func loadConfig(ctx context.Context, app *App, opts *rootOptions) (*config.Config, string, error) {
	cfg, source, err := app.Config.LoadWithSource(ctx, config.LoadOptions{ConfigFilePath: opts.configPath})
	if err != nil {
		return nil, "", err
	}
	if !opts.verbose {
		opts.verbose = cfg.UI.Verbose
	}
	return cfg, source, nil
}

// newLogger creates the logger handed to every service of one command.
func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "cargo-pod"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
