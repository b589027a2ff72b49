// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// CargoOption configures a Cargo.
	CargoOption func(*Cargo)

	// Cargo builds targets by running `cargo build`.
	Cargo struct {
		binary      string
		execCommand ExecCommandFunc
		logger      *log.Logger
	}
)

// forbiddenArgs are flags Cargo sets itself and users may not override.
var forbiddenArgs = []string{"--target", "--target-dir"}

// WithCargoBinary overrides the cargo executable (default "cargo").
func WithCargoBinary(path string) CargoOption {
	return func(c *Cargo) {
		c.binary = path
	}
}

// WithCargoExecCommand sets a custom exec command function for testing.
func WithCargoExecCommand(fn ExecCommandFunc) CargoOption {
	return func(c *Cargo) {
		c.execCommand = fn
	}
}

// WithCargoLogger sets the logger used for command lines.
func WithCargoLogger(logger *log.Logger) CargoOption {
	return func(c *Cargo) {
		c.logger = logger
	}
}

// NewCargo creates a cargo toolchain.
func NewCargo(opts ...CargoOption) *Cargo {
	c := &Cargo{
		binary:      "cargo",
		execCommand: exec.CommandContext,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildArgs returns the cargo arguments for an invocation.
//
// Generated command: cargo build --lib [--release] --target <triple> --target-dir <dir> [--features a,b] [extra...]
func (c *Cargo) BuildArgs(inv Invocation) []string {
	args := []string{"build", "--lib"}
	if inv.Profile != ProfileDebug {
		args = append(args, "--release")
	}
	args = append(args, "--target", inv.Target.Triple(), "--target-dir", targetDir(inv))
	if len(inv.Features) > 0 {
		args = append(args, "--features", strings.Join(inv.Features, ","))
	}
	return append(args, inv.Args...)
}

// ArtifactPath returns where cargo leaves the static library for inv.
func ArtifactPath(inv Invocation) string {
	profile := inv.Profile
	if profile == "" {
		profile = ProfileRelease
	}
	return filepath.Join(targetDir(inv), inv.Target.Triple(), string(profile), StaticLibName(inv.LibName))
}

// Build runs cargo for one target and returns the produced library.
func (c *Cargo) Build(ctx context.Context, inv Invocation) (Artifact, error) {
	if err := validateInvocation(inv); err != nil {
		return Artifact{}, err
	}

	args := c.BuildArgs(inv)
	cmdline := QuoteCommand(c.binary, args)
	c.logger.Debug("running cargo", "target", inv.Target.Triple(), "cmd", cmdline)

	cmd := c.execCommand(ctx, c.binary, args...)
	cmd.Dir = inv.ProjectDir
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Artifact{}, &CommandError{Command: cmdline, Err: ctxErr}
		}
		return Artifact{}, newCommandError(cmdline, err)
	}

	path := ArtifactPath(inv)
	if _, err := os.Stat(path); err != nil {
		return Artifact{}, &MissingArtifactError{Target: inv.Target, Path: path}
	}
	return Artifact{Target: inv.Target, Path: path}, nil
}

// SplitArgs splits a user-supplied argument string with shell word rules
// and rejects flags cargo-pod manages.
func SplitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields, err := shell.Fields(s, nil)
	if err != nil {
		return nil, fmt.Errorf("parse cargo arguments %q: %w", s, err)
	}
	if err := CheckArgs(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// CheckArgs returns a ForbiddenArgError if args set a managed flag.
func CheckArgs(args []string) error {
	for _, arg := range args {
		if arg == "--" {
			return nil
		}
		for _, forbidden := range forbiddenArgs {
			if arg == forbidden || strings.HasPrefix(arg, forbidden+"=") {
				return &ForbiddenArgError{Arg: arg}
			}
		}
	}
	return nil
}

// QuoteCommand renders a command line that can be pasted into a shell.
func QuoteCommand(name string, args []string) string {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{name}, args...) {
		quoted, err := syntax.Quote(w, syntax.LangBash)
		if err != nil {
			quoted = fmt.Sprintf("%q", w)
		}
		words = append(words, quoted)
	}
	return strings.Join(words, " ")
}

func validateInvocation(inv Invocation) error {
	var errs []error
	if valid, targetErrs := inv.Target.IsValid(); !valid {
		errs = append(errs, targetErrs...)
	}
	if inv.Profile != "" {
		if valid, profileErrs := inv.Profile.IsValid(); !valid {
			errs = append(errs, profileErrs...)
		}
	}
	if inv.LibName == "" {
		errs = append(errs, errors.New("library name is required"))
	}
	if err := CheckArgs(inv.Args); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid build invocation: %w", errors.Join(errs...))
	}
	return nil
}

func targetDir(inv Invocation) string {
	if inv.TargetDir != "" {
		return inv.TargetDir
	}
	return filepath.Join(inv.ProjectDir, "target")
}
