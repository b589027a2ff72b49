// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"cargo-pod/pkg/target"
)

const (
	// ProfileDebug builds without optimizations.
	ProfileDebug Profile = "debug"
	// ProfileRelease builds with optimizations. This is the default.
	ProfileRelease Profile = "release"
)

var (
	// ErrToolchain is the sentinel wrapped by every native tool failure.
	ErrToolchain = errors.New("toolchain invocation failed")

	// ErrInvalidProfile is returned for an unknown build profile.
	ErrInvalidProfile = errors.New("invalid build profile")

	// ErrForbiddenArg is returned when extra arguments try to override flags
	// cargo-pod controls.
	ErrForbiddenArg = errors.New("forbidden cargo argument")
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Profile selects the cargo build profile.
	Profile string

	// Invocation is one native build request.
	Invocation struct {
		Target     target.Descriptor
		Profile    Profile
		ProjectDir string
		// TargetDir is passed to cargo as --target-dir. Empty uses
		// <ProjectDir>/target.
		TargetDir string
		// LibName is the library crate name; dashes are allowed.
		LibName  string
		Features []string
		// Args are extra cargo arguments, appended last.
		Args   []string
		Stdout io.Writer
		Stderr io.Writer
	}

	// Artifact is the static library produced by one invocation.
	Artifact struct {
		Target target.Descriptor
		Path   string
	}

	// Toolchain compiles one target.
	Toolchain interface {
		Build(ctx context.Context, inv Invocation) (Artifact, error)
	}

	// MergeInput is one single-architecture library handed to a Merger.
	MergeInput struct {
		Arch target.Arch
		Path string
	}

	// Merger combines single-architecture libraries of one platform into one
	// multi-architecture library at output. Inputs must not be modified.
	Merger interface {
		Merge(ctx context.Context, inputs []MergeInput, output string) error
	}

	// CommandError is returned when a native tool exits unsuccessfully.
	// It wraps ErrToolchain for errors.Is() compatibility.
	CommandError struct {
		Command  string
		ExitCode int
		Err      error
	}

	// MissingArtifactError is returned when cargo succeeds but the expected
	// library is not on disk.
	MissingArtifactError struct {
		Target target.Descriptor
		Path   string
	}

	// ForbiddenArgError is returned when extra arguments contain a flag
	// cargo-pod sets itself.
	ForbiddenArgError struct {
		Arg string
	}
)

// String returns the profile name.
func (p Profile) String() string { return string(p) }

// IsValid returns whether the profile is debug or release.
func (p Profile) IsValid() (bool, []error) {
	switch p {
	case ProfileDebug, ProfileRelease:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q (valid: debug, release)", ErrInvalidProfile, string(p))}
	}
}

// Error implements the error interface for CommandError.
func (e *CommandError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

// Unwrap returns the sentinel and the underlying cause.
func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolchain}
	}
	return []error{ErrToolchain, e.Err}
}

// Error implements the error interface for MissingArtifactError.
func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("build for %s reported success but %s does not exist", e.Target.Triple(), e.Path)
}

// Unwrap returns ErrToolchain for errors.Is() compatibility.
func (e *MissingArtifactError) Unwrap() error { return ErrToolchain }

// Error implements the error interface for ForbiddenArgError.
func (e *ForbiddenArgError) Error() string {
	return fmt.Sprintf("cargo argument %q is managed by cargo-pod; use --target on cargo pod instead", e.Arg)
}

// Unwrap returns ErrForbiddenArg for errors.Is() compatibility.
func (e *ForbiddenArgError) Unwrap() error { return ErrForbiddenArg }

// StaticLibName returns the file name cargo gives a staticlib crate.
func StaticLibName(libName string) string {
	return "lib" + strings.ReplaceAll(libName, "-", "_") + ".a"
}

// newCommandError converts an exec error into a CommandError.
func newCommandError(command string, err error) *CommandError {
	cmdErr := &CommandError{Command: command, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	return cmdErr
}
