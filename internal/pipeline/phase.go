// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
)

// Exit codes returned by Phase.ExitCode.
const (
	ExitOther      = 1
	ExitResolution = 2
	ExitBuild      = 3
	ExitAssembly   = 4
	ExitInterface  = 5
	ExitManifest   = 6
	ExitPackaging  = 7
)

const (
	// PhaseResolution covers target resolution and toolchain checks.
	PhaseResolution Phase = "resolution"
	// PhaseBuild covers native compilation.
	PhaseBuild Phase = "build"
	// PhaseAssembly covers slice merging and bundle layout.
	PhaseAssembly Phase = "assembly"
	// PhaseInterface covers header and module map collection.
	PhaseInterface Phase = "interface"
	// PhaseManifest covers template checks and podspec rendering.
	PhaseManifest Phase = "manifest"
	// PhasePackaging covers archiving, checksums and finalization.
	PhasePackaging Phase = "packaging"
)

type (
	// Phase names a pipeline stage.
	Phase string

	// PhaseError tags a failure with the phase it happened in.
	PhaseError struct {
		Phase Phase
		Err   error
	}
)

// String returns the phase name.
func (p Phase) String() string { return string(p) }

// ExitCode returns the process exit code for a failure in p.
func (p Phase) ExitCode() int {
	switch p {
	case PhaseResolution:
		return ExitResolution
	case PhaseBuild:
		return ExitBuild
	case PhaseAssembly:
		return ExitAssembly
	case PhaseInterface:
		return ExitInterface
	case PhaseManifest:
		return ExitManifest
	case PhasePackaging:
		return ExitPackaging
	default:
		return ExitOther
	}
}

// Error implements the error interface for PhaseError.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *PhaseError) Unwrap() error { return e.Err }

// PhaseOf returns the phase err was tagged with, or "" when untagged.
func PhaseOf(err error) Phase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}

// ExitCode returns 0 for nil, the phase exit code for a tagged error, and
// ExitOther otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return PhaseOf(err).ExitCode()
}

func phaseErr(phase Phase, err error) error {
	if err == nil {
		return nil
	}
	return &PhaseError{Phase: phase, Err: err}
}
