// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MissingToolchainFail rejects the request when a resolved target has no
	// installed toolchain.
	MissingToolchainFail MissingToolchainPolicy = "fail"
	// MissingToolchainSkip drops targets without an installed toolchain and
	// records them in Resolution.Skipped.
	MissingToolchainSkip MissingToolchainPolicy = "skip"

	// HostDarwin is the only host able to produce Apple binaries.
	HostDarwin = "darwin"
)

var (
	// ErrResolution is the sentinel wrapped by every resolver error.
	ErrResolution = errors.New("target resolution failed")

	// ErrInvalidMissingToolchainPolicy is returned for an unknown policy value.
	ErrInvalidMissingToolchainPolicy = errors.New("invalid missing-toolchain policy")
)

type (
	// MissingToolchainPolicy decides what happens to requested targets whose
	// Rust toolchain component is not installed on the host.
	MissingToolchainPolicy string

	// Request is the input to Resolve.
	Request struct {
		// Specs are profile names, Rust triples, or os/arch[/abi] tuples in
		// configuration order. Empty means ProfileAll.
		Specs []string
		// Installed is the set of installed Rust triples. Nil means unknown,
		// in which case every target is assumed installed.
		Installed map[string]bool
		// Host is the GOOS-style name of the machine running the build.
		// Empty skips the host check.
		Host string
		// MissingToolchain defaults to MissingToolchainFail.
		MissingToolchain MissingToolchainPolicy
	}

	// Skipped records a target dropped during resolution.
	Skipped struct {
		Descriptor Descriptor
		Reason     string
	}

	// Resolution is the result of Resolve.
	Resolution struct {
		Descriptors []Descriptor
		Skipped     []Skipped
	}

	// UnknownTargetError is returned when request entries match no supported target.
	UnknownTargetError struct {
		Specs []string
	}

	// EmptyTargetSetError is returned when resolution yields no targets.
	EmptyTargetSetError struct {
		Reason string
		// Host is set when the host cannot build Apple targets at all.
		Host string
	}

	// ToolchainNotInstalledError is returned under MissingToolchainFail when
	// resolved targets lack an installed toolchain.
	ToolchainNotInstalledError struct {
		Triples []string
	}
)

// String returns the policy name.
func (p MissingToolchainPolicy) String() string { return string(p) }

// IsValid returns whether the policy is known. The zero value is valid and
// behaves as MissingToolchainFail.
func (p MissingToolchainPolicy) IsValid() (bool, []error) {
	switch p {
	case "", MissingToolchainFail, MissingToolchainSkip:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w: %q (valid: fail, skip)", ErrInvalidMissingToolchainPolicy, string(p))}
	}
}

// Error implements the error interface for UnknownTargetError.
func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target(s): %s (valid: profiles %s, or a supported Rust triple)",
		strings.Join(e.Specs, ", "), strings.Join(ProfileNames(), ", "))
}

// Unwrap returns ErrResolution for errors.Is() compatibility.
func (e *UnknownTargetError) Unwrap() error { return ErrResolution }

// Error implements the error interface for EmptyTargetSetError.
func (e *EmptyTargetSetError) Error() string {
	return "no targets to build: " + e.Reason
}

// Unwrap returns ErrResolution for errors.Is() compatibility.
func (e *EmptyTargetSetError) Unwrap() error { return ErrResolution }

// Error implements the error interface for ToolchainNotInstalledError.
func (e *ToolchainNotInstalledError) Error() string {
	return fmt.Sprintf("rust toolchain not installed for: %s (run `rustup target add %s`)",
		strings.Join(e.Triples, ", "), strings.Join(e.Triples, " "))
}

// Unwrap returns ErrResolution for errors.Is() compatibility.
func (e *ToolchainNotInstalledError) Unwrap() error { return ErrResolution }

// Resolve turns a request into a deduplicated, ordered list of descriptors.
// The first occurrence of a descriptor fixes its position. Resolve has no
// side effects.
func Resolve(req Request) (*Resolution, error) {
	if valid, errs := req.MissingToolchain.IsValid(); !valid {
		return nil, fmt.Errorf("%w: %w", ErrResolution, errors.Join(errs...))
	}

	if req.Host != "" && req.Host != HostDarwin {
		return nil, &EmptyTargetSetError{Reason: fmt.Sprintf("host %q cannot build Apple targets (darwin required)", req.Host), Host: req.Host}
	}

	specs := req.Specs
	if len(specs) == 0 {
		specs = []string{string(ProfileAll)}
	}

	var (
		ordered []Descriptor
		unknown []string
		seen    = make(map[Descriptor]bool)
	)
	for _, spec := range specs {
		descs, ok := parseSpec(spec)
		if !ok {
			unknown = append(unknown, spec)
			continue
		}
		for _, d := range descs {
			if seen[d] {
				continue
			}
			seen[d] = true
			ordered = append(ordered, d)
		}
	}
	if len(unknown) > 0 {
		return nil, &UnknownTargetError{Specs: unknown}
	}

	res := &Resolution{}
	var missing []string
	for _, d := range ordered {
		if req.Installed == nil || req.Installed[d.Triple()] {
			res.Descriptors = append(res.Descriptors, d)
			continue
		}
		if req.MissingToolchain == MissingToolchainSkip {
			res.Skipped = append(res.Skipped, Skipped{Descriptor: d, Reason: "toolchain not installed: " + d.Triple()})
			continue
		}
		missing = append(missing, d.Triple())
	}
	if len(missing) > 0 {
		return nil, &ToolchainNotInstalledError{Triples: missing}
	}

	if len(res.Descriptors) == 0 {
		return nil, &EmptyTargetSetError{Reason: "every requested target was skipped"}
	}
	return res, nil
}

// Platforms returns the distinct platforms of the resolution in first-seen order.
func (r *Resolution) Platforms() []Platform {
	return PlatformsOf(r.Descriptors)
}

// PlatformsOf returns the distinct platforms of descs in first-seen order.
func PlatformsOf(descs []Descriptor) []Platform {
	var out []Platform
	seen := make(map[Platform]bool)
	for _, d := range descs {
		p := d.Platform()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Triples returns the Rust triples of the resolved descriptors.
func (r *Resolution) Triples() []string {
	out := make([]string, 0, len(r.Descriptors))
	for _, d := range r.Descriptors {
		out = append(out, d.Triple())
	}
	return out
}
