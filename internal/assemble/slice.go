// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"cargo-pod/pkg/target"
)

// ErrAssembly is the sentinel wrapped by every assembly error.
var ErrAssembly = errors.New("assembly failed")

type (
	// PlatformSlice is the library for one platform, covering one or more
	// architectures.
	PlatformSlice struct {
		Platform target.Platform
		// Architectures is sorted and free of duplicates.
		Architectures []target.Arch
		// ArtifactPath is the merged (or copied) library owned by the slice.
		ArtifactPath string
		// Identifier is the XCFramework library identifier, also used as the
		// slice directory name.
		Identifier string
	}

	// BundleLayout is an assembled bundle on disk.
	BundleLayout struct {
		Root string
		// Slices are sorted by Identifier.
		Slices               []PlatformSlice
		ModuleDescriptorPath string
		InfoDescriptorPath   string
	}

	// ArchitectureMergeError is returned when the libraries of one platform
	// cannot be combined.
	ArchitectureMergeError struct {
		Platform target.Platform
		Reason   string
		Err      error
	}

	// MissingPlatformError is returned when the laid-out slices do not match
	// the expected platforms.
	MissingPlatformError struct {
		Missing    []string
		Unexpected []string
	}
)

// Error implements the error interface for ArchitectureMergeError.
func (e *ArchitectureMergeError) Error() string {
	msg := fmt.Sprintf("cannot merge %s libraries: %s", e.Platform.DisplayName(), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the sentinel and the underlying cause.
func (e *ArchitectureMergeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAssembly}
	}
	return []error{ErrAssembly, e.Err}
}

// Error implements the error interface for MissingPlatformError.
func (e *MissingPlatformError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing slices for "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected slices for "+strings.Join(e.Unexpected, ", "))
	}
	return "bundle platforms do not match the requested targets: " + strings.Join(parts, "; ")
}

// Unwrap returns ErrAssembly for errors.Is() compatibility.
func (e *MissingPlatformError) Unwrap() error { return ErrAssembly }

// SliceIdentifier returns the XCFramework library identifier for a platform
// and architecture set, e.g. ios-arm64_x86_64-simulator.
func SliceIdentifier(platform target.Platform, archs []target.Arch) string {
	sorted := SortArchs(archs)
	names := make([]string, 0, len(sorted))
	for _, a := range sorted {
		names = append(names, string(a))
	}
	id := string(platform.OS) + "-" + strings.Join(names, "_")
	if platform.ABI != target.ABIDefault {
		id += "-" + string(platform.ABI)
	}
	return id
}

// SortArchs returns a sorted copy of archs without duplicates.
func SortArchs(archs []target.Arch) []target.Arch {
	out := slices.Clone(archs)
	slices.Sort(out)
	return slices.Compact(out)
}

// Platforms returns the platforms covered by the layout, sorted by name.
func (l *BundleLayout) Platforms() []target.Platform {
	out := make([]target.Platform, 0, len(l.Slices))
	for _, s := range l.Slices {
		out = append(out, s.Platform)
	}
	slices.SortFunc(out, func(a, b target.Platform) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}
