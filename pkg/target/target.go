// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// OSiOS targets iPhone and iPad hardware and simulators.
	OSiOS OS = "ios"
	// OSmacOS targets Mac computers.
	OSmacOS OS = "macos"

	// ArchARM64 is the 64-bit ARM architecture (Apple silicon, iOS devices).
	ArchARM64 Arch = "arm64"
	// ArchX86_64 is the 64-bit Intel architecture.
	ArchX86_64 Arch = "x86_64"

	// ABIDefault is the plain device/desktop environment.
	ABIDefault ABI = ""
	// ABISimulator is the iOS simulator environment.
	ABISimulator ABI = "simulator"
	// ABIMacCatalyst is the Mac Catalyst environment (iOS APIs on macOS).
	ABIMacCatalyst ABI = "maccatalyst"
)

var (
	// ErrInvalidOS is returned when an OS value is not recognized.
	ErrInvalidOS = errors.New("invalid operating system")
	// ErrInvalidArch is returned when an Arch value is not recognized.
	ErrInvalidArch = errors.New("invalid architecture")
	// ErrInvalidABI is returned when an ABI value is not recognized.
	ErrInvalidABI = errors.New("invalid ABI variant")
	// ErrUnsupportedCombination is returned when a descriptor's fields are valid
	// individually but no supported target matches the combination.
	ErrUnsupportedCombination = errors.New("unsupported target combination")
)

type (
	// OS is the operating system component of a target descriptor.
	OS string

	// Arch is the CPU architecture component of a target descriptor, using
	// Apple's naming (arm64, x86_64).
	Arch string

	// ABI is the environment variant of a target descriptor. The zero value is
	// the default environment.
	ABI string

	// InvalidOSError is returned when an OS value is not recognized.
	// It wraps ErrInvalidOS for errors.Is() compatibility.
	InvalidOSError struct {
		Value OS
	}

	// InvalidArchError is returned when an Arch value is not recognized.
	// It wraps ErrInvalidArch for errors.Is() compatibility.
	InvalidArchError struct {
		Value Arch
	}

	// InvalidABIError is returned when an ABI value is not recognized.
	// It wraps ErrInvalidABI for errors.Is() compatibility.
	InvalidABIError struct {
		Value ABI
	}

	// Descriptor identifies one native build invocation. Two descriptors are
	// the same target exactly when all three fields are equal, so Descriptor
	// values can be compared with == and used as map keys.
	Descriptor struct {
		OS   OS
		Arch Arch
		ABI  ABI
	}

	// Platform groups descriptors that end up merged into one bundle slice.
	Platform struct {
		OS  OS
		ABI ABI
	}
)

// String returns the string representation of the OS.
func (o OS) String() string { return string(o) }

// IsValid returns whether the OS is one of the supported operating systems.
func (o OS) IsValid() (bool, []error) {
	switch o {
	case OSiOS, OSmacOS:
		return true, nil
	default:
		return false, []error{&InvalidOSError{Value: o}}
	}
}

// Error implements the error interface for InvalidOSError.
func (e *InvalidOSError) Error() string {
	return fmt.Sprintf("invalid operating system %q (valid: ios, macos)", e.Value)
}

// Unwrap returns ErrInvalidOS for errors.Is() compatibility.
func (e *InvalidOSError) Unwrap() error { return ErrInvalidOS }

// String returns the string representation of the Arch.
func (a Arch) String() string { return string(a) }

// IsValid returns whether the Arch is one of the supported architectures.
func (a Arch) IsValid() (bool, []error) {
	switch a {
	case ArchARM64, ArchX86_64:
		return true, nil
	default:
		return false, []error{&InvalidArchError{Value: a}}
	}
}

// RustName returns the architecture as it appears in Rust target triples.
func (a Arch) RustName() string {
	if a == ArchARM64 {
		return "aarch64"
	}
	return string(a)
}

// Error implements the error interface for InvalidArchError.
func (e *InvalidArchError) Error() string {
	return fmt.Sprintf("invalid architecture %q (valid: arm64, x86_64)", e.Value)
}

// Unwrap returns ErrInvalidArch for errors.Is() compatibility.
func (e *InvalidArchError) Unwrap() error { return ErrInvalidArch }

// String returns the string representation of the ABI.
func (a ABI) String() string { return string(a) }

// IsValid returns whether the ABI is a known environment variant.
// The zero value is valid and means the default environment.
func (a ABI) IsValid() (bool, []error) {
	switch a {
	case ABIDefault, ABISimulator, ABIMacCatalyst:
		return true, nil
	default:
		return false, []error{&InvalidABIError{Value: a}}
	}
}

// Error implements the error interface for InvalidABIError.
func (e *InvalidABIError) Error() string {
	return fmt.Sprintf("invalid ABI variant %q (valid: simulator, maccatalyst, or empty)", e.Value)
}

// Unwrap returns ErrInvalidABI for errors.Is() compatibility.
func (e *InvalidABIError) Unwrap() error { return ErrInvalidABI }

// IsValid returns whether every field is valid and the combination matches a
// supported target.
func (d Descriptor) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := d.OS.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := d.Arch.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := d.ABI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) == 0 && d.Triple() == "" {
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnsupportedCombination, d))
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

// String renders the descriptor as os/arch[/abi].
func (d Descriptor) String() string {
	if d.ABI == ABIDefault {
		return string(d.OS) + "/" + string(d.Arch)
	}
	return string(d.OS) + "/" + string(d.Arch) + "/" + string(d.ABI)
}

// Triple returns the Rust target triple for the descriptor, or "" when the
// combination is not supported.
func (d Descriptor) Triple() string {
	for _, s := range supported {
		if s.desc == d {
			return s.triple
		}
	}
	return ""
}

// Platform returns the platform group the descriptor belongs to.
func (d Descriptor) Platform() Platform {
	return Platform{OS: d.OS, ABI: d.ABI}
}

// Name returns the machine-readable platform name (ios, ios-simulator, macos,
// ios-maccatalyst).
func (p Platform) Name() string {
	if p.ABI == ABIDefault {
		return string(p.OS)
	}
	return string(p.OS) + "-" + string(p.ABI)
}

// String returns the platform name.
func (p Platform) String() string { return p.Name() }

// DisplayName returns the human-readable platform name.
func (p Platform) DisplayName() string {
	switch {
	case p.OS == OSiOS && p.ABI == ABISimulator:
		return "iOS Simulator"
	case p.OS == OSiOS && p.ABI == ABIMacCatalyst:
		return "Mac Catalyst"
	case p.OS == OSiOS:
		return "iOS"
	case p.OS == OSmacOS:
		return "macOS"
	default:
		return p.Name()
	}
}

// PlistPlatform returns the SupportedPlatform value used in XCFramework
// Info.plist files.
func (p Platform) PlistPlatform() string { return string(p.OS) }

// PlistVariant returns the SupportedPlatformVariant value used in XCFramework
// Info.plist files, or "" for the default environment.
func (p Platform) PlistVariant() string { return string(p.ABI) }

// normalizeOS maps common spellings to an OS value.
func normalizeOS(s string) OS {
	switch strings.ToLower(s) {
	case "ios", "iphoneos":
		return OSiOS
	case "macos", "darwin", "osx", "macosx":
		return OSmacOS
	default:
		return OS(s)
	}
}

// normalizeArch maps common spellings to an Arch value.
func normalizeArch(s string) Arch {
	switch strings.ToLower(s) {
	case "arm64", "aarch64":
		return ArchARM64
	case "x86_64", "x86-64", "amd64", "x64":
		return ArchX86_64
	default:
		return Arch(s)
	}
}

// normalizeABI maps common spellings to an ABI value.
func normalizeABI(s string) ABI {
	switch strings.ToLower(s) {
	case "", "device", "default":
		return ABIDefault
	case "sim", "simulator":
		return ABISimulator
	case "macabi", "catalyst", "maccatalyst":
		return ABIMacCatalyst
	default:
		return ABI(s)
	}
}
