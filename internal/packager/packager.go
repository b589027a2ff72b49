// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"cargo-pod/internal/remote"
)

const (
	// FormatZip writes a deflate-compressed zip archive.
	FormatZip Format = "zip"
	// FormatTarGz writes a gzip-compressed tar archive.
	FormatTarGz Format = "tgz"

	// DefaultVerifyTimeout bounds companion verification when the packager
	// has no explicit timeout.
	DefaultVerifyTimeout = 10 * time.Second
)

var (
	// ErrPackaging is the sentinel wrapped by every packaging failure.
	ErrPackaging = errors.New("packaging failed")

	// ErrInvalidFormat is returned when an archive format is not supported.
	ErrInvalidFormat = errors.New("invalid archive format")
)

type (
	// Format is an archive container format.
	Format string

	// InvalidFormatError is returned when a Format value is not recognized.
	InvalidFormatError struct {
		Value Format
	}

	// Packager archives, checksums and finalizes bundles.
	Packager struct {
		Logger        *log.Logger
		Verifier      remote.Verifier
		VerifyTimeout time.Duration
	}
)

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid archive format %q (valid: zip, tgz)", e.Value)
}

// Unwrap returns ErrInvalidFormat so callers can use errors.Is for programmatic detection.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// String returns the string representation of the Format.
func (f Format) String() string { return string(f) }

// IsValid returns whether the Format is one of the defined archive formats,
// and a list of validation errors if it is not.
func (f Format) IsValid() (bool, []error) {
	switch f {
	case FormatZip, FormatTarGz:
		return true, nil
	default:
		return false, []error{&InvalidFormatError{Value: f}}
	}
}

// Extension returns the file name suffix for archives of this format.
func (f Format) Extension() string {
	if f == FormatTarGz {
		return ".tar.gz"
	}
	return ".zip"
}

// ArchiveName returns the archive file name for a bundle base name.
func ArchiveName(base string, f Format) string {
	return base + f.Extension()
}

func (p *Packager) logger() *log.Logger {
	if p.Logger == nil {
		return log.New(io.Discard)
	}
	return p.Logger
}
