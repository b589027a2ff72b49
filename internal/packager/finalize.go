// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MarkerFile is written into every finalized destination. Finalize only
// replaces existing non-empty directories that carry it.
const MarkerFile = ".cargo-pod"

// ErrForeignDestination is returned when the destination holds content that
// was not produced by a previous run.
var ErrForeignDestination = errors.New("destination is not a cargo-pod output directory")

type (
	// FinalizeError wraps a failure to move a staged bundle into place.
	FinalizeError struct {
		Dest string
		Err  error
	}
)

// Error implements the error interface.
func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalizing %s: %v", e.Dest, e.Err)
}

// Unwrap returns ErrPackaging and the underlying cause.
func (e *FinalizeError) Unwrap() []error { return []error{ErrPackaging, e.Err} }

// StagingDir creates an empty directory next to dest, on the same filesystem,
// for the bundle to be written into before Finalize.
func StagingDir(dest string) (string, error) {
	dest = filepath.Clean(dest)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &FinalizeError{Dest: dest, Err: err}
	}
	dir := siblingPath(dest, "staging")
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", &FinalizeError{Dest: dest, Err: err}
	}
	return dir, nil
}

// Finalize replaces dest with staging. The previous destination, if any, is
// moved aside, staging is renamed onto dest, and the old copy is removed. On
// failure the previous destination is restored, so dest is either the old
// bundle or the new one and never a mix. Running it again with equal staging
// content leaves an equal destination.
func (p *Packager) Finalize(staging, dest string) error {
	dest = filepath.Clean(dest)

	if err := os.WriteFile(filepath.Join(staging, MarkerFile), []byte("cargo-pod\n"), 0o644); err != nil {
		return &FinalizeError{Dest: dest, Err: err}
	}

	old := ""
	switch info, err := os.Lstat(dest); {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return &FinalizeError{Dest: dest, Err: err}
	case !info.IsDir():
		return &FinalizeError{Dest: dest, Err: fmt.Errorf("%w: not a directory", ErrForeignDestination)}
	default:
		if err := checkOwned(dest); err != nil {
			return &FinalizeError{Dest: dest, Err: err}
		}
		old = siblingPath(dest, "old")
		if err := os.Rename(dest, old); err != nil {
			return &FinalizeError{Dest: dest, Err: err}
		}
	}

	if err := os.Rename(staging, dest); err != nil {
		if old != "" {
			_ = os.Rename(old, dest)
		}
		return &FinalizeError{Dest: dest, Err: err}
	}

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			p.logger().Warn("could not remove previous output", "path", old, "error", err)
		}
	}
	p.logger().Debug("bundle finalized", "dest", dest)
	return nil
}

// checkOwned accepts empty directories and directories carrying MarkerFile.
func checkOwned(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if _, err := os.Stat(filepath.Join(dir, MarkerFile)); err != nil {
		return fmt.Errorf("%w: %s has no %s marker", ErrForeignDestination, dir, MarkerFile)
	}
	return nil
}

func siblingPath(dest, kind string) string {
	return filepath.Join(filepath.Dir(dest), fmt.Sprintf(".%s.%s-%s", filepath.Base(dest), kind, uuid.NewString()))
}
