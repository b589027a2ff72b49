// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"archive/tar"
	"archive/zip"
	"cmp"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExtraPatterns selects project files shipped next to the bundle.
var DefaultExtraPatterns = []string{"LICENSE*", "README*"}

// archiveEpoch is the modification time stamped on every archive entry.
var archiveEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

type (
	// ArchiveError wraps a failure while writing an archive.
	ArchiveError struct {
		Path string
		Err  error
	}

	entry struct {
		name string // slash-separated path inside the archive
		src  string
		mode fs.FileMode
		link string
	}
)

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archiving %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrPackaging and the underlying cause.
func (e *ArchiveError) Unwrap() []error { return []error{ErrPackaging, e.Err} }

// Archive writes roots into a single archive at out. Each root (a directory
// or a file) is stored under its base name. Entries are sorted by name and
// carry a fixed timestamp and normalized permissions, so identical inputs
// produce identical bytes. The archive is written to a temporary file next to
// out and renamed into place; out is left untouched on failure.
func (p *Packager) Archive(ctx context.Context, roots []string, out string, format Format) (err error) {
	if ok, errs := format.IsValid(); !ok {
		return &ArchiveError{Path: out, Err: errs[0]}
	}

	entries, err := collectEntries(roots)
	if err != nil {
		return &ArchiveError{Path: out, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return &ArchiveError{Path: out, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*")
	if err != nil {
		return &ArchiveError{Path: out, Err: err}
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	switch format {
	case FormatTarGz:
		err = writeTarGz(ctx, tmp, entries)
	default:
		err = writeZip(ctx, tmp, entries)
	}
	if err != nil {
		return &ArchiveError{Path: out, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &ArchiveError{Path: out, Err: err}
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return &ArchiveError{Path: out, Err: err}
	}
	if err = os.Rename(tmp.Name(), out); err != nil {
		return &ArchiveError{Path: out, Err: err}
	}

	p.logger().Debug("archive written", "path", out, "format", format, "entries", len(entries))
	return nil
}

// ExtraFiles returns the regular files in dir matching any of the patterns,
// sorted and without duplicates. Patterns use doublestar syntax relative to dir.
func ExtraFiles(dir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: invalid pattern %q", ErrPackaging, pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: matching %q: %w", ErrPackaging, pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			info, err := fs.Stat(fsys, m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[m] = true
			files = append(files, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	slices.Sort(files)
	return files, nil
}

func collectEntries(roots []string) ([]entry, error) {
	var entries []entry
	names := make(map[string]bool)
	add := func(e entry) error {
		if names[e.name] {
			return fmt.Errorf("duplicate archive entry %q", e.name)
		}
		names[e.name] = true
		entries = append(entries, e)
		return nil
	}

	for _, root := range roots {
		base := filepath.Base(root)
		walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return relErr
			}
			name := path.Join(base, filepath.ToSlash(rel))

			info, infoErr := d.Info()
			if infoErr != nil {
				return infoErr
			}
			e, entryErr := newEntry(name, p, info)
			if entryErr != nil {
				return entryErr
			}
			return add(e)
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}

	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.name, b.name) })
	return entries, nil
}

func newEntry(name, src string, info fs.FileInfo) (entry, error) {
	switch {
	case info.IsDir():
		return entry{name: name + "/", src: src, mode: fs.ModeDir | 0o755}, nil
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return entry{}, err
		}
		return entry{name: name, src: src, mode: fs.ModeSymlink | 0o777, link: target}, nil
	case info.Mode().IsRegular():
		mode := fs.FileMode(0o644)
		if info.Mode().Perm()&0o111 != 0 {
			mode = 0o755
		}
		return entry{name: name, src: src, mode: mode}, nil
	default:
		return entry{}, fmt.Errorf("unsupported file type %s: %s", info.Mode().Type(), src)
	}
}

func writeZip(ctx context.Context, w io.Writer, entries []entry) (err error) {
	zw := zip.NewWriter(w)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: archiveEpoch}
		hdr.SetMode(e.mode)
		if e.mode.IsDir() {
			hdr.Method = zip.Store
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("creating entry %s: %w", e.name, err)
		}

		switch {
		case e.mode.IsDir():
		case e.mode&fs.ModeSymlink != 0:
			if _, err := io.WriteString(fw, e.link); err != nil {
				return err
			}
		default:
			if err := copyInto(fw, e.src); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeTarGz(ctx context.Context, w io.Writer, entries []entry) (err error) {
	gw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(gw)
	defer func() {
		if closeErr := tw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if closeErr := gw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr := &tar.Header{
			Name:    e.name,
			Mode:    int64(e.mode.Perm()),
			ModTime: archiveEpoch,
		}
		switch {
		case e.mode.IsDir():
			hdr.Typeflag = tar.TypeDir
		case e.mode&fs.ModeSymlink != 0:
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
		default:
			info, err := os.Stat(e.src)
			if err != nil {
				return err
			}
			hdr.Typeflag = tar.TypeReg
			hdr.Size = info.Size()
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing header %s: %w", e.name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if err := copyInto(tw, e.src); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyInto(w io.Writer, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}
