// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"bufio"
	"cmp"
	_ "crypto/sha256" // registers sha256 for go-digest
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
)

// ChecksumsFile is the name of the checksum list written next to the bundle.
const ChecksumsFile = "checksums.txt"

var (
	// ErrChecksumMismatch indicates the computed SHA256 hash does not match the expected hash.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrEntryNotFound indicates the requested filename was not found in checksums.txt.
	ErrEntryNotFound = errors.New("file not found in checksums")

	// errNoValidEntries indicates the checksums file contained no parseable entries.
	errNoValidEntries = errors.New("no valid checksum entries found")
)

type (
	// ChecksumEntry represents a SHA256 checksum for one bundle file.
	ChecksumEntry struct {
		Hash     string // Hex-encoded SHA256 hash (64 characters)
		Filename string // File name this hash applies to
	}

	// ChecksumError provides details about a checksum verification failure.
	// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
	ChecksumError struct {
		Filename string
		Expected string
		Got      string
	}
)

// Error returns a human-readable description of the checksum mismatch,
// showing both expected and actual hash values for debugging.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Digest returns the sha256 content digest of the file at path.
func Digest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPackaging, err)
	}
	defer func() { _ = f.Close() }()

	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: hashing file %s: %w", ErrPackaging, path, err)
	}
	return d, nil
}

// ComputeFileHash returns the lowercase hex-encoded SHA256 digest of the file at path.
func ComputeFileHash(path string) (string, error) {
	d, err := Digest(path)
	if err != nil {
		return "", err
	}
	return d.Encoded(), nil
}

// WriteChecksums hashes files and writes dir/checksums.txt in sha256sum
// format, one line per file keyed by base name and sorted by name.
func WriteChecksums(dir string, files []string) (string, error) {
	entries := make([]ChecksumEntry, 0, len(files))
	for _, f := range files {
		hash, err := ComputeFileHash(f)
		if err != nil {
			return "", err
		}
		entries = append(entries, ChecksumEntry{Hash: hash, Filename: filepath.Base(f)})
	}
	slices.SortFunc(entries, func(a, b ChecksumEntry) int { return cmp.Compare(a.Filename, b.Filename) })

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s  %s\n", e.Hash, e.Filename)
	}

	out := filepath.Join(dir, ChecksumsFile)
	if err := os.WriteFile(out, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("%w: writing %s: %w", ErrPackaging, out, err)
	}
	return out, nil
}

// ParseChecksums parses a checksums.txt file in the standard sha256sum output format.
// Each line is expected to be "{sha256_hex}  {filename}" (two spaces between hash
// and filename). Empty lines and lines that don't match the expected format are
// silently skipped. Returns an error if no valid entries are found.
func ParseChecksums(r io.Reader) ([]ChecksumEntry, error) {
	var entries []ChecksumEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			continue
		}

		hash := parts[0]
		filename := strings.TrimSpace(parts[1])
		if filename == "" || !isValidHexHash(hash) {
			continue
		}

		entries = append(entries, ChecksumEntry{
			Hash:     strings.ToLower(hash),
			Filename: filename,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	if len(entries) == 0 {
		return nil, errNoValidEntries
	}
	return entries, nil
}

// FindChecksum searches entries for the given filename and returns its hash.
// Returns ErrEntryNotFound if no entry matches the filename.
func FindChecksum(entries []ChecksumEntry, filename string) (string, error) {
	for _, e := range entries {
		if e.Filename == filename {
			return e.Hash, nil
		}
	}
	return "", ErrEntryNotFound
}

// VerifyFile computes the SHA256 hash of the file at path and compares it with
// expectedHash. Returns nil if the hashes match (case-insensitive comparison),
// or a *ChecksumError wrapping ErrChecksumMismatch if they differ.
func VerifyFile(path, expectedHash string) error {
	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, expectedHash) {
		return &ChecksumError{
			Filename: path,
			Expected: strings.ToLower(expectedHash),
			Got:      got,
		}
	}
	return nil
}

// VerifyDir checks every entry of dir/checksums.txt against the files in dir.
// All mismatches and missing files are reported together.
func VerifyDir(dir string) ([]ChecksumEntry, error) {
	f, err := os.Open(filepath.Join(dir, ChecksumsFile))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	entries, err := ParseChecksums(f)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, e := range entries {
		if !filepath.IsLocal(e.Filename) {
			errs = append(errs, fmt.Errorf("checksum entry %q escapes %s", e.Filename, dir))
			continue
		}
		if err := VerifyFile(filepath.Join(dir, e.Filename), e.Hash); err != nil {
			errs = append(errs, err)
		}
	}
	return entries, errors.Join(errs...)
}

// isValidHexHash checks if s is a valid 64-character hex-encoded SHA256 hash.
func isValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
