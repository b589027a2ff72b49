// SPDX-License-Identifier: MPL-2.0

package headers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/sourcegraph/conc/pool"
)

const (
	// DefaultPattern matches every C header below a source directory.
	DefaultPattern = "**/*.h"

	// HeadersDir is the bundle directory headers are copied into.
	HeadersDir = "Headers"
	// ModuleMapName is the module descriptor written inside HeadersDir.
	ModuleMapName = "module.modulemap"

	// NoHeadersWarning is recorded when an optional collection finds nothing.
	NoHeadersWarning = "no public headers found; bundle will not be importable as a module"
)

var (
	// ErrInterface is the sentinel wrapped by interface collection errors.
	ErrInterface = errors.New("interface collection failed")

	// ErrInvalidPattern is returned for a malformed glob pattern.
	ErrInvalidPattern = errors.New("invalid header pattern")
)

type (
	// Request configures one collection.
	Request struct {
		// SourceDirs are searched in order; the first file for a relative
		// path wins.
		SourceDirs []string
		// Patterns are doublestar globs relative to each source dir.
		// Empty means DefaultPattern.
		Patterns []string
		// Required fails the collection when no header matches.
		Required bool
		// ModuleName is the Clang module name.
		ModuleName string
		// LinkName is the library passed to the module's link directive,
		// without the lib prefix and .a suffix.
		LinkName string
	}

	// Header is one collected file.
	Header struct {
		// RelPath is slash-separated and relative to Headers/.
		RelPath string
		Source  string
	}

	// Surface is the collected public interface.
	Surface struct {
		Headers       []Header
		HeadersDir    string
		ModuleMapPath string
		// Warnings are collection problems that did not stop the run.
		Warnings []string

		moduleMap string
	}

	// Collector copies headers and writes the module map.
	Collector struct {
		Logger *log.Logger
		// Jobs bounds concurrent directory walks. Values below 1 walk every
		// source dir at once.
		Jobs int
	}

	// MissingInterfaceError is returned when no header matched and at least
	// one is required.
	MissingInterfaceError struct {
		SourceDirs []string
		Patterns   []string
	}
)

// Error implements the error interface for MissingInterfaceError.
func (e *MissingInterfaceError) Error() string {
	return fmt.Sprintf("no headers matching %s found in %s",
		strings.Join(e.Patterns, ", "), strings.Join(e.SourceDirs, ", "))
}

// Unwrap returns ErrInterface for errors.Is() compatibility.
func (e *MissingInterfaceError) Unwrap() error { return ErrInterface }

// Collect finds headers, copies them into bundleRoot/Headers and writes
// bundleRoot/Headers/module.modulemap. When nothing matches and the request
// does not require headers, it returns an empty Surface carrying
// NoHeadersWarning and writes nothing.
func (c *Collector) Collect(ctx context.Context, req Request, bundleRoot string) (*Surface, error) {
	logger := c.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	patterns := req.Patterns
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %w: %q", ErrInterface, ErrInvalidPattern, p)
		}
	}

	found, err := c.walk(ctx, req.SourceDirs, patterns)
	if err != nil {
		return nil, err
	}
	hdrs := dedupe(logger, found)

	if len(hdrs) == 0 {
		if req.Required {
			return nil, &MissingInterfaceError{SourceDirs: req.SourceDirs, Patterns: patterns}
		}
		return &Surface{Warnings: []string{NoHeadersWarning}}, nil
	}

	surface := &Surface{
		Headers:   hdrs,
		moduleMap: ModuleMap(req.ModuleName, req.LinkName, hdrs),
	}
	if err := surface.Install(bundleRoot); err != nil {
		return nil, err
	}
	surface.HeadersDir = filepath.Join(bundleRoot, HeadersDir)
	surface.ModuleMapPath = filepath.Join(surface.HeadersDir, ModuleMapName)
	logger.Info("collected headers", "count", len(hdrs))
	return surface, nil
}

// Install copies the collected headers and module map into root/Headers.
// It lets one collection serve every library slice of a bundle. Installing
// an empty Surface is a no-op.
func (s *Surface) Install(root string) error {
	if len(s.Headers) == 0 {
		return nil
	}
	dir := filepath.Join(root, HeadersDir)
	for _, h := range s.Headers {
		if err := copyFile(h.Source, filepath.Join(dir, filepath.FromSlash(h.RelPath))); err != nil {
			return fmt.Errorf("%w: %w", ErrInterface, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, ModuleMapName), []byte(s.moduleMap), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrInterface, ModuleMapName, err)
	}
	return nil
}

// ModuleMap renders a Clang module map for hdrs. Header paths are relative
// to the Headers directory the map lives in.
func ModuleMap(moduleName, linkName string, hdrs []Header) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s {\n", moduleName)
	for _, h := range hdrs {
		fmt.Fprintf(&b, "    header %q\n", h.RelPath)
	}
	if linkName != "" {
		fmt.Fprintf(&b, "    link %q\n", linkName)
	}
	b.WriteString("    export *\n}\n")
	return b.String()
}

// walk searches every source dir concurrently. The result keeps source dir
// order, and each dir's matches are sorted.
func (c *Collector) walk(ctx context.Context, dirs []string, patterns []string) ([][]Header, error) {
	out := make([][]Header, len(dirs))

	p := pool.New().WithContext(ctx).WithCancelOnError()
	if c.Jobs > 0 {
		p = p.WithMaxGoroutines(c.Jobs)
	}
	for i, dir := range dirs {
		p.Go(func(ctx context.Context) error {
			hdrs, err := matchDir(ctx, dir, patterns)
			if err != nil {
				return err
			}
			out[i] = hdrs
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInterface, err)
	}
	return out, nil
}

func matchDir(ctx context.Context, dir string, patterns []string) ([]Header, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	fsys := os.DirFS(dir)
	seen := make(map[string]bool)
	var hdrs []Header
	for _, pattern := range patterns {
		err := doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() || seen[path] {
				return nil
			}
			seen[path] = true
			hdrs = append(hdrs, Header{RelPath: path, Source: filepath.Join(dir, filepath.FromSlash(path))})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("search %s for %s: %w", dir, pattern, err)
		}
	}
	slices.SortFunc(hdrs, func(a, b Header) int { return strings.Compare(a.RelPath, b.RelPath) })
	return hdrs, nil
}

// dedupe flattens per-dir matches; the first source of each relative path
// wins and the result is sorted by relative path.
func dedupe(logger *log.Logger, perDir [][]Header) []Header {
	first := make(map[string]Header)
	var out []Header
	for _, hdrs := range perDir {
		for _, h := range hdrs {
			if prev, ok := first[h.RelPath]; ok {
				if !sameContent(prev.Source, h.Source) {
					logger.Warn("conflicting header ignored", "header", h.RelPath, "kept", prev.Source, "ignored", h.Source)
				}
				continue
			}
			first[h.RelPath] = h
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b Header) int { return strings.Compare(a.RelPath, b.RelPath) })
	return out
}

func sameContent(a, b string) bool {
	da, errA := os.ReadFile(a)
	db, errB := os.ReadFile(b)
	return errA == nil && errB == nil && bytes.Equal(da, db)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}
