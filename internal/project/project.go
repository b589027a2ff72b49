// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cargo-pod/internal/manifest"
	"cargo-pod/internal/remote"
)

const (
	// ManifestFile is the name of the Cargo manifest.
	ManifestFile = "Cargo.toml"

	// CrateTypeStaticlib is the crate type the pipeline links against.
	CrateTypeStaticlib = "staticlib"
)

var (
	// DefaultHeaderDirs are searched, in order, when the pod metadata names
	// no header directories.
	DefaultHeaderDirs = []string{"headers", "include"}

	// ErrProject is the sentinel wrapped by every project loading failure.
	ErrProject = errors.New("invalid project")

	// ErrNotStaticlib is returned when the [lib] target does not build a static library.
	ErrNotStaticlib = errors.New("crate does not build a staticlib")

	authorPattern = regexp.MustCompile(`^\s*(.+?)(?: <(.+?)>)?\s*$`)
	githubPattern = regexp.MustCompile(`^https://github\.com/(.*?)/(.*?)(?:\.git)?/?$`)
)

type (
	// Package is the [package] table.
	Package struct {
		Name        string   `toml:"name"`
		Version     string   `toml:"version"`
		Description string   `toml:"description"`
		License     string   `toml:"license"`
		Repository  string   `toml:"repository"`
		Homepage    string   `toml:"homepage"`
		Authors     []string `toml:"authors"`
		Metadata    Metadata `toml:"metadata"`
	}

	// Metadata is the [package.metadata] table.
	Metadata struct {
		Pod Pod `toml:"pod"`
	}

	// Pod is the [package.metadata.pod] table.
	Pod struct {
		// Name overrides the pod name derived from the package name.
		Name     string   `toml:"name"`
		Features []string `toml:"features"`
		// HeaderDirs are searched for the public interface, relative to the crate root.
		HeaderDirs []string `toml:"header-dirs"`
		// Headers are doublestar patterns matched inside HeaderDirs.
		Headers           []string          `toml:"headers"`
		RequireHeaders    bool              `toml:"require-headers"`
		DeploymentTargets DeploymentTargets `toml:"deployment-targets"`
		// Template is a podspec template path relative to the crate root.
		Template string `toml:"template"`
	}

	// DeploymentTargets is the [package.metadata.pod.deployment-targets] table.
	DeploymentTargets struct {
		IOS   string `toml:"ios"`
		MacOS string `toml:"macos"`
	}

	// Lib is the [lib] table.
	Lib struct {
		Name       string   `toml:"name"`
		CrateTypes []string `toml:"crate-type"`
	}

	cargoManifest struct {
		Package Package `toml:"package"`
		Lib     Lib     `toml:"lib"`
	}

	// Project is a loaded crate.
	Project struct {
		Dir          string
		ManifestPath string
		Package      Package
		Lib          Lib
	}

	// LoadError wraps a failure to read or decode Cargo.toml.
	LoadError struct {
		Path   string
		Line   int
		Column int
		Err    error
	}

	// NotStaticlibError is returned when [lib] crate-type lacks staticlib.
	NotStaticlibError struct {
		Crate      string
		CrateTypes []string
	}
)

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns ErrProject and the underlying cause.
func (e *LoadError) Unwrap() []error { return []error{ErrProject, e.Err} }

// Error implements the error interface.
func (e *NotStaticlibError) Error() string {
	if len(e.CrateTypes) == 0 {
		return fmt.Sprintf("crate %s has no [lib] crate-type; add crate-type = [\"staticlib\"]", e.Crate)
	}
	return fmt.Sprintf("crate %s builds %s; add \"staticlib\" to [lib] crate-type", e.Crate, strings.Join(e.CrateTypes, ", "))
}

// Unwrap returns ErrNotStaticlib so callers can use errors.Is for programmatic detection.
func (e *NotStaticlibError) Unwrap() error { return ErrNotStaticlib }

// Load reads Cargo.toml from path, which may name the file or the crate directory.
func Load(path string) (*Project, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ManifestFile)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &LoadError{Path: abs, Err: err}
	}
	return Parse(abs, data)
}

// Parse decodes Cargo.toml content. manifestPath locates the crate root.
func Parse(manifestPath string, data []byte) (*Project, error) {
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		le := &LoadError{Path: manifestPath, Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			le.Line, le.Column = derr.Position()
		}
		return nil, le
	}

	if m.Package.Name == "" {
		return nil, &LoadError{Path: manifestPath, Err: errors.New("missing [package] name")}
	}
	if m.Package.Version == "" {
		return nil, &LoadError{Path: manifestPath, Err: errors.New("missing [package] version")}
	}

	return &Project{
		Dir:          filepath.Dir(manifestPath),
		ManifestPath: manifestPath,
		Package:      m.Package,
		Lib:          m.Lib,
	}, nil
}

// CheckStaticlib returns a *NotStaticlibError unless the crate builds a staticlib.
func (p *Project) CheckStaticlib() error {
	if slices.Contains(p.Lib.CrateTypes, CrateTypeStaticlib) {
		return nil
	}
	return &NotStaticlibError{Crate: p.Package.Name, CrateTypes: p.Lib.CrateTypes}
}

// LibName is the library target name with dashes replaced, as cargo names
// the produced archive.
func (p *Project) LibName() string {
	name := p.Lib.Name
	if name == "" {
		name = p.Package.Name
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Pod returns the pod settings.
func (p *Project) Pod() Pod { return p.Package.Metadata.Pod }

// PodName is the metadata override, or the package name in CamelCase.
func (p *Project) PodName() string {
	if n := p.Pod().Name; n != "" {
		return n
	}
	return CamelCase(p.Package.Name)
}

// HeaderDirs returns the absolute directories searched for headers.
func (p *Project) HeaderDirs() []string {
	dirs := p.Pod().HeaderDirs
	if len(dirs) == 0 {
		dirs = DefaultHeaderDirs
	}
	abs := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(p.Dir, d)
		}
		abs = append(abs, d)
	}
	return abs
}

// TemplatePath returns the absolute custom template path, or "" for the default.
func (p *Project) TemplatePath() string {
	t := p.Pod().Template
	if t == "" || filepath.IsAbs(t) {
		return t
	}
	return filepath.Join(p.Dir, t)
}

// Authors parses "Name <email>" author lines. Lines that cannot be parsed are
// returned separately so the caller can warn about them.
func (p *Project) Authors() (authors []manifest.Author, skipped []string) {
	for _, line := range p.Package.Authors {
		m := authorPattern.FindStringSubmatch(line)
		if m == nil || strings.TrimSpace(m[1]) == "" {
			skipped = append(skipped, line)
			continue
		}
		authors = append(authors, manifest.Author{Name: m[1], Email: m[2]})
	}
	return authors, skipped
}

// Homepage prefers [package] homepage and falls back to the repository.
func (p *Project) Homepage() string {
	if p.Package.Homepage != "" {
		return p.Package.Homepage
	}
	return p.Package.Repository
}

// SourceURL derives the release download URL of archive for a GitHub
// repository, tagged v<version>. Other repositories yield manifest.Unknown.
func (p *Project) SourceURL(archive string) string {
	m := githubPattern.FindStringSubmatch(p.Package.Repository)
	if m == nil || m[1] == "" || m[2] == "" {
		return manifest.Unknown
	}
	return remote.ReleaseAssetURL(m[1], m[2], "v"+p.Package.Version, archive)
}

// CamelCase joins the dash, underscore and space separated words of name,
// upper-casing the first letter of each.
func CamelCase(name string) string {
	caser := cases.Title(language.Und, cases.NoLower)
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	var sb strings.Builder
	for _, w := range words {
		sb.WriteString(caser.String(w))
	}
	return sb.String()
}
