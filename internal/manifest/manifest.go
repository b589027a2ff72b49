// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"cmp"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"cargo-pod/pkg/target"
)

// Substitution keys supplied by Manifest.Values.
const (
	KeyName               = "name"
	KeyVersion            = "version"
	KeySummary            = "summary"
	KeyLicense            = "license"
	KeyHomepage           = "homepage"
	KeyAuthors            = "authors"
	KeySourceURL          = "source_url"
	KeyChecksum           = "checksum"
	KeyPlatforms          = "platforms"
	KeyVendoredFrameworks = "vendored_frameworks"
	KeyXCConfig           = "xcconfig"

	// Unknown is used for metadata the project does not declare.
	Unknown = "UNKNOWN"

	// DefaultIOSDeploymentTarget is the iOS deployment target used when the
	// project does not set one.
	DefaultIOSDeploymentTarget = "10.0"
	// DefaultMacOSDeploymentTarget is the macOS deployment target used when
	// the project does not set one.
	DefaultMacOSDeploymentTarget = "10.10"
)

var (
	//go:embed podspec.tmpl
	podspecTemplate string

	//go:embed podspec_local.tmpl
	podspecLocalTemplate string

	// ErrInvalidManifest is returned by Validate.
	ErrInvalidManifest = errors.New("invalid manifest")
)

type (
	// Author is one podspec author entry.
	Author struct {
		Name  string
		Email string
	}

	// PlatformConstraint is a CocoaPods platform and its minimum version.
	PlatformConstraint struct {
		// Name is the CocoaPods platform name (ios, osx).
		Name             string
		DeploymentTarget string
	}

	// DeploymentTargets holds the configured minimum OS versions.
	DeploymentTargets struct {
		IOS   string
		MacOS string
	}

	// Manifest is the data rendered into a podspec.
	Manifest struct {
		Name              string
		Version           string
		Summary           string
		License           string
		Homepage          string
		Authors           []Author
		SourceURL         string
		Checksum          string
		Platforms         []PlatformConstraint
		VendoredFramework string
		XCConfig          map[string]string
	}
)

// DefaultTemplate returns the embedded podspec template. The archived form
// pins the archive with {{checksum}}; the local form has no checksum.
func DefaultTemplate(archived bool) *Template {
	if archived {
		return MustParse("podspec.tmpl", podspecTemplate)
	}
	return MustParse("podspec_local.tmpl", podspecLocalTemplate)
}

// DefaultTemplateText returns the source of the embedded template, for
// users who want a starting point for their own.
func DefaultTemplateText(archived bool) string {
	if archived {
		return podspecTemplate
	}
	return podspecLocalTemplate
}

// DefaultXCConfig returns the pod_target_xcconfig entries every pod gets.
func DefaultXCConfig() map[string]string {
	return map[string]string{"ENABLE_BITCODE": "NO"}
}

// AvailableKeys returns the keys Values will produce, given whether a
// checksum will exist. It lets callers check a template before building.
func AvailableKeys(withChecksum bool) []string {
	keys := []string{
		KeyName, KeyVersion, KeySummary, KeyLicense, KeyHomepage, KeyAuthors,
		KeySourceURL, KeyPlatforms, KeyVendoredFrameworks, KeyXCConfig,
	}
	if withChecksum {
		keys = append(keys, KeyChecksum)
	}
	slices.Sort(keys)
	return keys
}

// PlatformConstraints derives CocoaPods platforms from the bundle's slice
// platforms. Any iOS-family slice (device, simulator, Mac Catalyst) yields
// an ios constraint; a macOS slice yields osx. Empty deployment targets use
// the defaults.
func PlatformConstraints(platforms []target.Platform, dt DeploymentTargets) []PlatformConstraint {
	var hasIOS, hasMac bool
	for _, p := range platforms {
		switch p.OS {
		case target.OSiOS:
			hasIOS = true
		case target.OSmacOS:
			hasMac = true
		}
	}

	var out []PlatformConstraint
	if hasIOS {
		out = append(out, PlatformConstraint{Name: "ios", DeploymentTarget: cmp.Or(dt.IOS, DefaultIOSDeploymentTarget)})
	}
	if hasMac {
		out = append(out, PlatformConstraint{Name: "osx", DeploymentTarget: cmp.Or(dt.MacOS, DefaultMacOSDeploymentTarget)})
	}
	return out
}

// Validate checks the fields a podspec cannot do without.
func (m *Manifest) Validate() error {
	var errs []error
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if !isFullSemver(m.Version) {
		errs = append(errs, fmt.Errorf("version %q is not a semantic version", m.Version))
	}
	if m.VendoredFramework == "" {
		errs = append(errs, errors.New("vendored framework is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w: %w", ErrManifest, ErrInvalidManifest, errors.Join(errs...))
	}
	return nil
}

// Values returns the escaped substitution values. The checksum key is only
// present when a checksum is set.
func (m *Manifest) Values() map[string]string {
	values := map[string]string{
		KeyName:               escape(m.Name),
		KeyVersion:            escape(m.Version),
		KeySummary:            escape(orUnknown(m.Summary)),
		KeyLicense:            escape(orUnknown(m.License)),
		KeyHomepage:           escape(orUnknown(m.Homepage)),
		KeyAuthors:            renderAuthors(m.Authors),
		KeySourceURL:          escape(orUnknown(m.SourceURL)),
		KeyPlatforms:          renderPlatforms(m.Platforms),
		KeyVendoredFrameworks: escape(m.VendoredFramework),
		KeyXCConfig:           renderXCConfig(m.XCConfig),
	}
	if m.Checksum != "" {
		values[KeyChecksum] = escape(m.Checksum)
	}
	return values
}

// Render validates m and renders it with t.
func (m *Manifest) Render(t *Template) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	return t.Render(m.Values())
}

// isFullSemver reports whether v is MAJOR.MINOR.PATCH with optional
// prerelease and build suffixes. Shorthands like 1.2 are rejected.
func isFullSemver(v string) bool {
	sv := "v" + v
	core, _, _ := strings.Cut(sv, "+")
	return semver.IsValid(sv) && semver.Canonical(sv) == core
}

// escape makes s safe inside a Ruby single-quoted string.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}

func renderAuthors(authors []Author) string {
	var b strings.Builder
	for _, a := range authors {
		fmt.Fprintf(&b, "    '%s' => '%s',\n", escape(a.Name), escape(a.Email))
	}
	return b.String()
}

func renderPlatforms(platforms []PlatformConstraint) string {
	lines := make([]string, 0, len(platforms))
	for _, p := range platforms {
		lines = append(lines, fmt.Sprintf("  spec.%s.deployment_target = '%s'", p.Name, escape(p.DeploymentTarget)))
	}
	return strings.Join(lines, "\n")
}

func renderXCConfig(config map[string]string) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(config)) {
		fmt.Fprintf(&b, "    '%s' => '%s',\n", escape(k), escape(config[k]))
	}
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}
