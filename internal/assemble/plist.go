// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"

	"cargo-pod/internal/headers"
)

const (
	// InfoPlistName is the XCFramework metadata file at the bundle root.
	InfoPlistName = "Info.plist"

	bundlePackageType = "XFWK"
	formatVersion     = "1.0"
)

type (
	// InfoPlist is the XCFramework Info.plist document.
	InfoPlist struct {
		AvailableLibraries       []LibraryEntry `plist:"AvailableLibraries"`
		CFBundlePackageType      string         `plist:"CFBundlePackageType"`
		XCFrameworkFormatVersion string         `plist:"XCFrameworkFormatVersion"`
	}

	// LibraryEntry describes one slice.
	LibraryEntry struct {
		LibraryIdentifier        string   `plist:"LibraryIdentifier"`
		LibraryPath              string   `plist:"LibraryPath"`
		HeadersPath              string   `plist:"HeadersPath,omitempty"`
		SupportedArchitectures   []string `plist:"SupportedArchitectures"`
		SupportedPlatform        string   `plist:"SupportedPlatform"`
		SupportedPlatformVariant string   `plist:"SupportedPlatformVariant,omitempty"`
	}
)

// NewInfoPlist builds the Info.plist for platformSlices, which must already be sorted.
func NewInfoPlist(platformSlices []PlatformSlice) InfoPlist {
	info := InfoPlist{
		CFBundlePackageType:      bundlePackageType,
		XCFrameworkFormatVersion: formatVersion,
		AvailableLibraries:       make([]LibraryEntry, 0, len(platformSlices)),
	}
	for _, s := range platformSlices {
		archs := make([]string, 0, len(s.Architectures))
		for _, a := range s.Architectures {
			archs = append(archs, string(a))
		}
		info.AvailableLibraries = append(info.AvailableLibraries, LibraryEntry{
			LibraryIdentifier:        s.Identifier,
			LibraryPath:              filepath.Base(s.ArtifactPath),
			SupportedArchitectures:   archs,
			SupportedPlatform:        s.Platform.PlistPlatform(),
			SupportedPlatformVariant: s.Platform.PlistVariant(),
		})
	}
	return info
}

// WriteInfoPlist writes info as an XML property list.
func WriteInfoPlist(path string, info InfoPlist) error {
	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrAssembly, InfoPlistName, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrAssembly, path, err)
	}
	return nil
}

// ReadInfoPlist parses an XCFramework Info.plist.
func ReadInfoPlist(path string) (InfoPlist, error) {
	var info InfoPlist
	data, err := os.ReadFile(path)
	if err != nil {
		return info, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("decode %s: %w", path, err)
	}
	return info, nil
}

// AttachHeaders installs surface into every slice of l and records the
// headers location in Info.plist. An empty surface leaves l unchanged.
func (l *BundleLayout) AttachHeaders(surface *headers.Surface) error {
	if surface == nil || len(surface.Headers) == 0 {
		return nil
	}
	for _, s := range l.Slices {
		if err := surface.Install(filepath.Join(l.Root, s.Identifier)); err != nil {
			return fmt.Errorf("%w: %w", ErrAssembly, err)
		}
	}

	info := NewInfoPlist(l.Slices)
	for i := range info.AvailableLibraries {
		info.AvailableLibraries[i].HeadersPath = headers.HeadersDir
	}
	if err := WriteInfoPlist(l.InfoDescriptorPath, info); err != nil {
		return err
	}
	if len(l.Slices) > 0 {
		l.ModuleDescriptorPath = filepath.Join(l.Root, l.Slices[0].Identifier, headers.HeadersDir, headers.ModuleMapName)
	}
	return nil
}
