// SPDX-License-Identifier: MPL-2.0

package target

import (
	"slices"
	"strings"
)

const (
	// ProfileDevice builds for physical iOS devices.
	ProfileDevice Profile = "device"
	// ProfileSimulator builds for the iOS simulator on both Mac architectures.
	ProfileSimulator Profile = "simulator"
	// ProfileDesktop builds a universal macOS library.
	ProfileDesktop Profile = "desktop"
	// ProfileCatalyst builds for Mac Catalyst on both Mac architectures.
	ProfileCatalyst Profile = "catalyst"
	// ProfileIOS is an alias for device and simulator.
	ProfileIOS Profile = "ios"
	// ProfileMacOS is an alias for desktop.
	ProfileMacOS Profile = "macos"
	// ProfileAll is an alias for ios and macos. It is used when nothing is requested.
	ProfileAll Profile = "all"
)

type (
	// Profile is a named set of targets.
	Profile string

	// ProfileInfo describes a profile for listings.
	ProfileInfo struct {
		Name        Profile
		Summary     string
		Descriptors []Descriptor
	}

	supportedTarget struct {
		triple string
		desc   Descriptor
	}

	profileDef struct {
		name     Profile
		summary  string
		triples  []string
		includes []Profile
	}
)

// supported lists every target cargo-pod can build, in canonical order.
var supported = []supportedTarget{
	{triple: "aarch64-apple-ios", desc: Descriptor{OS: OSiOS, Arch: ArchARM64}},
	{triple: "aarch64-apple-ios-sim", desc: Descriptor{OS: OSiOS, Arch: ArchARM64, ABI: ABISimulator}},
	{triple: "x86_64-apple-ios", desc: Descriptor{OS: OSiOS, Arch: ArchX86_64, ABI: ABISimulator}},
	{triple: "aarch64-apple-darwin", desc: Descriptor{OS: OSmacOS, Arch: ArchARM64}},
	{triple: "x86_64-apple-darwin", desc: Descriptor{OS: OSmacOS, Arch: ArchX86_64}},
	{triple: "aarch64-apple-ios-macabi", desc: Descriptor{OS: OSiOS, Arch: ArchARM64, ABI: ABIMacCatalyst}},
	{triple: "x86_64-apple-ios-macabi", desc: Descriptor{OS: OSiOS, Arch: ArchX86_64, ABI: ABIMacCatalyst}},
}

var profileTable = []profileDef{
	{name: ProfileDevice, summary: "iOS devices", triples: []string{"aarch64-apple-ios"}},
	{name: ProfileSimulator, summary: "iOS simulator", triples: []string{"aarch64-apple-ios-sim", "x86_64-apple-ios"}},
	{name: ProfileDesktop, summary: "macOS (universal)", triples: []string{"aarch64-apple-darwin", "x86_64-apple-darwin"}},
	{name: ProfileCatalyst, summary: "Mac Catalyst", triples: []string{"aarch64-apple-ios-macabi", "x86_64-apple-ios-macabi"}},
	{name: ProfileIOS, summary: "device + simulator", includes: []Profile{ProfileDevice, ProfileSimulator}},
	{name: ProfileMacOS, summary: "desktop", includes: []Profile{ProfileDesktop}},
	{name: ProfileAll, summary: "ios + macos", includes: []Profile{ProfileIOS, ProfileMacOS}},
}

// Supported returns every supported descriptor in canonical order.
func Supported() []Descriptor {
	out := make([]Descriptor, 0, len(supported))
	for _, s := range supported {
		out = append(out, s.desc)
	}
	return out
}

// ParseTriple maps a Rust target triple to its descriptor.
func ParseTriple(triple string) (Descriptor, bool) {
	for _, s := range supported {
		if s.triple == triple {
			return s.desc, true
		}
	}
	return Descriptor{}, false
}

// Profiles returns every profile with its expanded descriptors, in listing order.
func Profiles() []ProfileInfo {
	out := make([]ProfileInfo, 0, len(profileTable))
	for _, def := range profileTable {
		descs, _ := expandProfile(def.name)
		out = append(out, ProfileInfo{Name: def.name, Summary: def.summary, Descriptors: descs})
	}
	return out
}

// IsProfile reports whether name (case-insensitive) is a known profile.
func IsProfile(name string) bool {
	_, ok := lookupProfile(name)
	return ok
}

func lookupProfile(name string) (profileDef, bool) {
	p := Profile(strings.ToLower(strings.TrimSpace(name)))
	for _, def := range profileTable {
		if def.name == p {
			return def, true
		}
	}
	return profileDef{}, false
}

// expandProfile returns the profile's descriptors in definition order,
// following aliases. Duplicates are kept; the resolver removes them.
func expandProfile(name Profile) ([]Descriptor, bool) {
	def, ok := lookupProfile(string(name))
	if !ok {
		return nil, false
	}
	var out []Descriptor
	for _, triple := range def.triples {
		d, _ := ParseTriple(triple)
		out = append(out, d)
	}
	for _, inc := range def.includes {
		descs, _ := expandProfile(inc)
		out = append(out, descs...)
	}
	return out, true
}

// parseTuple parses os/arch[/abi] into a supported descriptor.
func parseTuple(spec string) (Descriptor, bool) {
	parts := strings.Split(spec, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return Descriptor{}, false
	}
	d := Descriptor{OS: normalizeOS(parts[0]), Arch: normalizeArch(parts[1])}
	if len(parts) == 3 {
		d.ABI = normalizeABI(parts[2])
	}
	if valid, _ := d.IsValid(); !valid {
		return Descriptor{}, false
	}
	return d, true
}

// parseSpec expands a single request entry.
func parseSpec(spec string) ([]Descriptor, bool) {
	spec = strings.TrimSpace(spec)
	if descs, ok := expandProfile(Profile(spec)); ok {
		return descs, true
	}
	if d, ok := ParseTriple(spec); ok {
		return []Descriptor{d}, true
	}
	if d, ok := parseTuple(spec); ok {
		return []Descriptor{d}, true
	}
	return nil, false
}

// ProfileNames returns the names of all profiles, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profileTable))
	for _, def := range profileTable {
		names = append(names, string(def.name))
	}
	slices.Sort(names)
	return names
}
