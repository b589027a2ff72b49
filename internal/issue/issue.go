// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a class of user-facing problem.
type Id int

const (
	ProjectNotFoundId Id = iota + 1
	NotStaticlibId
	ConfigLoadFailedId
	TargetResolutionFailedId
	HostNotSupportedId
	ToolchainMissingId
	BuildFailedId
	AssemblyFailedId
	InterfaceMissingId
	TemplateInvalidId
	PackagingFailedId
	DestinationInUseId
)

type (
	// MarkdownMsg is guidance text in Markdown.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is remediation guidance for one class of problem.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the issue identifier.
func (i *Issue) Id() Id { return i.id }

// MarkdownMsg returns the raw guidance.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Markdown returns the guidance with its links appended.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(string(i.mdMsg)))
	if len(i.docLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// Render renders the guidance for a terminal using a glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

var (
	render = glamour.Render

	all = []*Issue{
		{
			id: ProjectNotFoundId,
			mdMsg: `
# No Cargo.toml found

cargo-pod packages a Rust crate and needs its manifest.

## Things you can try
- Run the command from the crate root
- Point at the manifest explicitly:
~~~
$ cargo-pod build --manifest-path path/to/Cargo.toml
~~~`,
			docLinks: []HttpLink{"https://doc.rust-lang.org/cargo/reference/manifest.html"},
		},
		{
			id: NotStaticlibId,
			mdMsg: `
# The crate does not build a static library

Apple frameworks link the crate as a static archive.

## Things you can try
- Add the crate type to Cargo.toml:
~~~toml
[lib]
crate-type = ["staticlib"]
~~~`,
			docLinks: []HttpLink{"https://doc.rust-lang.org/reference/linkage.html"},
		},
		{
			id: ConfigLoadFailedId,
			mdMsg: `
# Configuration could not be loaded

## Things you can try
- Check the CUE syntax of the file named above
- Compare it with the effective defaults:
~~~
$ cargo-pod config show
~~~`,
		},
		{
			id: TargetResolutionFailedId,
			mdMsg: `
# Unknown or unsupported target

Targets are profiles (ios, macos, device, simulator, desktop, catalyst, all)
or Rust target triples.

## Things you can try
- List what is available:
~~~
$ cargo-pod targets
~~~`,
		},
		{
			id: HostNotSupportedId,
			mdMsg: `
# Host not supported

Apple targets can only be linked and merged on macOS.

## Things you can try
- Run the build on a macOS machine or CI runner`,
		},
		{
			id: ToolchainMissingId,
			mdMsg: `
# Rust targets are not installed

## Things you can try
- Install the missing standard libraries:
~~~
$ rustup target add aarch64-apple-ios aarch64-apple-ios-sim x86_64-apple-ios
~~~
- Or skip them for this run with ` + "`--missing-toolchain skip`",
			docLinks: []HttpLink{"https://rust-lang.github.io/rustup/cross-compilation.html"},
		},
		{
			id: BuildFailedId,
			mdMsg: `
# One or more targets failed to build

The compiler output of every failed target is shown above, verbatim.

## Things you can try
- Rebuild a single target to iterate faster:
~~~
$ cargo-pod build -t aarch64-apple-ios
~~~
- Use ` + "`--fail-fast`" + ` to stop at the first failure`,
		},
		{
			id: AssemblyFailedId,
			mdMsg: `
# The framework could not be assembled

Per-target libraries are left in the work directory for inspection.

## Things you can try
- Check that every library of a platform was built from the same sources
- Inspect a library with ` + "`lipo -info`",
		},
		{
			id: InterfaceMissingId,
			mdMsg: `
# No public headers found

## Things you can try
- Generate headers (for example with cbindgen) into ` + "`include/`" + `
- Configure where headers live:
~~~toml
[package.metadata.pod]
header-dirs = ["include"]
headers = ["**/*.h"]
~~~`,
		},
		{
			id: TemplateInvalidId,
			mdMsg: `
# The podspec template is invalid

Placeholders use ` + "`{{ key }}`" + ` and must name known values.

## Things you can try
- Write a fresh template and compare:
~~~
$ cargo-pod init
~~~`,
			docLinks: []HttpLink{"https://guides.cocoapods.org/syntax/podspec.html"},
		},
		{
			id: PackagingFailedId,
			mdMsg: `
# Packaging failed

Nothing was written to the destination. The work directory is kept for
debugging.

## Things you can try
- Check free disk space and permissions of the output directory`,
		},
		{
			id: DestinationInUseId,
			mdMsg: `
# The output directory holds other files

cargo-pod only replaces directories it created.

## Things you can try
- Choose an empty or new directory with ` + "`--output`" + `
- Remove the directory if its content is disposable`,
		},
	}

	issues = func() map[Id]*Issue {
		m := make(map[Id]*Issue, len(all))
		for _, i := range all {
			m[i.id] = i
		}
		return m
	}()
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.Clone(all)
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
