// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"cargo-pod/internal/build"
	"cargo-pod/internal/toolchain"
	"cargo-pod/pkg/target"
)

type (
	// Assembler builds slices and bundle layouts.
	Assembler struct {
		Merger toolchain.Merger
		Logger *log.Logger
		// WorkDir holds intermediate slices under WorkDir/slices.
		WorkDir string
		// LibName is the static library file name inside each slice.
		LibName string
	}

	// Group is the successful results of one platform.
	Group struct {
		Platform target.Platform
		Results  []build.Result
	}
)

// Group collects successful results by platform, in first-seen order.
// Failed results are ignored.
func (a *Assembler) Group(results []build.Result) []Group {
	var groups []Group
	index := make(map[target.Platform]int)
	for _, r := range results {
		if !r.Success {
			continue
		}
		p := r.Descriptor.Platform()
		i, ok := index[p]
		if !ok {
			i = len(groups)
			index[p] = i
			groups = append(groups, Group{Platform: p})
		}
		groups[i].Results = append(groups[i].Results, r)
	}
	return groups
}

// AssembleSlice produces the slice for one platform. A single input is
// copied unchanged; several inputs are checked for compatibility and merged.
func (a *Assembler) AssembleSlice(ctx context.Context, platform target.Platform, results []build.Result) (PlatformSlice, error) {
	if len(results) == 0 {
		return PlatformSlice{}, &ArchitectureMergeError{Platform: platform, Reason: "no libraries to assemble"}
	}

	archs := make([]target.Arch, 0, len(results))
	seen := make(map[target.Arch]bool)
	for _, r := range results {
		if r.Descriptor.Platform() != platform {
			return PlatformSlice{}, &ArchitectureMergeError{
				Platform: platform,
				Reason:   fmt.Sprintf("%s belongs to %s", r.Descriptor.Triple(), r.Descriptor.Platform().DisplayName()),
			}
		}
		if seen[r.Descriptor.Arch] {
			return PlatformSlice{}, &ArchitectureMergeError{
				Platform: platform,
				Reason:   "duplicate architecture " + string(r.Descriptor.Arch),
			}
		}
		seen[r.Descriptor.Arch] = true
		archs = append(archs, r.Descriptor.Arch)
	}

	slice := PlatformSlice{
		Platform:      platform,
		Architectures: SortArchs(archs),
	}
	slice.Identifier = SliceIdentifier(platform, slice.Architectures)
	slice.ArtifactPath = filepath.Join(a.WorkDir, "slices", slice.Identifier, a.libName(results[0].ArtifactPath))

	logger := a.logger().With("slice", slice.Identifier)

	if len(results) == 1 {
		if err := copyFile(results[0].ArtifactPath, slice.ArtifactPath); err != nil {
			return PlatformSlice{}, fmt.Errorf("%w: %w", ErrAssembly, err)
		}
		logger.Debug("copied single-architecture slice", "from", results[0].ArtifactPath)
		return slice, nil
	}

	inputs, err := checkCompatible(platform, results)
	if err != nil {
		return PlatformSlice{}, err
	}
	if a.Merger == nil {
		return PlatformSlice{}, &ArchitectureMergeError{Platform: platform, Reason: "no merge strategy configured"}
	}
	if err := os.MkdirAll(filepath.Dir(slice.ArtifactPath), 0o755); err != nil {
		return PlatformSlice{}, fmt.Errorf("%w: %w", ErrAssembly, err)
	}
	if err := a.Merger.Merge(ctx, inputs, slice.ArtifactPath); err != nil {
		return PlatformSlice{}, &ArchitectureMergeError{Platform: platform, Reason: "merge failed", Err: err}
	}
	logger.Info("merged slice", "archs", len(inputs))
	return slice, nil
}

// Layout copies slices into root and writes the Info.plist. The set of slice
// platforms must equal expected.
func (a *Assembler) Layout(ctx context.Context, root string, platformSlices []PlatformSlice, expected []target.Platform) (*BundleLayout, error) {
	if err := CheckPlatforms(platformSlices, expected); err != nil {
		return nil, err
	}

	sorted := slices.Clone(platformSlices)
	slices.SortFunc(sorted, func(x, y PlatformSlice) int { return strings.Compare(x.Identifier, y.Identifier) })

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create bundle root: %w", ErrAssembly, err)
	}

	layout := &BundleLayout{Root: root, InfoDescriptorPath: filepath.Join(root, InfoPlistName)}
	for _, s := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dst := filepath.Join(root, s.Identifier, a.libName(s.ArtifactPath))
		if err := copyFile(s.ArtifactPath, dst); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAssembly, err)
		}
		s.ArtifactPath = dst
		layout.Slices = append(layout.Slices, s)
	}

	if err := WriteInfoPlist(layout.InfoDescriptorPath, NewInfoPlist(layout.Slices)); err != nil {
		return nil, err
	}
	a.logger().Info("bundle laid out", "root", root, "slices", len(layout.Slices))
	return layout, nil
}

// Assemble groups results, builds every slice, and lays out the bundle.
func (a *Assembler) Assemble(ctx context.Context, root string, results []build.Result, expected []target.Platform) (*BundleLayout, error) {
	var built []PlatformSlice
	for _, g := range a.Group(results) {
		s, err := a.AssembleSlice(ctx, g.Platform, g.Results)
		if err != nil {
			return nil, err
		}
		built = append(built, s)
	}
	return a.Layout(ctx, root, built, expected)
}

// CheckPlatforms verifies that slices cover exactly the expected platforms.
func CheckPlatforms(platformSlices []PlatformSlice, expected []target.Platform) error {
	have := make(map[target.Platform]bool)
	for _, s := range platformSlices {
		have[s.Platform] = true
	}
	want := make(map[target.Platform]bool)
	for _, p := range expected {
		want[p] = true
	}

	var missing, unexpected []string
	for p := range want {
		if !have[p] {
			missing = append(missing, p.Name())
		}
	}
	for p := range have {
		if !want[p] {
			unexpected = append(unexpected, p.Name())
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	slices.Sort(missing)
	slices.Sort(unexpected)
	return &MissingPlatformError{Missing: missing, Unexpected: unexpected}
}

// checkCompatible verifies all inputs share one binary format and that the
// architectures they contain agree with their targets.
func checkCompatible(platform target.Platform, results []build.Result) ([]toolchain.MergeInput, error) {
	var (
		inputs []toolchain.MergeInput
		format toolchain.Format
	)
	for _, r := range results {
		info, err := toolchain.DetectFormat(r.ArtifactPath)
		if err != nil {
			return nil, &ArchitectureMergeError{Platform: platform, Reason: "unreadable library " + r.ArtifactPath, Err: err}
		}
		if info.Format == toolchain.FormatFat {
			return nil, &ArchitectureMergeError{Platform: platform, Reason: r.ArtifactPath + " is already a universal binary"}
		}
		if format == "" {
			format = info.Format
		} else if info.Format != format {
			return nil, &ArchitectureMergeError{
				Platform: platform,
				Reason:   fmt.Sprintf("mismatched binary formats %s and %s", format, info.Format),
			}
		}
		if len(info.Archs) > 0 && !slices.Contains(info.Archs, r.Descriptor.Arch) {
			return nil, &ArchitectureMergeError{
				Platform: platform,
				Reason:   fmt.Sprintf("%s contains %v, expected %s", r.ArtifactPath, info.Archs, r.Descriptor.Arch),
			}
		}
		inputs = append(inputs, toolchain.MergeInput{Arch: r.Descriptor.Arch, Path: r.ArtifactPath})
	}
	return inputs, nil
}

func (a *Assembler) libName(fallback string) string {
	if a.LibName != "" {
		return a.LibName
	}
	return filepath.Base(fallback)
}

func (a *Assembler) logger() *log.Logger {
	if a.Logger == nil {
		return log.New(io.Discard)
	}
	return a.Logger
}

// copyFile copies src to a new file at dst, creating parent directories.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
