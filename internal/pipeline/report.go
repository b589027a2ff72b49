// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"cargo-pod/internal/assemble"
	"cargo-pod/internal/build"
	"cargo-pod/pkg/target"
)

type (
	// Report summarizes one run. A failed run returns a partial report.
	Report struct {
		RunID       string         `yaml:"run_id"`
		Destination string         `yaml:"destination,omitempty"`
		WorkDir     string         `yaml:"work_dir,omitempty"`
		Targets     []string       `yaml:"targets"`
		Skipped     []SkippedEntry `yaml:"skipped,omitempty"`
		Builds      []BuildEntry   `yaml:"builds,omitempty"`
		Slices      []SliceEntry   `yaml:"slices,omitempty"`
		Bundle      string         `yaml:"bundle,omitempty"`
		Manifest    string         `yaml:"manifest,omitempty"`
		Archive     string         `yaml:"archive,omitempty"`
		Checksum    string         `yaml:"checksum,omitempty"`
		SourceURL   string         `yaml:"source_url,omitempty"`
		Warnings    []string       `yaml:"warnings,omitempty"`
		Error       string         `yaml:"error,omitempty"`
		Phase       Phase          `yaml:"phase,omitempty"`
	}

	// SkippedEntry is a target dropped during resolution.
	SkippedEntry struct {
		Target string `yaml:"target"`
		Reason string `yaml:"reason"`
	}

	// BuildEntry is the outcome of one target build.
	BuildEntry struct {
		Target    string `yaml:"target"`
		Success   bool   `yaml:"success"`
		Duration  string `yaml:"duration"`
		Artifact  string `yaml:"artifact,omitempty"`
		Cancelled bool   `yaml:"cancelled,omitempty"`
		Error     string `yaml:"error,omitempty"`
	}

	// SliceEntry is one library slice of the bundle.
	SliceEntry struct {
		Identifier    string   `yaml:"identifier"`
		Platform      string   `yaml:"platform"`
		Architectures []string `yaml:"architectures"`
	}
)

// WriteReport writes r as YAML to path.
func WriteReport(path string, r *Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// ReadReport parses a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &r, nil
}

func (r *Report) setResolution(res *target.Resolution) {
	r.Targets = res.Triples()
	for _, s := range res.Skipped {
		r.Skipped = append(r.Skipped, SkippedEntry{Target: s.Descriptor.Triple(), Reason: s.Reason})
	}
}

func (r *Report) setBuilds(results []build.Result) {
	r.Builds = make([]BuildEntry, 0, len(results))
	for _, res := range results {
		e := BuildEntry{
			Target:    res.Descriptor.Triple(),
			Success:   res.Success,
			Duration:  res.Duration.Round(time.Millisecond).String(),
			Artifact:  res.ArtifactPath,
			Cancelled: res.Cancelled,
		}
		if res.Err != nil {
			e.Error = res.Err.Error()
		}
		r.Builds = append(r.Builds, e)
	}
}

func (r *Report) setSlices(platformSlices []assemble.PlatformSlice) {
	r.Slices = make([]SliceEntry, 0, len(platformSlices))
	for _, s := range platformSlices {
		archs := make([]string, 0, len(s.Architectures))
		for _, a := range s.Architectures {
			archs = append(archs, string(a))
		}
		r.Slices = append(r.Slices, SliceEntry{Identifier: s.Identifier, Platform: s.Platform.Name(), Architectures: archs})
	}
}
