// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cargo-pod/internal/packager"
	"cargo-pod/internal/toolchain"
	"cargo-pod/pkg/target"
)

const (
	// DefaultJobs bounds concurrent cargo invocations.
	DefaultJobs = 2
	// DefaultVerifyTimeout bounds companion verification.
	DefaultVerifyTimeout = 10 * time.Second
	// DefaultIOSDeploymentTarget is the minimum iOS version.
	DefaultIOSDeploymentTarget = "10.0"
	// DefaultMacOSDeploymentTarget is the minimum macOS version.
	DefaultMacOSDeploymentTarget = "10.10"
)

var (
	// ErrInvalidJobs is returned when Jobs is below one.
	ErrInvalidJobs = errors.New("invalid jobs")
	// ErrInvalidTimeout is returned when the verification timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidWorkDir is returned when WorkDir is whitespace-only.
	ErrInvalidWorkDir = errors.New("invalid work dir")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Config holds the application configuration.
	Config struct {
		// Jobs is the number of concurrent target builds.
		Jobs int `json:"jobs" mapstructure:"jobs"`
		// FailFast cancels outstanding builds after the first failure.
		FailFast bool `json:"fail_fast" mapstructure:"fail_fast"`
		// Profile selects the cargo build profile.
		Profile toolchain.Profile `json:"profile" mapstructure:"profile"`
		// MissingToolchain decides what happens to targets without an installed standard library.
		MissingToolchain target.MissingToolchainPolicy `json:"missing_toolchain" mapstructure:"missing_toolchain"`
		// Targets are the default target specs when none are given on the command line.
		Targets []string `json:"targets" mapstructure:"targets"`
		// Archive configures the bundle archive.
		Archive ArchiveConfig `json:"archive" mapstructure:"archive"`
		// Verify configures companion source URL verification.
		Verify VerifyConfig `json:"verify" mapstructure:"verify"`
		// DeploymentTargets are the minimum OS versions written into the podspec.
		DeploymentTargets DeploymentTargetsConfig `json:"deployment_targets" mapstructure:"deployment_targets"`
		// WorkDir overrides the scratch directory.
		WorkDir string `json:"work_dir" mapstructure:"work_dir"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// ArchiveConfig configures the bundle archive.
	ArchiveConfig struct {
		Enabled bool            `json:"enabled" mapstructure:"enabled"`
		Format  packager.Format `json:"format" mapstructure:"format"`
	}

	// VerifyConfig configures companion verification.
	VerifyConfig struct {
		Enabled bool          `json:"enabled" mapstructure:"enabled"`
		Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	}

	// DeploymentTargetsConfig holds minimum OS versions.
	DeploymentTargetsConfig struct {
		IOS   string `json:"ios" mapstructure:"ios"`
		MacOS string `json:"macos" mapstructure:"macos"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// InvalidJobsError is returned when Jobs is below one.
	InvalidJobsError struct {
		Value int
	}

	// InvalidTimeoutError is returned when a timeout is not positive.
	InvalidTimeoutError struct {
		Value time.Duration
	}

	// InvalidWorkDirError is returned when WorkDir is non-empty but whitespace-only.
	InvalidWorkDirError struct {
		Value string
	}

	// InvalidConfigError collects the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidJobsError) Error() string {
	return fmt.Sprintf("invalid jobs %d (must be at least 1)", e.Value)
}

// Unwrap returns ErrInvalidJobs for errors.Is() compatibility.
func (e *InvalidJobsError) Unwrap() error { return ErrInvalidJobs }

// Error implements the error interface.
func (e *InvalidTimeoutError) Error() string {
	return fmt.Sprintf("invalid timeout %s (must be positive)", e.Value)
}

// Unwrap returns ErrInvalidTimeout for errors.Is() compatibility.
func (e *InvalidTimeoutError) Unwrap() error { return ErrInvalidTimeout }

// Error implements the error interface.
func (e *InvalidWorkDirError) Error() string {
	return fmt.Sprintf("invalid work dir %q (must not be whitespace-only)", e.Value)
}

// Unwrap returns ErrInvalidWorkDir for errors.Is() compatibility.
func (e *InvalidWorkDirError) Unwrap() error { return ErrInvalidWorkDir }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// IsValid returns whether the Config has valid fields, delegating to the
// typed values it holds. Target specs are checked later by the resolver,
// which knows the host.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if c.Jobs < 1 {
		errs = append(errs, &InvalidJobsError{Value: c.Jobs})
	}
	if valid, fieldErrs := c.Profile.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.MissingToolchain.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Archive.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.Verify.Timeout <= 0 {
		errs = append(errs, &InvalidTimeoutError{Value: c.Verify.Timeout})
	}
	if c.WorkDir != "" && strings.TrimSpace(c.WorkDir) == "" {
		errs = append(errs, &InvalidWorkDirError{Value: c.WorkDir})
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Jobs:             DefaultJobs,
		FailFast:         false,
		Profile:          toolchain.ProfileRelease,
		MissingToolchain: target.MissingToolchainFail,
		Targets:          []string{string(target.ProfileAll)},
		Archive: ArchiveConfig{
			Enabled: true,
			Format:  packager.FormatZip,
		},
		Verify: VerifyConfig{
			Enabled: false,
			Timeout: DefaultVerifyTimeout,
		},
		DeploymentTargets: DeploymentTargetsConfig{
			IOS:   DefaultIOSDeploymentTarget,
			MacOS: DefaultMacOSDeploymentTarget,
		},
		WorkDir: "", // Will use the user cache dir if empty
		UI: UIConfig{
			Verbose: false,
		},
	}
}
