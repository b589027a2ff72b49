// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "build targets"},
			expected: "failed to build targets",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "read crate manifest", Resource: "./Cargo.toml"},
			expected: "failed to read crate manifest: ./Cargo.toml",
		},
		{
			name:     "full context",
			err:      &ActionableError{Operation: "read crate manifest", Resource: "./Cargo.toml", Cause: errors.New("no such file")},
			expected: "failed to read crate manifest: ./Cargo.toml: no such file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Chain(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	err := NewErrorContext().
		WithOperation("assemble framework").
		WithIssue(AssemblyFailedId).
		Wrap(fmt.Errorf("merging ios-simulator: %w", sentinel)).
		BuildError()

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is must see through the ActionableError")
	}
	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("expected *ActionableError")
	}
	if ae.Guidance() != Get(AssemblyFailedId) {
		t.Error("Guidance must resolve the linked issue")
	}
	if (&ActionableError{Operation: "x"}).Guidance() != nil {
		t.Error("no issue linked means no guidance")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	err := NewErrorContext().
		WithOperation("resolve targets").
		WithResource("armv7-apple-ios").
		WithSuggestion("Run 'cargo-pod targets'").
		WithSuggestions("Use a profile such as ios").
		Wrap(fmt.Errorf("outer: %w", errors.New("inner"))).
		Build()

	plain := err.Format(false)
	if !strings.Contains(plain, "\n  • Run 'cargo-pod targets'\n  • Use a profile such as ios") {
		t.Errorf("suggestions missing:\n%s", plain)
	}
	if strings.Contains(plain, "Error chain") {
		t.Error("chain must only appear in verbose mode")
	}

	verbose := err.Format(true)
	if !strings.Contains(verbose, "1. outer: inner") || !strings.Contains(verbose, "2. inner") {
		t.Errorf("verbose chain missing:\n%s", verbose)
	}
}

func TestErrorContext_RequiresOperation(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build without operation must return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError without operation must return untyped nil")
	}
	if WrapWithOperation(nil, "x") != nil {
		t.Error("wrapping nil must return nil")
	}
	if got := WrapWithOperation(errors.New("boom"), "write podspec").Error(); got != "failed to write podspec: boom" {
		t.Errorf("WrapWithOperation = %q", got)
	}
}
