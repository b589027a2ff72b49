// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     []string
		expected string
	}{
		{path: nil, expected: ""},
		{path: []string{"jobs"}, expected: "jobs"},
		{path: []string{"archive", "format"}, expected: "archive.format"},
		{path: []string{"targets", "0"}, expected: "targets[0]"},
		{path: []string{"a", "1", "b", "22"}, expected: "a[1].b[22]"},
		{path: []string{"0", "x"}, expected: "0.x"},
		{path: []string{"#Settings", "jobs"}, expected: "jobs"},
		{path: []string{"#Settings", "targets", "1"}, expected: "targets[1]"},
		{path: []string{"#Settings"}, expected: ""},
		{path: []string{"archive", "#Format"}, expected: "archive.#Format"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			t.Parallel()

			if got := formatPath(tt.path); got != tt.expected {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestFormatError_NonCUE(t *testing.T) {
	t.Parallel()

	if FormatError(nil, "x") != nil {
		t.Error("nil in, nil out")
	}

	cause := errors.New("plain")
	err := FormatError(cause, "config.cue")
	if !errors.Is(err, cause) || err.Error() != "config.cue: plain" {
		t.Errorf("unexpected %v", err)
	}

	wrapped := FormatError(fmt.Errorf("read: %w", fs.ErrNotExist), "config.cue")
	if !errors.Is(wrapped, fs.ErrNotExist) {
		t.Errorf("FormatError(%v) lost the cause", wrapped)
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 10), 10, "a.cue"); err != nil {
		t.Errorf("at limit: %v", err)
	}
	err := CheckFileSize(make([]byte, 11), 10, "a.cue")
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum 10 bytes") {
		t.Errorf("over limit: %v", err)
	}
}
