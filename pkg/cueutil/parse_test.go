// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Settings: {
	jobs?:    int & >=1
	format?:  "zip" | "tgz"
	targets?: [...string]
}
`

type settings struct {
	Jobs    int      `json:"jobs"`
	Format  string   `json:"format"`
	Targets []string `json:"targets"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	res, err := ParseAndDecode[settings]([]byte(testSchema), []byte(`jobs: 4
format: "tgz"
targets: ["ios", "macos"]
`), "#Settings", WithFilename("settings.cue"))
	if err != nil {
		t.Fatalf("ParseAndDecode: %v", err)
	}
	if res.Value.Jobs != 4 || res.Value.Format != "tgz" || len(res.Value.Targets) != 2 {
		t.Errorf("decoded %+v", res.Value)
	}
	if !res.Unified.Exists() {
		t.Error("unified value missing")
	}
}

func TestParseAndDecode_Map(t *testing.T) {
	t.Parallel()

	res, err := ParseAndDecode[map[string]any]([]byte(testSchema), []byte(`format: "zip"`), "#Settings", WithConcrete(false))
	if err != nil {
		t.Fatalf("ParseAndDecode: %v", err)
	}
	if (*res.Value)["format"] != "zip" {
		t.Errorf("decoded %v", *res.Value)
	}
	if _, ok := (*res.Value)["jobs"]; ok {
		t.Error("optional fields must not appear when unset")
	}
}

func TestParseAndDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		opts []Option
		want string
	}{
		{name: "schema violation", data: `jobs: 0`, want: "settings.cue: jobs"},
		{name: "bad enum", data: `format: "rar"`, want: "format"},
		{name: "closed struct", data: `colour: "red"`, want: "colour"},
		{name: "syntax", data: `jobs: [`, want: "settings.cue"},
		{name: "too large", data: `jobs: 1`, opts: []Option{WithMaxFileSize(2)}, want: "exceeds maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := append([]Option{WithFilename("settings.cue")}, tt.opts...)
			_, err := ParseAndDecode[settings]([]byte(testSchema), []byte(tt.data), "#Settings", opts...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %v does not contain %q", err, tt.want)
			}
			if err != nil && strings.Contains(err.Error(), "#Settings") {
				t.Errorf("error %v leaks the schema definition", err)
			}
		})
	}
}

func TestParseAndDecode_MissingDefinition(t *testing.T) {
	t.Parallel()

	_, err := ParseAndDecode[settings]([]byte(testSchema), []byte(`jobs: 1`), "#Nope")
	if err == nil || !strings.Contains(err.Error(), "#Nope") {
		t.Errorf("expected missing definition error, got %v", err)
	}
}
