// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"slices"
	"testing"
)

func TestParseKeys(t *testing.T) {
	t.Parallel()

	tmpl, err := Parse("t", "a={{ b }} c={{a}} again={{b}}\n{ :ruby => 'hash' }")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := tmpl.Keys(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		wantLine int
	}{
		{name: "unclosed", text: "ok\nname={{name", wantLine: 2},
		{name: "uppercase key", text: "{{Name}}", wantLine: 1},
		{name: "expression", text: "line\nline\n{{ name | upper }}", wantLine: 3},
		{name: "empty", text: "{{}}", wantLine: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse("t", tt.text)
			var syntaxErr *TemplateSyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("Parse() error = %v, want *TemplateSyntaxError", err)
			}
			if syntaxErr.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", syntaxErr.Line, tt.wantLine)
			}
			if !errors.Is(err, ErrManifest) {
				t.Error("error does not wrap ErrManifest")
			}
		})
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	tmpl := MustParse("t", "{{greeting}}, {{name}}! {{name}}.")
	got, err := tmpl.Render(map[string]string{"greeting": "Hello", "name": "pod", "unused": "x"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if want := "Hello, pod! pod."; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderMissingValues(t *testing.T) {
	t.Parallel()

	tmpl := MustParse("t", "{{checksum}} {{name}} {{version}}")
	_, err := tmpl.Render(map[string]string{"name": "x"})

	var missing *MissingPlaceholderValueError
	if !errors.As(err, &missing) {
		t.Fatalf("Render() error = %v, want *MissingPlaceholderValueError", err)
	}
	if !slices.Equal(missing.Keys, []string{"checksum", "version"}) {
		t.Errorf("Keys = %v, want every missing key", missing.Keys)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tmpl := MustParse("t", "{{name}} {{checksum}}")
	if err := tmpl.Check(AvailableKeys(true)); err != nil {
		t.Errorf("Check(with checksum) error = %v", err)
	}
	err := tmpl.Check(AvailableKeys(false))
	if !errors.Is(err, ErrManifest) {
		t.Errorf("Check(without checksum) error = %v, want ErrManifest", err)
	}
}
