// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	// ErrManifest is the sentinel wrapped by every manifest error.
	ErrManifest = errors.New("manifest error")

	keyPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

type (
	// Template is a parsed manifest template.
	Template struct {
		name     string
		segments []segment
		keys     []string
	}

	segment struct {
		text string
		key  string
	}

	// MissingPlaceholderValueError lists template keys without a value.
	// It wraps ErrManifest for errors.Is() compatibility.
	MissingPlaceholderValueError struct {
		Template string
		Keys     []string
	}

	// TemplateSyntaxError is returned for a malformed placeholder.
	// It wraps ErrManifest for errors.Is() compatibility.
	TemplateSyntaxError struct {
		Template string
		Line     int
		Token    string
	}
)

// Error implements the error interface for MissingPlaceholderValueError.
func (e *MissingPlaceholderValueError) Error() string {
	return fmt.Sprintf("template %s references %s with no value", e.Template, quoteKeys(e.Keys))
}

// Unwrap returns ErrManifest for errors.Is() compatibility.
func (e *MissingPlaceholderValueError) Unwrap() error { return ErrManifest }

// Error implements the error interface for TemplateSyntaxError.
func (e *TemplateSyntaxError) Error() string {
	return fmt.Sprintf("template %s:%d: malformed placeholder %q (want {{key}} with key matching [a-z_][a-z0-9_]*)",
		e.Template, e.Line, e.Token)
}

// Unwrap returns ErrManifest for errors.Is() compatibility.
func (e *TemplateSyntaxError) Unwrap() error { return ErrManifest }

// Parse splits text into literal text and {{key}} placeholders. Spaces
// inside the braces are allowed.
func Parse(name, text string) (*Template, error) {
	t := &Template{name: name}
	seen := make(map[string]bool)

	rest := text
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			t.segments = append(t.segments, segment{text: rest})
			break
		}
		closeIdx := strings.Index(rest[open+2:], "}}")
		line := strings.Count(text[:len(text)-len(rest)+open], "\n") + 1
		if closeIdx < 0 {
			return nil, &TemplateSyntaxError{Template: name, Line: line, Token: truncate(rest[open:])}
		}
		token := rest[open : open+2+closeIdx+2]
		key := strings.TrimSpace(rest[open+2 : open+2+closeIdx])
		if !keyPattern.MatchString(key) {
			return nil, &TemplateSyntaxError{Template: name, Line: line, Token: token}
		}

		t.segments = append(t.segments, segment{text: rest[:open]}, segment{key: key})
		if !seen[key] {
			seen[key] = true
			t.keys = append(t.keys, key)
		}
		rest = rest[open+len(token):]
	}

	slices.Sort(t.keys)
	return t, nil
}

// MustParse is like Parse but panics on error. It is meant for embedded
// templates.
func MustParse(name, text string) *Template {
	t, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name used in errors.
func (t *Template) Name() string { return t.name }

// Keys returns the distinct placeholder keys, sorted.
func (t *Template) Keys() []string { return slices.Clone(t.keys) }

// Check verifies that every placeholder is among available. It lets callers
// reject a template before doing any work.
func (t *Template) Check(available []string) error {
	have := make(map[string]bool, len(available))
	for _, k := range available {
		have[k] = true
	}
	var missing []string
	for _, k := range t.keys {
		if !have[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &MissingPlaceholderValueError{Template: t.name, Keys: missing}
	}
	return nil
}

// Render substitutes values into the template. Values for keys the template
// does not use are ignored.
func (t *Template) Render(values map[string]string) (string, error) {
	if err := t.Check(mapKeys(values)); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, s := range t.segments {
		if s.key == "" {
			b.WriteString(s.text)
			continue
		}
		b.WriteString(values[s.key])
	}
	return b.String(), nil
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func quoteKeys(keys []string) string {
	quoted := make([]string, 0, len(keys))
	for _, k := range keys {
		quoted = append(quoted, "{{"+k+"}}")
	}
	return strings.Join(quoted, ", ")
}

func truncate(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}
