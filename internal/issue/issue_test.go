// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValues_OrderedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(DestinationInUseId) {
		t.Fatalf("got %d issues, want %d", len(values), DestinationInUseId)
	}
	for i, v := range values {
		if v.Id() != Id(i+1) {
			t.Errorf("values[%d].Id() = %d, want %d", i, v.Id(), i+1)
		}
		if Get(v.Id()) != v {
			t.Errorf("Get(%d) does not return the same issue", v.Id())
		}
		if !strings.HasPrefix(strings.TrimSpace(string(v.MarkdownMsg())), "# ") {
			t.Errorf("issue %d has no heading", v.Id())
		}
	}

	values[0] = nil
	if Values()[0] == nil {
		t.Error("Values must return a copy")
	}
}

func TestGet_Unknown(t *testing.T) {
	t.Parallel()

	if Get(Id(999)) != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestIssue_Markdown(t *testing.T) {
	t.Parallel()

	md := Get(NotStaticlibId).Markdown()
	if !strings.Contains(md, `crate-type = ["staticlib"]`) {
		t.Errorf("missing remediation:\n%s", md)
	}
	if !strings.Contains(md, "## See also\n- <https://doc.rust-lang.org/reference/linkage.html>") {
		t.Errorf("missing doc link:\n%s", md)
	}

	links := Get(NotStaticlibId).DocLinks()
	links[0] = "changed"
	if Get(NotStaticlibId).DocLinks()[0] == "changed" {
		t.Error("DocLinks must return a copy")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	out, err := Get(BuildFailedId).Render("notty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "One or more targets failed to build") {
		t.Errorf("rendered output lost the heading:\n%s", out)
	}
}
