// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

func releaseServer(t *testing.T, tag string, rel githubRelease) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widget/releases/tags/"+tag {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rel); err != nil {
			t.Errorf("encoding release: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetReleaseByTag(t *testing.T) {
	t.Parallel()

	srv := releaseServer(t, "v1.0.0", githubRelease{
		TagName: "v1.0.0",
		Assets:  []githubAsset{{Name: "Widget.zip", BrowserDownloadURL: "https://example.invalid/Widget.zip", Size: 42}},
	})

	client := NewGitHubClient(WithBaseURL(srv.URL))
	got, err := client.GetReleaseByTag(context.Background(), "acme", "widget", "v1.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TagName != "v1.0.0" || len(got.Assets) != 1 || got.Assets[0].Size != 42 {
		t.Errorf("unexpected release: %+v", got)
	}

	_, err = client.GetReleaseByTag(context.Background(), "acme", "widget", "v9.9.9")
	if !errors.Is(err, ErrReleaseNotFound) {
		t.Errorf("expected ErrReleaseNotFound, got %v", err)
	}
}

func TestGetReleaseByTag_RateLimited(t *testing.T) {
	t.Parallel()

	reset := time.Now().Add(time.Hour).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := NewGitHubClient(WithBaseURL(srv.URL))
	_, err := client.GetReleaseByTag(context.Background(), "acme", "widget", "v1.0.0")

	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.Limit != 60 || rle.ResetAt.Unix() != reset {
		t.Errorf("unexpected rate limit details: %+v", rle)
	}
}

func TestDoRequest_TokenOnlyForGitHubHost(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client := NewGitHubClient(WithBaseURL(srv.URL), WithToken("secret"), WithUserAgent("cargo-pod/test"))
	resp, err := client.doRequest(context.Background(), http.MethodGet, srv.URL+"/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = resp.Body.Close()
	h := <-headers
	if gotAuth := h.Get("Authorization"); gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotUA := h.Get("User-Agent"); gotUA != "cargo-pod/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	other := NewGitHubClient(WithBaseURL("https://api.github.com"), WithToken("secret"))
	otherURL, _ := url.Parse(srv.URL)
	if isGitHubHost(otherURL, other.baseURL) {
		t.Error("test server must not be treated as the GitHub host")
	}
}

func TestParseReleaseAssetURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
		want ReleaseAsset
		ok   bool
	}{
		{
			name: "release download",
			ref:  "https://github.com/acme/widget/releases/download/v1.0.0/Widget.zip",
			want: ReleaseAsset{Owner: "acme", Repo: "widget", Tag: "v1.0.0", Asset: "Widget.zip"},
			ok:   true,
		},
		{name: "other host", ref: "https://example.com/acme/widget/releases/download/v1.0.0/Widget.zip"},
		{name: "not a download", ref: "https://github.com/acme/widget/releases/tag/v1.0.0"},
		{name: "too short", ref: "https://github.com/acme/widget"},
		{name: "not a url", ref: "UNKNOWN"},
		{name: "ftp", ref: "ftp://github.com/acme/widget/releases/download/v1.0.0/Widget.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := ParseReleaseAssetURL(tt.ref)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	ref := ReleaseAssetURL("acme", "widget", "v1.0.0", "Widget.zip")
	if got, ok := ParseReleaseAssetURL(ref); !ok || got.Asset != "Widget.zip" {
		t.Errorf("round trip of %q failed: %+v", ref, got)
	}
}

func TestGitHubReleaseVerifier(t *testing.T) {
	t.Parallel()

	srv := releaseServer(t, "v1.0.0", githubRelease{
		TagName: "v1.0.0",
		Assets:  []githubAsset{{Name: "Widget.zip", Size: 7}},
	})
	v := &GitHubReleaseVerifier{Client: NewGitHubClient(WithBaseURL(srv.URL))}
	ctx := context.Background()

	tests := []struct {
		name   string
		ref    string
		status Status
		detail string
	}{
		{name: "present", ref: ReleaseAssetURL("acme", "widget", "v1.0.0", "Widget.zip"), status: StatusOK},
		{name: "missing asset", ref: ReleaseAssetURL("acme", "widget", "v1.0.0", "Other.zip"), status: StatusFailed, detail: "no asset Other.zip"},
		{name: "missing release", ref: ReleaseAssetURL("acme", "widget", "v2.0.0", "Widget.zip"), status: StatusFailed, detail: "not found"},
		{name: "not github", ref: "https://example.com/Widget.zip", status: StatusFailed, detail: "not a GitHub release"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := v.Verify(ctx, tt.ref)
			if got.Status != tt.status {
				t.Fatalf("status = %q, want %q (%s)", got.Status, tt.status, got.Detail)
			}
			if tt.detail != "" && !strings.Contains(got.Detail, tt.detail) {
				t.Errorf("detail %q does not contain %q", got.Detail, tt.detail)
			}
		})
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	got := redactURL("https://user:pw@example.com/a.zip?token=abc#frag")
	if got != "https://example.com/a.zip" {
		t.Errorf("redactURL = %q", got)
	}
	if redactURL("://bad") != "<invalid-url>" {
		t.Error("expected invalid marker")
	}
}
