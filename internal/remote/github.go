// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// maxJSONResponseBytes is the upper bound on JSON API response size (10 MB).
	maxJSONResponseBytes = 10 << 20

	defaultAPIBaseURL = "https://api.github.com"
	defaultUserAgent  = "cargo-pod/dev"
)

// ErrReleaseNotFound is returned when a requested release tag does not exist.
var ErrReleaseNotFound = errors.New("release not found")

type (
	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// Release is a GitHub release with its assets.
	Release struct {
		TagName string
		Draft   bool
		Assets  []Asset
	}

	// Asset is one downloadable file of a release.
	Asset struct {
		Name               string
		BrowserDownloadURL string
		Size               int64
	}

	// ReleaseAsset identifies a release download URL of the form
	// https://github.com/<owner>/<repo>/releases/download/<tag>/<asset>.
	ReleaseAsset struct {
		Owner string
		Repo  string
		Tag   string
		Asset string
	}

	githubRelease struct {
		TagName string        `json:"tag_name"`
		Draft   bool          `json:"draft"`
		Assets  []githubAsset `json:"assets"`
	}

	githubAsset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
		Size               int64  `json:"size"`
	}

	// GitHubClient queries the GitHub Releases API.
	GitHubClient struct {
		httpClient *http.Client
		baseURL    string // API base URL, overridable for tests
		token      string // Optional GITHUB_TOKEN for authenticated requests
		userAgent  string
	}

	// ClientOption configures a GitHubClient during construction.
	ClientOption func(*GitHubClient)

	// GitHubReleaseVerifier checks that a release download URL names an
	// existing asset of an existing release.
	GitHubReleaseVerifier struct {
		Client *GitHubClient
	}
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GitHubClient) {
		g.httpClient = c
	}
}

// WithBaseURL overrides the GitHub API base URL, primarily for test servers.
func WithBaseURL(base string) ClientOption {
	return func(g *GitHubClient) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// WithToken sets a GitHub personal access token for authenticated requests.
func WithToken(token string) ClientOption {
	return func(g *GitHubClient) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(g *GitHubClient) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// NewGitHubClient creates a GitHubClient against api.github.com.
func NewGitHubClient(opts ...ClientOption) *GitHubClient {
	c := &GitHubClient{
		httpClient: http.DefaultClient,
		baseURL:    defaultAPIBaseURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetReleaseByTag fetches a single release by its Git tag (e.g., "v1.0.0").
// Returns ErrReleaseNotFound if the tag does not correspond to a release.
func (c *GitHubClient) GetReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error) {
	tagURL := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s",
		c.baseURL, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(tag))

	resp, err := c.doRequest(ctx, http.MethodGet, tagURL)
	if err != nil {
		return nil, fmt.Errorf("getting release %s: %w", tag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkRateLimit(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrReleaseNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getting release %s: unexpected status %d", tag, resp.StatusCode)
	}

	var gr githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&gr); err != nil {
		return nil, fmt.Errorf("getting release %s: decoding response: %w", tag, err)
	}

	r := Release{TagName: gr.TagName, Draft: gr.Draft, Assets: make([]Asset, 0, len(gr.Assets))}
	for _, ga := range gr.Assets {
		r.Assets = append(r.Assets, Asset(ga))
	}
	return &r, nil
}

// Verify implements Verifier.
func (v *GitHubReleaseVerifier) Verify(ctx context.Context, ref string) Result {
	ra, ok := ParseReleaseAssetURL(ref)
	if !ok {
		return Result{Status: StatusFailed, Detail: fmt.Sprintf("not a GitHub release download URL: %s", redactURL(ref))}
	}

	client := v.Client
	if client == nil {
		client = NewGitHubClient()
	}
	release, err := client.GetReleaseByTag(ctx, ra.Owner, ra.Repo, ra.Tag)
	if errors.Is(err, ErrReleaseNotFound) {
		return Result{Status: StatusFailed, Detail: fmt.Sprintf("release %s not found in %s/%s", ra.Tag, ra.Owner, ra.Repo)}
	}
	if err != nil {
		return failure(ctx, err)
	}

	for _, a := range release.Assets {
		if a.Name == ra.Asset {
			return Result{Status: StatusOK, Detail: fmt.Sprintf("%s/%s %s has %s (%d bytes)", ra.Owner, ra.Repo, ra.Tag, a.Name, a.Size)}
		}
	}
	return Result{Status: StatusFailed, Detail: fmt.Sprintf("release %s of %s/%s has no asset %s", ra.Tag, ra.Owner, ra.Repo, ra.Asset)}
}

// ParseReleaseAssetURL splits a github.com release download URL.
func ParseReleaseAssetURL(ref string) (ReleaseAsset, bool) {
	u, ok := validateRef(ref)
	if !ok || !strings.EqualFold(u.Host, "github.com") {
		return ReleaseAsset{}, false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 6 || parts[2] != "releases" || parts[3] != "download" {
		return ReleaseAsset{}, false
	}
	for _, p := range parts {
		if p == "" {
			return ReleaseAsset{}, false
		}
	}
	return ReleaseAsset{Owner: parts[0], Repo: parts[1], Tag: parts[4], Asset: parts[5]}, true
}

// ReleaseAssetURL builds the download URL for an asset of a tagged release.
func ReleaseAssetURL(owner, repo, tag, asset string) string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/download/%s/%s", owner, repo, tag, asset)
}

// doRequest creates and executes an HTTP request with common GitHub API headers.
func (c *GitHubClient) doRequest(ctx context.Context, method, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)

	// Only attach the auth token when the request targets a known GitHub host.
	if c.token != "" && isGitHubHost(req.URL, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// checkRateLimit returns a RateLimitError when X-RateLimit-Remaining is zero.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}
	rem, err := strconv.Atoi(remaining)
	if err != nil || rem > 0 {
		return nil //nolint:nilerr // Non-numeric header is non-fatal.
	}

	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.
	return &RateLimitError{Limit: limit, Remaining: 0, ResetAt: time.Unix(resetUnix, 0)}
}

// isGitHubHost reports whether reqURL targets the configured API host.
func isGitHubHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(reqURL.Host, base.Host)
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
