// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

const (
	// StatusOK means the resource exists.
	StatusOK Status = "ok"
	// StatusFailed means the resource is missing or the check errored.
	StatusFailed Status = "failed"
	// StatusTimeout means the check did not finish in time.
	StatusTimeout Status = "timeout"
)

type (
	// Status is the outcome of a verification.
	Status string

	// Result is what a Verifier reports.
	Result struct {
		Status Status
		Detail string
	}

	// Verifier checks a remote reference, usually a download URL.
	Verifier interface {
		Verify(ctx context.Context, ref string) Result
	}

	// VerifierFunc adapts a function to Verifier.
	VerifierFunc func(ctx context.Context, ref string) Result

	// Auto routes GitHub release download URLs to GitHub and everything else
	// to HTTP.
	Auto struct {
		GitHub *GitHubReleaseVerifier
		HTTP   *HTTPVerifier
	}
)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, ref string) Result { return f(ctx, ref) }

// NewAuto creates an Auto verifier. The token is only sent to GitHub hosts.
func NewAuto(token, userAgent string) *Auto {
	return &Auto{
		GitHub: &GitHubReleaseVerifier{Client: NewGitHubClient(WithToken(token), WithUserAgent(userAgent))},
		HTTP:   &HTTPVerifier{UserAgent: userAgent},
	}
}

// Verify implements Verifier.
func (a *Auto) Verify(ctx context.Context, ref string) Result {
	if _, ok := ParseReleaseAssetURL(ref); ok && a.GitHub != nil {
		return a.GitHub.Verify(ctx, ref)
	}
	if a.HTTP == nil {
		return Result{Status: StatusFailed, Detail: "no verifier for " + redactURL(ref)}
	}
	return a.HTTP.Verify(ctx, ref)
}

// failure classifies err as Timeout when the context ran out, Failed otherwise.
func failure(ctx context.Context, err error) Result {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{Status: StatusTimeout, Detail: err.Error()}
	}
	return Result{Status: StatusFailed, Detail: err.Error()}
}

// validateRef rejects references that are not absolute http(s) URLs.
func validateRef(ref string) (*url.URL, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	return u, scheme == "https" || scheme == "http"
}
