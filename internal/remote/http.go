// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPVerifier checks that a URL answers with a success status. It sends a
// HEAD request and falls back to a one-byte ranged GET for servers that do
// not support HEAD.
type HTTPVerifier struct {
	Client    *http.Client
	UserAgent string
}

// Verify implements Verifier.
func (v *HTTPVerifier) Verify(ctx context.Context, ref string) Result {
	if _, ok := validateRef(ref); !ok {
		return Result{Status: StatusFailed, Detail: fmt.Sprintf("not an http(s) URL: %q", ref)}
	}

	status, err := v.do(ctx, http.MethodHead, ref)
	if err != nil {
		return failure(ctx, err)
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented || status == http.StatusForbidden {
		status, err = v.do(ctx, http.MethodGet, ref)
		if err != nil {
			return failure(ctx, err)
		}
	}

	if status >= 200 && status < 300 {
		return Result{Status: StatusOK, Detail: fmt.Sprintf("%s answered %d", redactURL(ref), status)}
	}
	return Result{Status: StatusFailed, Detail: fmt.Sprintf("%s answered %d", redactURL(ref), status)}
}

func (v *HTTPVerifier) do(ctx context.Context, method, ref string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, ref, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if v.UserAgent != "" {
		req.Header.Set("User-Agent", v.UserAgent)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, redactURL(ref), err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}
