// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"context"
	"strings"
	"testing"
	"time"

	"cargo-pod/internal/remote"
)

func TestStartVerify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		verifier remote.Verifier
		want     string
	}{
		{name: "no verifier", want: ""},
		{
			name: "ok",
			verifier: remote.VerifierFunc(func(context.Context, string) remote.Result {
				return remote.Result{Status: remote.StatusOK}
			}),
			want: "",
		},
		{
			name: "failed",
			verifier: remote.VerifierFunc(func(context.Context, string) remote.Result {
				return remote.Result{Status: remote.StatusFailed, Detail: "404"}
			}),
			want: "could not verify",
		},
		{
			name: "honors cancellation",
			verifier: remote.VerifierFunc(func(ctx context.Context, _ string) remote.Result {
				<-ctx.Done()
				return remote.Result{Status: remote.StatusFailed, Detail: ctx.Err().Error()}
			}),
			want: "timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &Packager{Verifier: tt.verifier, VerifyTimeout: 20 * time.Millisecond}
			got := p.StartVerify(context.Background(), "https://example.invalid/a.zip").Wait()
			if tt.want == "" && got != "" {
				t.Errorf("unexpected warning %q", got)
			}
			if tt.want != "" && !strings.Contains(got, tt.want) {
				t.Errorf("warning %q does not contain %q", got, tt.want)
			}
		})
	}
}

func TestStartVerify_IgnoresStuckVerifier(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	p := &Packager{
		Verifier: remote.VerifierFunc(func(context.Context, string) remote.Result {
			<-release
			return remote.Result{Status: remote.StatusOK}
		}),
		VerifyTimeout: 20 * time.Millisecond,
	}

	start := time.Now()
	got := p.StartVerify(context.Background(), "ref").Wait()
	if !strings.Contains(got, "timed out") {
		t.Errorf("warning = %q", got)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Wait blocked on a stuck verifier")
	}
}
