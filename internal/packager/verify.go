// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"context"
	"fmt"

	"cargo-pod/internal/remote"
)

// Pending is an in-flight companion verification.
type Pending struct {
	ref     string
	done    chan struct{}
	expired <-chan struct{}
	result  remote.Result
}

// StartVerify checks ref through the packager's Verifier in the background,
// bounded by VerifyTimeout. Without a Verifier the returned handle reports
// nothing.
func (p *Packager) StartVerify(ctx context.Context, ref string) *Pending {
	pending := &Pending{ref: ref, done: make(chan struct{})}
	if p.Verifier == nil {
		pending.result = remote.Result{Status: remote.StatusOK}
		close(pending.done)
		return pending
	}

	timeout := p.VerifyTimeout
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	vctx, cancel := context.WithTimeout(ctx, timeout)
	pending.expired = vctx.Done()

	go func() {
		defer close(pending.done)
		defer cancel()
		res := p.Verifier.Verify(vctx, ref)
		if res.Status == remote.StatusFailed && vctx.Err() != nil {
			res.Status = remote.StatusTimeout
		}
		pending.result = res
		p.logger().Debug("companion verification finished", "ref", ref, "status", res.Status)
	}()
	return pending
}

// Wait returns a warning, or "" when the companion resource was confirmed.
// It never blocks past the verification timeout, even if the verifier ignores
// cancellation.
func (pd *Pending) Wait() string {
	if pd == nil {
		return ""
	}

	select {
	case <-pd.done:
	case <-pd.expired:
		select {
		case <-pd.done:
		default:
			return fmt.Sprintf("verification of %s timed out", pd.ref)
		}
	}

	switch pd.result.Status {
	case remote.StatusOK:
		return ""
	case remote.StatusTimeout:
		return fmt.Sprintf("verification of %s timed out: %s", pd.ref, pd.result.Detail)
	default:
		return fmt.Sprintf("could not verify %s: %s", pd.ref, pd.result.Detail)
	}
}
