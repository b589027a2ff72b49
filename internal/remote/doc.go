// SPDX-License-Identifier: MPL-2.0

// Package remote checks that the download a podspec points at exists.
//
// Verification is advisory. A Verifier reports OK, Failed or Timeout and
// never returns an error, so callers can turn any outcome into a warning.
package remote
