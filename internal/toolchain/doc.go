// SPDX-License-Identifier: MPL-2.0

// Package toolchain is the boundary to the native tools cargo-pod drives:
// cargo for per-target compilation, rustup for the installed-target check,
// and lipo for combining single-architecture libraries.
//
// Everything here shells out through an injectable ExecCommandFunc so tests
// can substitute a helper process instead of real tools.
package toolchain
