// SPDX-License-Identifier: MPL-2.0

// Package issue maps cargo-pod failures to guidance.
//
// Each Issue is a Markdown page describing one failure class (a missing Rust
// target, a crate that is not a staticlib, a template with an unknown
// placeholder) and what to try next. ActionableError carries the operation,
// resource and suggestions of a single failure and may point at an Issue.
package issue
