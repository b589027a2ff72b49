// SPDX-License-Identifier: MPL-2.0

// Package project reads the Cargo.toml of the crate being packaged: package
// identity, the [lib] target, and the pod settings under
// [package.metadata.pod].
package project
