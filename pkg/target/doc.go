// SPDX-License-Identifier: MPL-2.0

// Package target describes the Apple build targets cargo-pod knows how to produce
// and resolves user requests into an ordered, duplicate-free list of them.
//
// A Descriptor is the (OS, architecture, ABI variant) triple that identifies one
// native build invocation. Descriptors sharing an OS and ABI belong to the same
// Platform, which later becomes one slice of the XCFramework bundle.
//
// Requests are expressed as profile names ("device", "simulator", "desktop",
// "catalyst" and the aliases "ios", "macos", "all"), Rust target triples
// ("aarch64-apple-ios-sim"), or slash-separated tuples ("ios/arm64/simulator").
// Resolution has no side effects.
package target
