// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs the end-to-end build-and-package flow for one crate.
//
// A run resolves targets, checks the podspec template, builds every target,
// lays out the XCFramework, collects headers, archives and checksums the
// bundle, renders the podspec and moves the result onto the destination in
// one step. Every failure is tagged with the Phase it happened in, and each
// Phase maps to a process exit code.
package pipeline
