// SPDX-License-Identifier: MPL-2.0

// Package headers collects a library's public C headers into the bundle and
// writes the module.modulemap that makes the bundle importable from Swift
// and Objective-C.
package headers
