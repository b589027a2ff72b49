// SPDX-License-Identifier: MPL-2.0

// Package build runs one native build per resolved target on a bounded
// worker pool and reports a Result for every target.
//
// Targets are grouped by platform. When the last build of a platform
// finishes and every build of that platform succeeded, the caller's
// PlatformFunc runs for the group, so early platforms can be assembled while
// others are still compiling.
package build
