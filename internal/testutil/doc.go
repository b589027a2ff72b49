// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by tests: filesystem fixtures that
// fail the test on error, and synthetic Mach-O objects, static libraries and
// fat binaries for exercising bundle assembly without Apple tooling.
package testutil
