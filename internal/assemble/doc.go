// SPDX-License-Identifier: MPL-2.0

// Package assemble turns per-target static libraries into XCFramework slices
// and lays them out as a bundle with its Info.plist.
//
// Inputs are never modified: single-architecture slices are copied and
// multi-architecture slices are written by the Merger to fresh files under
// the work directory.
package assemble
