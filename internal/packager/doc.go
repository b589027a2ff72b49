// SPDX-License-Identifier: MPL-2.0

// Package packager turns an assembled bundle into its deliverable form.
//
// It writes deterministic zip or tar.gz archives, computes sha256 content
// digests and a checksums.txt file in sha256sum format, and moves a staging
// directory onto the destination path in one rename so the destination never
// holds a partial bundle. Companion-resource verification runs asynchronously
// through an injected remote.Verifier and only ever yields warnings.
package packager
