// SPDX-License-Identifier: MPL-2.0

// Package manifest renders CocoaPods podspecs from templates.
//
// Templates use literal {{key}} placeholders and nothing else: there are no
// conditionals, functions or pipelines. A placeholder without a value is an
// error, never an empty string.
package manifest
