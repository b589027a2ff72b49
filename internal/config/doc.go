// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// The file is looked up at --config, then $XDG_CONFIG_HOME/cargo-pod/config.cue,
// then ./cargo-pod.cue. It is validated against the embedded #Config schema
// (config_schema.cue), merged over the defaults, and finally overridden by
// CARGO_POD_* environment variables.
package config
