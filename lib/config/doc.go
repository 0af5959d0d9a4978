// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the mavlink-bridge configuration file.
//
// Configuration is loaded from a single file named by either the
// MAVLINK_BRIDGE_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search. Command-line
// flags may override individual values after loading; nothing else
// does.
//
// Two formats are accepted, chosen by file extension:
//
//   - .yaml and .yml, decoded with gopkg.in/yaml.v3
//   - .json, .jsonc and .json5, JSON with comments and trailing commas,
//     normalised with github.com/tidwall/jsonc before decoding
//
// In both formats unknown fields are errors, and the file is decoded
// over [Default] so omitted fields keep their defaults.
//
// String fields that name addresses (endpoints, overlay locators, the
// admin listen address) and the overlay shared key may contain ${VAR}
// and ${VAR:-default} references, expanded from the environment after
// loading. One file can then serve machines whose serial devices
// differ, and the key can stay out of the file.
//
// Key exports:
//
//   - [Config] -- the file's four sections: overlay, admin, logging,
//     and mavlink (the bridge core's [bridge.Config])
//   - [Default] -- a Config with every default filled in
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
