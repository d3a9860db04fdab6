// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Slate's standard CBOR encoding configuration.
//
// Slate uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the GitHub REST and GraphQL APIs,
//     webhook deliveries, and CLI output.
//   - CBOR for internal protocols: the service control socket, push
//     fingerprints, and archived delivery envelopes.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every Slate package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, which is what makes CBOR usable as a fingerprint input.
//
// For buffer-oriented operations (fingerprints, archived envelopes):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the control socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR. It will
//     never be marshaled to JSON or interact with CLI tooling.
//     Examples: fingerprint inputs, archived delivery envelopes.
//   - `json` tag: this type may be serialized as BOTH JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor`
//     tags are absent, so a single `json` tag controls field naming
//     and omitempty for both formats. Examples: socket protocol types
//     (which the CLI consumes and renders as --json output), board
//     and task records shared between the store and the CLI.
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract.
package codec
