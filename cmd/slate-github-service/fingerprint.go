// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/slate-foundation/slate/lib/codec"
)

// pushFingerprintKey is the keyed-hash domain for push fingerprints.
// Keyed BLAKE3 requires exactly 32 bytes.
var pushFingerprintKey = []byte("slate-github-push-fingerprint-v1")

// outboundState is everything a push writes to the tracker, in
// tracker-side representation: the issue fields, the status label, and
// the project field option. Two tasks that would produce identical
// tracker state produce identical fingerprints, so a mutation that
// does not change any of these (a column reorder, say) never spends
// API calls.
type outboundState struct {
	Title         string `cbor:"title"`
	Body          string `cbor:"body"`
	State         string `cbor:"state"`
	StatusLabel   string `cbor:"status_label"`
	AssigneeLogin string `cbor:"assignee_login"`
	ProjectOption string `cbor:"project_option"`
}

// fingerprint hashes the state with keyed BLAKE3 over its
// deterministic CBOR encoding.
func (state outboundState) fingerprint() ([]byte, error) {
	encoded, err := codec.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding outbound state: %w", err)
	}
	hasher, err := blake3.NewKeyed(pushFingerprintKey)
	if err != nil {
		panic("push fingerprint: BLAKE3 keyed hash initialization failed (key must be 32 bytes): " + err.Error())
	}
	hasher.Write(encoded)
	return hasher.Sum(nil), nil
}
