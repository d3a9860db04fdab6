// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for Slate
// credential files. It wraps filippo.io/age for the specific
// operations Slate needs: generate x25519 keypairs, encrypt to
// multiple recipients, and decrypt with a private key.
//
// Ciphertext is base64-encoded so sealed credential files stay ASCII.
// Callers pass plaintext []byte to [Encrypt] and receive a base64
// string; [Decrypt] accepts a base64 string and returns plaintext.
// Private keys and decrypted plaintext are returned as [secret.Buffer]
// values backed by mmap memory outside the Go heap (locked against
// swap, excluded from core dumps, zeroed on Close).
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair in a secret.Buffer
//   - [Encrypt] -- encrypt to age public key recipients
//   - [Decrypt] -- decrypt with a secret.Buffer key
//   - [Recipient] -- derive the public key from a private key
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
//
// Used by `slate credential seal` (encrypt a GitHub token to the
// service identity) and by the service's credential loader (decrypt
// sealed_file entries at startup).
//
// Depends on lib/secret for secure memory allocation.
package sealed
