// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/slate-foundation/slate/lib/secret"
)

// archiveKeySize is the size of the decoded archive master key and of
// the derived sealing key.
const archiveKeySize = 32

// sealedArchiveVersion is the version byte prepended to sealed archive
// payloads. Included as AAD, so tampering with it fails authentication.
const sealedArchiveVersion byte = 0x01

// sealedArchiveOverhead is the fixed byte overhead of a sealed
// payload: 1 (version) + 24 (XChaCha20-Poly1305 nonce) + 16 (tag).
const sealedArchiveOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// hkdfInfoDeliverySealing is the HKDF info string deriving the archive
// sealing key from the master key file. Changing it invalidates every
// sealed payload in the archive.
var hkdfInfoDeliverySealing = []byte("slate.delivery.enc.v1")

// Compression values stored in the deliveries table.
const (
	compressionZstd = "zstd"
	compressionNone = "none"
)

// zstdEncoder and zstdDecoder are reused across deliveries. Both are
// safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("delivery archive: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("delivery archive: zstd decoder initialization failed: " + err.Error())
	}
}

// DeliveryArchive encodes webhook payloads for at-rest storage:
// zstd compression (payloads are JSON text) and, when an archive key
// is configured, XChaCha20-Poly1305 sealing under a key derived from
// the key file via HKDF-SHA256. Without a key the archive stores
// compressed plaintext and Decode refuses sealed rows.
type DeliveryArchive struct {
	sealingKey *secret.Buffer // nil when sealing is disabled
}

// NewDeliveryArchive creates an archive codec. keyPath optionally
// names a file holding a 32-byte random key as 64 hex characters;
// empty disables sealing.
func NewDeliveryArchive(keyPath string) (*DeliveryArchive, error) {
	if keyPath == "" {
		return &DeliveryArchive{}, nil
	}

	keyText, err := secret.ReadFromPath(keyPath)
	if err != nil {
		return nil, fmt.Errorf("delivery archive: reading key: %w", err)
	}
	defer keyText.Close()

	masterKey := make([]byte, hex.DecodedLen(keyText.Len()))
	defer secret.Zero(masterKey)
	if _, err := hex.Decode(masterKey, keyText.Bytes()); err != nil {
		return nil, fmt.Errorf("delivery archive: key file %s is not hex: %w", keyPath, err)
	}
	if len(masterKey) != archiveKeySize {
		return nil, fmt.Errorf("delivery archive: key file %s decodes to %d bytes, need exactly %d",
			keyPath, len(masterKey), archiveKeySize)
	}

	sealingKey, err := deriveArchiveKey(masterKey, hkdfInfoDeliverySealing)
	if err != nil {
		return nil, fmt.Errorf("delivery archive: %w", err)
	}

	return &DeliveryArchive{sealingKey: sealingKey}, nil
}

// Sealing reports whether payloads are encrypted at rest.
func (a *DeliveryArchive) Sealing() bool {
	return a.sealingKey != nil
}

// Close releases the sealing key.
func (a *DeliveryArchive) Close() error {
	if a.sealingKey != nil {
		return a.sealingKey.Close()
	}
	return nil
}

// Encode prepares a webhook body for archival. Fills the delivery's
// Payload, PayloadSize, Compression, and Sealed fields.
func (a *DeliveryArchive) Encode(body []byte, delivery *Delivery) error {
	delivery.PayloadSize = len(body)

	encoded := zstdEncoder.EncodeAll(body, nil)
	delivery.Compression = compressionZstd
	if len(encoded) >= len(body) {
		// Tiny or already-dense payloads; store as-is.
		encoded = body
		delivery.Compression = compressionNone
	}

	if a.sealingKey == nil {
		delivery.Payload = encoded
		delivery.Sealed = false
		return nil
	}

	sealed, err := a.seal(encoded)
	if err != nil {
		return fmt.Errorf("delivery archive: sealing %s: %w", delivery.DeliveryID, err)
	}
	delivery.Payload = sealed
	delivery.Sealed = true
	return nil
}

// Decode recovers the original webhook body from an archived delivery.
func (a *DeliveryArchive) Decode(delivery *Delivery) ([]byte, error) {
	payload := delivery.Payload

	if delivery.Sealed {
		if a.sealingKey == nil {
			return nil, fmt.Errorf("delivery archive: %s is sealed but no archive key is configured", delivery.DeliveryID)
		}
		opened, err := a.open(payload)
		if err != nil {
			return nil, fmt.Errorf("delivery archive: opening %s: %w", delivery.DeliveryID, err)
		}
		payload = opened
	}

	switch delivery.Compression {
	case compressionNone:
		if len(payload) != delivery.PayloadSize {
			return nil, fmt.Errorf("delivery archive: %s: stored %d bytes, metadata says %d",
				delivery.DeliveryID, len(payload), delivery.PayloadSize)
		}
		return payload, nil
	case compressionZstd:
		body, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, delivery.PayloadSize))
		if err != nil {
			return nil, fmt.Errorf("delivery archive: decompressing %s: %w", delivery.DeliveryID, err)
		}
		if len(body) != delivery.PayloadSize {
			return nil, fmt.Errorf("delivery archive: %s: decompressed to %d bytes, metadata says %d",
				delivery.DeliveryID, len(body), delivery.PayloadSize)
		}
		return body, nil
	default:
		return nil, fmt.Errorf("delivery archive: %s: unknown compression %q", delivery.DeliveryID, delivery.Compression)
	}
}

// seal encrypts plaintext with XChaCha20-Poly1305:
//
//	[Version: 1 byte] [Nonce: 24 bytes (random)] [Ciphertext+Tag]
//
// The version byte doubles as AAD.
func (a *DeliveryArchive) seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(a.sealingKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	output := make([]byte, 1+chacha20poly1305.NonceSizeX, sealedArchiveOverhead+len(plaintext))
	output[0] = sealedArchiveVersion
	copy(output[1:], nonce[:])

	return aead.Seal(output, nonce[:], plaintext, []byte{sealedArchiveVersion}), nil
}

// open reverses seal.
func (a *DeliveryArchive) open(sealed []byte) ([]byte, error) {
	if len(sealed) < sealedArchiveOverhead {
		return nil, fmt.Errorf("sealed payload is %d bytes, minimum is %d (version + nonce + tag)",
			len(sealed), sealedArchiveOverhead)
	}

	version := sealed[0]
	if version != sealedArchiveVersion {
		return nil, fmt.Errorf("sealed payload version %d is not supported (expected %d)", version, sealedArchiveVersion)
	}

	nonce := sealed[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[1+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(a.sealingKey.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte{version})
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key or tampered data): %w", err)
	}
	return plaintext, nil
}

// deriveArchiveKey runs HKDF-SHA256 over the key file contents. The
// key file is required to be uniformly random, so the extract phase
// with nil salt is appropriate per RFC 5869.
func deriveArchiveKey(inputKeyMaterial []byte, info []byte) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, inputKeyMaterial, nil, info)
	derived := make([]byte, archiveKeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	// NewFromBytes copies into guarded memory and zeros the heap slice.
	return secret.NewFromBytes(derived)
}
