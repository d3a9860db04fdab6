// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

// sampleRequest is a representative socket protocol message using json
// struct tags (the convention for types the CLI also renders).
type sampleRequest struct {
	Action string `json:"action"`
	Board  string `json:"board,omitempty"`
	TaskID int64  `json:"task_id"`
}

// sampleFingerprint uses cbor struct tags (the convention for
// purely-internal types).
type sampleFingerprint struct {
	Title  string   `cbor:"title"`
	State  string   `cbor:"state"`
	Labels []string `cbor:"labels"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRequest{
		Action: "push-task",
		Board:  "platform",
		TaskID: 42,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	// Fingerprinting depends on identical input producing identical
	// bytes across calls.
	fingerprint := sampleFingerprint{
		Title:  "Fix login flow",
		State:  "open",
		Labels: []string{"in-progress"},
	}

	first, err := Marshal(fingerprint)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(fingerprint)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	messages := []sampleRequest{
		{Action: "push-task", Board: "platform", TaskID: 1},
		{Action: "import-issue", Board: "mobile", TaskID: 2},
		{Action: "status", TaskID: 0},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, message := range messages {
		if err := encoder.Encode(message); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range messages {
		var got sampleRequest
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode message %d: %v", i, err)
		}
		if got != want {
			t.Errorf("message %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestJSONTagFallback(t *testing.T) {
	// Types with json tags (no cbor tags) should encode and decode
	// through our modes using the json tag names as CBOR map keys.
	original := sampleRequest{Action: "status", TaskID: 3}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var asMap map[string]any
	if err := Unmarshal(data, &asMap); err != nil {
		t.Fatalf("Unmarshal into map: %v", err)
	}
	if _, ok := asMap["action"]; !ok {
		t.Errorf("encoded keys %v missing json tag name %q", asMap, "action")
	}
}

func TestOmitemptyRespected(t *testing.T) {
	withBoard := sampleRequest{Action: "a", Board: "x", TaskID: 1}
	withoutBoard := sampleRequest{Action: "a", TaskID: 1}

	dataWith, err := Marshal(withBoard)
	if err != nil {
		t.Fatal(err)
	}
	dataWithout, err := Marshal(withoutBoard)
	if err != nil {
		t.Fatal(err)
	}

	if len(dataWithout) >= len(dataWith) {
		t.Errorf("omitempty not effective: without=%d bytes, with=%d bytes",
			len(dataWithout), len(dataWith))
	}
}

func TestDefaultMapType(t *testing.T) {
	// Archived webhook payloads decode into any-typed targets; nested
	// maps must come back as map[string]any so encoding/json can
	// re-serialize them.
	data, err := Marshal(map[string]any{
		"issue": map[string]any{"number": 7},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := outer["issue"].(map[string]any); !ok {
		t.Fatalf("nested type = %T, want map[string]any", outer["issue"])
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var message sampleRequest
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &message); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestByteStringRoundtrip(t *testing.T) {
	// []byte fields must encode as CBOR byte strings (major type 2),
	// not text strings. Archived deliveries carry the raw JSON body
	// this way.
	type envelope struct {
		Payload []byte `cbor:"payload"`
	}

	original := envelope{Payload: []byte(`{"action":"opened"}`)}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded envelope
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("byte string roundtrip: got %q, want %q", decoded.Payload, original.Payload)
	}
}

func BenchmarkMarshal(b *testing.B) {
	message := sampleRequest{
		Action: "push-task",
		Board:  "platform",
		TaskID: 42,
	}

	b.ReportAllocs()
	for b.Loop() {
		Marshal(message)
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	message := sampleRequest{
		Action: "push-task",
		Board:  "platform",
		TaskID: 42,
	}
	data, err := Marshal(message)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		var decoded sampleRequest
		Unmarshal(data, &decoded)
	}
}
