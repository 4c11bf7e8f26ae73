// Package contenthash computes the content digests that make an execution
// verifiable: SHA-256 over program source and over canonical JSON payloads.
//
// Canonical JSON is the compact encoding of a value with object keys sorted
// by their UTF-8 bytes, number literals kept exactly as written, arrays in
// order and no HTML escaping. Two payloads that differ only in whitespace or
// key order therefore hash identically.
//
// Strings are written the way encoding/json writes them, which differs from
// other canonical encoders in a few places:
//
//   - U+2028 and U+2029 are always escaped as \u2028 and \u2029.
//   - Invalid UTF-8 inside a string is replaced with U+FFFD before hashing.
//   - Numbers keep their literal spelling, so 1e2 and 100 hash differently.
//
// Payloads without these characters or exponent forms hash the same as a
// serde_json rendering of the same document with sorted keys.
package contenthash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Text returns the lowercase hex SHA-256 of s.
func Text(s string) string {
	return Bytes([]byte(s))
}

func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// JSON hashes the canonical form of a raw JSON document.
func JSON(raw []byte) (string, error) {
	canonical, err := Canonical(raw)
	if err != nil {
		return "", err
	}
	return Bytes(canonical), nil
}

// Value hashes the canonical form of an in-memory value.
func Value(v any) (string, error) {
	canonical, err := CanonicalValue(v)
	if err != nil {
		return "", err
	}
	return Bytes(canonical), nil
}

// Canonical re-encodes a single JSON document in canonical form.
func Canonical(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode json: trailing data after value")
	}
	return encode(v)
}

// CanonicalValue marshals v and returns its canonical form.
func CanonicalValue(v any) ([]byte, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return Canonical(raw)
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return Canonical(blob)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
