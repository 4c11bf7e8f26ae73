// Package attest signs execution records so a client can check that a result
// came from this runtime. The signature covers the canonical JSON encoding of
// an IntentMessage, which binds the record to a purpose and a timestamp.
package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nereus-labs/nautilus-go/internal/contenthash"
)

// IntentScope names what a signature may be used for.
type IntentScope uint8

const (
	IntentProcessData IntentScope = 0
)

func (s IntentScope) String() string {
	switch s {
	case IntentProcessData:
		return "process_data"
	default:
		return fmt.Sprintf("intent(%d)", uint8(s))
	}
}

type IntentMessage struct {
	Intent      IntentScope `json:"intent"`
	TimestampMs int64       `json:"timestamp_ms"`
	Data        any         `json:"data"`
}

// SignedEnvelope is the response body of an attested execution.
type SignedEnvelope struct {
	Response  IntentMessage `json:"response"`
	Signature string        `json:"signature"`
}

type Signer interface {
	Sign(data any, timestampMs int64, intent IntentScope) (SignedEnvelope, error)
	PublicKey() ed25519.PublicKey
}

var ErrInvalidSignature = errors.New("invalid signature")

type Ed25519Signer struct {
	priv      ed25519.PrivateKey
	ephemeral bool
}

// NewEd25519Signer loads a key from a hex-encoded 32-byte seed. A blank seed
// generates a fresh key that lives as long as the process.
func NewEd25519Signer(seedHex string) (*Ed25519Signer, error) {
	seedHex = strings.TrimSpace(seedHex)
	if seedHex == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		return &Ed25519Signer{priv: priv, ephemeral: true}, nil
	}
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *Ed25519Signer) Sign(data any, timestampMs int64, intent IntentScope) (SignedEnvelope, error) {
	msg := IntentMessage{Intent: intent, TimestampMs: timestampMs, Data: data}
	payload, err := SigningBytes(msg)
	if err != nil {
		return SignedEnvelope{}, err
	}
	sig := ed25519.Sign(s.priv, payload)
	return SignedEnvelope{Response: msg, Signature: hex.EncodeToString(sig)}, nil
}

func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

func (s *Ed25519Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.PublicKey())
}

// Ephemeral reports whether the key was generated at startup.
func (s *Ed25519Signer) Ephemeral() bool {
	return s.ephemeral
}

// SigningBytes returns the exact bytes covered by a signature.
func SigningBytes(msg IntentMessage) ([]byte, error) {
	payload, err := contenthash.CanonicalValue(msg)
	if err != nil {
		return nil, fmt.Errorf("encode intent message: %w", err)
	}
	return payload, nil
}

// Verify checks env against pub. It accepts envelopes that went through a
// JSON round trip since signing covers the canonical form.
func Verify(pub ed25519.PublicKey, env SignedEnvelope) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes", ed25519.PublicKeySize)
	}
	sig, err := hex.DecodeString(strings.TrimSpace(env.Signature))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	payload, err := SigningBytes(env.Response)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, payload, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// DecodeEnvelope parses a signed envelope from its JSON encoding.
func DecodeEnvelope(raw []byte) (SignedEnvelope, error) {
	var env struct {
		Response struct {
			Intent      IntentScope     `json:"intent"`
			TimestampMs int64           `json:"timestamp_ms"`
			Data        json.RawMessage `json:"data"`
		} `json:"response"`
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return SignedEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return SignedEnvelope{
		Response: IntentMessage{
			Intent:      env.Response.Intent,
			TimestampMs: env.Response.TimestampMs,
			Data:        env.Response.Data,
		},
		Signature: env.Signature,
	}, nil
}
