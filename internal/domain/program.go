package domain

import (
	"encoding/json"
	"time"
)

// Program is a registered piece of source code. CodeHash is derived from
// Source when the program is registered and never changes afterwards.
type Program struct {
	ID           string
	Language     Language
	Source       string
	CodeHash     string
	RegisteredAt time.Time
}

// ExecutionRecord is the verifiable outcome of one execution and the exact
// payload handed to the attestation signer.
type ExecutionRecord struct {
	ProgramID   string          `json:"program_id"`
	CodeHash    string          `json:"code_hash"`
	InputHash   string          `json:"input_hash"`
	Output      json.RawMessage `json:"output"`
	TimestampMs int64           `json:"timestamp_ms"`
}
