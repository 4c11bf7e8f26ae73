// Package auditlog persists an append-only trail of program registrations and
// executions. Each row carries a SHA-256 over its canonical content so later
// edits are detectable.
package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nereus-labs/nautilus-go/internal/contenthash"
)

const (
	ActionProgramRegistered      = "program.registered"
	ActionProgramExecuted        = "program.executed"
	ActionProgramExecutionFailed = "program.execution_failed"
)

type Event struct {
	OccurredAt time.Time
	Action     string
	ProgramID  string
	CodeHash   string
	RequestID  string
	Payload    any
}

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (e Event) Validate() error {
	if e.OccurredAt.IsZero() {
		return errors.New("OccurredAt is required")
	}
	switch strings.TrimSpace(e.Action) {
	case ActionProgramRegistered, ActionProgramExecuted, ActionProgramExecutionFailed:
	case "":
		return errors.New("Action is required")
	default:
		return fmt.Errorf("Action unsupported: %q", e.Action)
	}
	if strings.TrimSpace(e.ProgramID) == "" {
		return errors.New("ProgramID is required")
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS execution_events (
	event_id         BIGSERIAL PRIMARY KEY,
	occurred_at      TIMESTAMPTZ NOT NULL,
	action           TEXT NOT NULL,
	program_id       TEXT NOT NULL,
	code_hash        TEXT,
	request_id       TEXT,
	payload          JSONB NOT NULL,
	integrity_sha256 TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS execution_events_program_idx ON execution_events (program_id, occurred_at)`,
}

// EnsureSchema creates the audit table when it does not exist yet.
func EnsureSchema(ctx context.Context, db Execer) error {
	if db == nil {
		return errors.New("execer is required")
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure audit schema: %w", err)
		}
	}
	return nil
}

func Insert(ctx context.Context, q QueryRower, event Event) (int64, error) {
	if q == nil {
		return 0, errors.New("queryer is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}

	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := contenthash.CanonicalValue(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	integrity, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		return 0, err
	}

	var codeHash sql.NullString
	if strings.TrimSpace(event.CodeHash) != "" {
		codeHash = sql.NullString{String: strings.TrimSpace(event.CodeHash), Valid: true}
	}
	var requestID sql.NullString
	if strings.TrimSpace(event.RequestID) != "" {
		requestID = sql.NullString{String: strings.TrimSpace(event.RequestID), Valid: true}
	}

	var id int64
	err = q.QueryRowContext(
		ctx,
		`INSERT INTO execution_events (
			occurred_at,
			action,
			program_id,
			code_hash,
			request_id,
			payload,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING event_id`,
		event.OccurredAt.UTC(),
		strings.TrimSpace(event.Action),
		strings.TrimSpace(event.ProgramID),
		codeHash,
		requestID,
		payloadJSON,
		integrity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert audit event: %w", err)
	}
	return id, nil
}

// ComputeIntegritySHA256 hashes the canonical form of an event with its
// already-encoded payload.
func ComputeIntegritySHA256(event Event, payloadJSON []byte) (string, error) {
	type integrityInput struct {
		OccurredAt time.Time       `json:"occurred_at"`
		Action     string          `json:"action"`
		ProgramID  string          `json:"program_id"`
		CodeHash   string          `json:"code_hash,omitempty"`
		RequestID  string          `json:"request_id,omitempty"`
		Payload    json.RawMessage `json:"payload"`
	}

	in := integrityInput{
		OccurredAt: event.OccurredAt.UTC(),
		Action:     strings.TrimSpace(event.Action),
		ProgramID:  strings.TrimSpace(event.ProgramID),
		CodeHash:   strings.TrimSpace(event.CodeHash),
		RequestID:  strings.TrimSpace(event.RequestID),
		Payload:    payloadJSON,
	}
	sum, err := contenthash.Value(in)
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	return sum, nil
}
