package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleEvent() Event {
	return Event{
		OccurredAt: time.Unix(1700000000, 0).UTC(),
		Action:     ActionProgramExecuted,
		ProgramID:  "prog-1",
		CodeHash:   strings.Repeat("c", 64),
		RequestID:  "req-123",
	}
}

func TestComputeIntegritySHA256_Deterministic(t *testing.T) {
	event := sampleEvent()
	payloadJSON := []byte(`{"a":1,"b":"x"}`)

	a, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a != b {
		t.Fatalf("integrity mismatch: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("len(integrity)=%d, want 64", len(a))
	}
}

func TestComputeIntegritySHA256_ChangesOnPayload(t *testing.T) {
	event := sampleEvent()

	a, err := ComputeIntegritySHA256(event, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, []byte(`{"a":2}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a == b {
		t.Fatalf("expected integrity to differ")
	}

	other := event
	other.CodeHash = strings.Repeat("d", 64)
	c, err := ComputeIntegritySHA256(other, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a == c {
		t.Fatalf("expected integrity to change with code hash")
	}
}

func TestEventValidate(t *testing.T) {
	if err := sampleEvent().Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	bad := sampleEvent()
	bad.Action = "auth.forbidden"
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate() err=nil for unknown action")
	}
	bad = sampleEvent()
	bad.ProgramID = " "
	if err := bad.Validate(); err == nil {
		t.Fatalf("Validate() err=nil for blank program id")
	}
}

func TestInsertRejectsBeforeQuery(t *testing.T) {
	if _, err := Insert(context.Background(), nil, sampleEvent()); err == nil {
		t.Fatalf("Insert(nil) err=nil, want error")
	}
	if _, err := NewDBAppender(nil); err == nil {
		t.Fatalf("NewDBAppender(nil) err=nil, want error")
	}
}

type fakeExecer struct {
	queries []string
	err     error
}

func (f *fakeExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	return nil, f.err
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeExecer{}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("EnsureSchema() err=%v", err)
	}
	if len(db.queries) != 2 || !strings.Contains(db.queries[0], "CREATE TABLE IF NOT EXISTS execution_events") {
		t.Fatalf("queries=%v", db.queries)
	}

	failing := &fakeExecer{err: errors.New("permission denied")}
	if err := EnsureSchema(context.Background(), failing); err == nil {
		t.Fatalf("EnsureSchema() err=nil, want error")
	}
	if err := EnsureSchema(context.Background(), nil); err == nil {
		t.Fatalf("EnsureSchema(nil) err=nil, want error")
	}
}
