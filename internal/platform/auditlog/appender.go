package auditlog

import (
	"context"
	"errors"
	"strings"

	"github.com/nereus-labs/nautilus-go/internal/platform/requestid"
)

// DBAppender writes events to Postgres. The request id is taken from ctx
// when the event does not carry one.
type DBAppender struct {
	q QueryRower
}

func NewDBAppender(q QueryRower) (*DBAppender, error) {
	if q == nil {
		return nil, errors.New("queryer is required")
	}
	return &DBAppender{q: q}, nil
}

func (a *DBAppender) Append(ctx context.Context, event Event) error {
	if strings.TrimSpace(event.RequestID) == "" {
		if id, ok := requestid.FromContext(ctx); ok {
			event.RequestID = id
		}
	}
	_, err := Insert(ctx, a.q, event)
	return err
}
