// Package requestid generates identifiers for correlating a request across
// logs, audit events and responses.
package requestid

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a random 128-bit id rendered as 32 lowercase hex characters.
func New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(id[:]), nil
}

type ctxKey struct{}

func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok
}
