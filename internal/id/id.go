package id

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type contextKey struct{}

func New() string {
	return uuid.NewString()
}

// Normalize keeps a caller-supplied request id when it is short and
// printable, otherwise it returns a fresh one.
func Normalize(in string) string {
	in = strings.TrimSpace(in)
	if in == "" || len(in) > 128 {
		return New()
	}
	for _, r := range in {
		if r < 0x21 || r > 0x7e {
			return New()
		}
	}
	return in
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}
