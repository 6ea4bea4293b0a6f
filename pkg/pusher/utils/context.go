package utils

import (
	"context"
)

type contextKey string

const clientNameKey contextKey = "client-name-key"

// WithClientName attaches the name a client introduced itself with. Set by the API middleware.
func WithClientName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, clientNameKey, name)
}

// ClientNameFromContext returns a client name from a request context.
func ClientNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(clientNameKey).(string)
	if name == "" {
		return "anonymous"
	}
	return name
}
