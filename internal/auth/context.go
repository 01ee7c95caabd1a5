package auth

import "context"

type ctxKey string

const ctxKeySession ctxKey = "sid"

func WithSession(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, ctxKeySession, sid)
}

func SessionFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeySession); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
