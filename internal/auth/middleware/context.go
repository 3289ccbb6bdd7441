package auth

import "context"

type ctxKey string

const ctxKeyTokenID ctxKey = "token_id"

func WithTokenID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyTokenID, id)
}

// TokenIDFromContext returns the jti of the token admitted for this request.
func TokenIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyTokenID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
