package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxEmail
)

// Identity is the resolved caller identity used by the admission gate.
type Identity struct {
	UserID string
	Email  string
}

func WithIdentity(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxEmail, email)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func Email(ctx context.Context) string {
	if s, ok := ctx.Value(ctxEmail).(string); ok {
		return s
	}
	return ""
}

// IdentityFromContext returns the full identity, or an error when the
// request is unauthenticated.
func IdentityFromContext(ctx context.Context) (Identity, error) {
	uid, err := UserID(ctx)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: uid, Email: Email(ctx)}, nil
}
