package auth

import (
	"context"

	"example.com/routine/internal/domain"
)

type contextKey string

const claimsKey contextKey = "routine-auth-claims"

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// FromContext retrieves claims stored by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// IdentityFromContext derives the record-partition identity from the
// authenticated subject.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	claims, ok := FromContext(ctx)
	if !ok || claims.Subject == "" {
		return "", false
	}
	return domain.Identity(claims.Subject), true
}
