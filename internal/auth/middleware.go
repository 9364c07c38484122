package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Skipper allows callers to bypass authentication for specific requests,
// such as health and metrics endpoints.
type Skipper func(r *http.Request) bool

// ScopeRule returns the scopes that may authorize a request; any one of them
// satisfies the rule. A nil or empty result means the request only needs a
// valid token.
type ScopeRule func(r *http.Request) []string

// Middleware validates bearer tokens, enforces per-route scopes, and stores
// the resulting claims on the request context.
type Middleware struct {
	Config  Config
	Skipper Skipper
	Scopes  ScopeRule
}

// NewMiddleware constructs a middleware with optional skipper and scope rule.
func NewMiddleware(cfg Config, skipper Skipper, scopes ScopeRule) Middleware {
	return Middleware{Config: cfg, Skipper: skipper, Scopes: scopes}
}

// Wrap wraps an http.Handler with authentication.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		if m.Scopes != nil {
			if required := m.Scopes(r); len(required) > 0 && !hasAnyScope(claims, required) {
				writeAuthError(w, http.StatusForbidden, "forbidden",
					"scope "+strings.Join(required, " or ")+" required")
				return
			}
		}

		ctx := WithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, ErrInvalidToken
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return Parse(token, m.Config)
}

func hasAnyScope(claims *Claims, scopes []string) bool {
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return true
		}
	}
	return false
}

// writeAuthError mirrors the facade's error payload shape so shells see one
// format regardless of which layer rejected the request.
func writeAuthError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": code, "detail": detail})
}
