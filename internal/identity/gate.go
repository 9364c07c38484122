// Package identity resolves the stable identity that gates all sync
// operations.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"example.com/routine/internal/auth"
	"example.com/routine/internal/domain"
)

// Config selects how the session identity is resolved.
type Config struct {
	// SessionIdentity is reused directly when non-empty.
	SessionIdentity string
	// Token is exchanged for an identity when no session identity exists.
	Token string
	// Auth verifies the token during exchange.
	Auth auth.Config
}

// Gate resolves the session identity exactly once. Resolution order: reuse an
// existing session identity, else exchange the provisioned token, else mint an
// anonymous identity. A failed token exchange is terminal: the session runs
// template-only with no sync.
type Gate struct {
	cfg Config

	once     sync.Once
	identity domain.Identity
	err      error
}

// NewGate constructs a Gate.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Resolve returns the session identity, performing resolution on first call.
// Subsequent calls return the cached outcome, including a cached failure.
func (g *Gate) Resolve(ctx context.Context) (domain.Identity, error) {
	g.once.Do(func() {
		g.identity, g.err = g.resolve(ctx)
	})
	return g.identity, g.err
}

func (g *Gate) resolve(ctx context.Context) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if g.cfg.SessionIdentity != "" {
		return domain.Identity(g.cfg.SessionIdentity), nil
	}

	if g.cfg.Token != "" {
		claims, err := auth.Parse(g.cfg.Token, g.cfg.Auth)
		if err != nil {
			return "", fmt.Errorf("token exchange: %w", err)
		}
		return domain.Identity(claims.Subject), nil
	}

	return domain.Identity("anon-" + uuid.NewString()), nil
}
