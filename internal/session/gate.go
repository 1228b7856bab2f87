package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/query"
)

// State is the identity session lifecycle
type State int

const (
	StateNoIdentity State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateNoIdentity:
		return "no-identity"
	case StateAuthenticating:
		return "authenticating"
	default:
		return "authenticated"
	}
}

// Gate tracks the current identity and derives the caller's role from it.
// Its verdict is advisory; the remote side remains authoritative.
type Gate struct {
	mu        sync.RWMutex
	state     State
	principal domain.Principal

	roles  domain.RoleRepository
	cache  *query.Cache
	logger *slog.Logger
}

// NewGate creates a gate with no identity
func NewGate(roles domain.RoleRepository, cache *query.Cache, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{roles: roles, cache: cache, logger: logger}
}

// State returns the current lifecycle state
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Principal returns the authenticated identity, if any
func (g *Gate) Principal() (domain.Principal, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateAuthenticated {
		return "", false
	}
	return g.principal, true
}

// BeginLogin moves from no-identity to authenticating
func (g *Gate) BeginLogin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateNoIdentity {
		return fmt.Errorf("%w: login from %s", domain.ErrInvalidTransition, g.state)
	}
	g.state = StateAuthenticating
	g.logger.Debug("session authenticating")
	return nil
}

// CompleteLogin records the principal yielded by the identity provider
func (g *Gate) CompleteLogin(p domain.Principal) error {
	p = domain.Principal(strings.TrimSpace(string(p)))
	if p == "" {
		return domain.NewValidationError("principal", "must not be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAuthenticating {
		return fmt.Errorf("%w: complete login from %s", domain.ErrInvalidTransition, g.state)
	}
	g.state = StateAuthenticated
	g.principal = p
	// Verdicts of any earlier identity must never be served to this one.
	g.invalidateIdentity()
	g.logger.Info("session authenticated", "principal", p)
	return nil
}

// FailLogin returns an authenticating session to no-identity
func (g *Gate) FailLogin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAuthenticating {
		return fmt.Errorf("%w: fail login from %s", domain.ErrInvalidTransition, g.state)
	}
	g.state = StateNoIdentity
	g.logger.Info("session login failed")
	return nil
}

// Resume restores a persisted identity in one step
func (g *Gate) Resume(p domain.Principal) error {
	if err := g.BeginLogin(); err != nil {
		return err
	}
	if err := g.CompleteLogin(p); err != nil {
		_ = g.FailLogin()
		return err
	}
	return nil
}

// Logout ends the session and drops every identity-scoped cache entry
func (g *Gate) Logout() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAuthenticated {
		return fmt.Errorf("%w: logout from %s", domain.ErrInvalidTransition, g.state)
	}
	prev := g.principal
	g.state = StateNoIdentity
	g.principal = ""
	g.invalidateIdentity()
	g.logger.Info("session logged out", "principal", prev)
	return nil
}

func (g *Gate) invalidateIdentity() {
	for _, p := range query.IdentityPatterns() {
		g.cache.Invalidate(p)
	}
}

// Context returns ctx carrying the current principal, if any
func (g *Gate) Context(ctx context.Context) context.Context {
	if p, ok := g.Principal(); ok {
		return domain.WithPrincipal(ctx, p)
	}
	return ctx
}

// Role resolves the caller's role. Without an identity it is guest and no
// remote call is made. A failed lookup also yields guest.
func (g *Gate) Role(ctx context.Context) domain.Role {
	p, ok := g.Principal()
	if !ok {
		return domain.RoleGuest
	}
	res := g.roleResult(ctx, p)
	if res.Status != query.StatusSuccess || !res.HasValue {
		if res.Err != nil {
			g.logger.Warn("role lookup failed, treating as guest", "principal", p, "error", res.Err)
		}
		return domain.RoleGuest
	}
	return res.Value
}

func (g *Gate) roleResult(ctx context.Context, p domain.Principal) query.Result[domain.Role] {
	return query.Get(ctx, g.cache, query.RoleKey(p), func(ctx context.Context) (domain.Role, error) {
		return g.roles.GetMyRole(domain.WithPrincipal(ctx, p))
	})
}

// IsAdmin reports whether Role is admin. Cached per identity.
func (g *Gate) IsAdmin(ctx context.Context) bool {
	p, ok := g.Principal()
	if !ok {
		return false
	}
	res := query.Get(ctx, g.cache, query.IsAdminKey(p), func(ctx context.Context) (bool, error) {
		return g.Role(ctx) == domain.RoleAdmin, nil
	})
	return res.HasValue && res.Value
}

// Refresh drops cached verdicts for the current identity so the next Role
// call asks the remote side again.
func (g *Gate) Refresh() {
	p, ok := g.Principal()
	if !ok {
		return
	}
	g.cache.Invalidate(query.Exact(query.RoleKey(p)))
	g.cache.Invalidate(query.Exact(query.IsAdminKey(p)))
}

// CheckCanAttempt rejects op locally only when the caller is known to be a
// guest without a remote round-trip, i.e. no identity is present. Everything
// else is attempted and the remote verdict is surfaced as-is.
func (g *Gate) CheckCanAttempt(op string) error {
	if _, ok := g.Principal(); ok {
		return nil
	}
	return &domain.AuthorizationError{Op: op, Local: true, Err: domain.ErrNotAuthenticated}
}
