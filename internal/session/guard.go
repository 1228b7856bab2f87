package session

import (
	"context"

	"github.com/mmcdole/marquee/internal/query"
)

// Verdict is what an admin-only surface should present
type Verdict int

const (
	VerdictLoading Verdict = iota
	VerdictLoginRequired
	VerdictAccessDenied
	VerdictAllowed
)

func (v Verdict) String() string {
	switch v {
	case VerdictLoading:
		return "loading"
	case VerdictLoginRequired:
		return "login required"
	case VerdictAccessDenied:
		return "access denied"
	default:
		return "allowed"
	}
}

// Guard resolves the admin verdict, blocking on the role lookup.
// If ctx ends first the verdict is loading.
func (g *Gate) Guard(ctx context.Context) Verdict {
	switch g.State() {
	case StateNoIdentity:
		return VerdictLoginRequired
	case StateAuthenticating:
		return VerdictLoading
	}

	admin := g.IsAdmin(ctx)
	if ctx.Err() != nil {
		return VerdictLoading
	}
	if admin {
		return VerdictAllowed
	}
	return VerdictAccessDenied
}

// PeekGuard returns the verdict from cached state only. A role that has not
// been resolved yet, or was invalidated, reads as loading.
func (g *Gate) PeekGuard() Verdict {
	switch g.State() {
	case StateNoIdentity:
		return VerdictLoginRequired
	case StateAuthenticating:
		return VerdictLoading
	}
	p, ok := g.Principal()
	if !ok {
		return VerdictLoginRequired
	}

	res, ok := query.Peek[bool](g.cache, query.IsAdminKey(p))
	if !ok || !res.HasValue || res.Stale || res.Status == query.StatusLoading {
		return VerdictLoading
	}
	if res.Value {
		return VerdictAllowed
	}
	return VerdictAccessDenied
}
