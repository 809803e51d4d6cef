package services

import "context"

type scopeKey struct{}

// Scope identifies who and what a unit of scrobbling work belongs to.
type Scope struct {
	UserID    int64
	SessionID string
	Source    string
}

func (s Scope) merge(next Scope) Scope {
	if next.UserID != 0 {
		s.UserID = next.UserID
	}
	if next.SessionID != "" {
		s.SessionID = next.SessionID
	}
	if next.Source != "" {
		s.Source = next.Source
	}
	return s
}

// WithScope layers the non-zero fields of scope over any scope already on ctx.
func WithScope(ctx context.Context, scope Scope) context.Context {
	current, _ := ScopeFromContext(ctx)
	merged := current.merge(scope)
	if merged == current {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, merged)
}

// ScopeFromContext returns the scope attached to ctx, if any.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}
