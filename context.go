package kaijuauth

import (
	"context"
	"sync"

	"github.com/karudo/kaijuauth/session"
)

type sessionContextKey struct{}
type userAgentContextKey struct{}

// sessionHolder lets flows that replace the request's active session
// (password login, logout) make the replacement visible to the resolver
// without re-deriving the context.
type sessionHolder struct {
	mu      sync.Mutex
	session *session.Session
}

func (h *sessionHolder) get() *session.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *sessionHolder) set(s *session.Session) {
	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
}

// WithSession attaches s to ctx as the request's active session. Service
// flows that produce a new session (PasswordAuth, Logout) swap it in place,
// so the resolver observes the final session after the handler returns.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, &sessionHolder{session: s})
}

// SessionFromContext returns the request's active session, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	if ctx == nil {
		return nil
	}
	holder, _ := ctx.Value(sessionContextKey{}).(*sessionHolder)
	if holder == nil {
		return nil
	}
	return holder.get()
}

// setContextSession swaps the active session if ctx carries a holder.
func setContextSession(ctx context.Context, s *session.Session) {
	if ctx == nil {
		return
	}
	if holder, _ := ctx.Value(sessionContextKey{}).(*sessionHolder); holder != nil {
		holder.set(s)
	}
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. It is recorded
// as session creation metadata.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
