package kaijuauth

import (
	"context"
	"net/http"
)

// Resolver is the request-boundary adapter. It decides which Service entry
// point handles the inbound credentials, attaches the resulting session to
// the request context, and writes a changed session id back to the client.
//
// Resolution priority: Authorization header, then the dedicated session-id
// header, then the session cookie, then a fresh anonymous session.
type Resolver struct {
	svc *Service
	cfg ResolverConfig
}

// NewResolver describes the newresolver operation and its observable behavior.
func NewResolver(svc *Service) *Resolver {
	return &Resolver{svc: svc, cfg: svc.config.Resolver}
}

type sessionSource int

const (
	sourceNone sessionSource = iota
	sourceAuthorization
	sourceHeader
	sourceCookie
)

// Middleware resolves the inbound session before the handler runs and
// persists any new or rotated session id on the way out. Handlers read the
// session via [SessionFromContext].
func (rv *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithUserAgent(r.Context(), r.UserAgent())

		source := sourceNone
		inboundID := ""

		var resolved *resolvedSession
		if value := r.Header.Get("Authorization"); value != "" {
			source = sourceAuthorization
			// credential present: failure rejects the request, it does not
			// fall through to anonymous
			ctx = WithSession(ctx, nil)
			sess, err := rv.svc.AuthFromAuthString(ctx, value)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			setContextSession(ctx, sess)
			resolved = &resolvedSession{inboundID: sess.ID}
		} else {
			if id := r.Header.Get(rv.cfg.SessionHeader); id != "" {
				source = sourceHeader
				inboundID = id
			} else if cookie, err := r.Cookie(rv.cfg.CookieName()); err == nil && cookie.Value != "" {
				source = sourceCookie
				inboundID = cookie.Value
			}

			sess, err := rv.svc.LoadSession(ctx, inboundID)
			if err != nil || sess == nil {
				// unknown, expired, or store outage: anonymous fallback
				sess, err = rv.svc.NewSession(ctx)
				if err != nil {
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				inboundID = ""
			}
			ctx = WithSession(ctx, sess)
			resolved = &resolvedSession{inboundID: inboundID}
		}

		rw := &sessionWriter{
			ResponseWriter: w,
			resolver:       rv,
			ctx:            ctx,
			source:         source,
			resolved:       resolved,
		}
		next.ServeHTTP(rw, r.WithContext(ctx))
		rw.finalize()
	})
}

type resolvedSession struct {
	inboundID string
}

// sessionWriter defers the session write-back until response headers are
// about to be committed, so a login or logout inside the handler still
// reaches the client.
type sessionWriter struct {
	http.ResponseWriter
	resolver *Resolver
	ctx      context.Context
	source   sessionSource
	resolved *resolvedSession
	wrote    bool
}

// WriteHeader describes the writeheader operation and its observable behavior.
func (w *sessionWriter) WriteHeader(status int) {
	w.finalize()
	w.ResponseWriter.WriteHeader(status)
}

// Write describes the write operation and its observable behavior.
func (w *sessionWriter) Write(p []byte) (int, error) {
	w.finalize()
	return w.ResponseWriter.Write(p)
}

// finalize writes the active session id back to the client when it changed
// during request handling: through the dedicated header for header-resolved
// sessions, through a Set-Cookie otherwise.
func (w *sessionWriter) finalize() {
	if w.wrote {
		return
	}
	w.wrote = true

	sess := SessionFromContext(w.ctx)
	if sess == nil || sess.ID == w.resolved.inboundID {
		return
	}

	switch w.source {
	case sourceHeader:
		w.Header().Set(w.resolver.cfg.SessionHeader, sess.ID)
	case sourceAuthorization:
		// token flows are stateless; nothing to hand back
	default:
		http.SetCookie(w.ResponseWriter, &http.Cookie{
			Name:     w.resolver.cfg.CookieName(),
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   !w.resolver.cfg.InsecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
