package kaijuauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func resolvedHandler(capture *context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*capture = r.Context()
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestResolverAnonymousFallbackSetsCookie(t *testing.T) {
	svc, _ := newTestService(t, nil)
	rv := NewResolver(svc)

	var seen context.Context
	srv := rv.Middleware(resolvedHandler(&seen))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	sess := SessionFromContext(seen)
	if sess == nil {
		t.Fatal("handler saw no session")
	}
	if !sess.Anonymous() {
		t.Fatal("expected anonymous session without credentials")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "test-kaiju-session" {
		t.Fatalf("expected session cookie, got %v", cookies)
	}
	if cookies[0].Value != sess.ID {
		t.Fatal("cookie does not carry the new session id")
	}
	if !cookies[0].HttpOnly {
		t.Fatal("session cookie must be http-only")
	}
}

func TestResolverCookieRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, nil)
	rv := NewResolver(svc)

	// first request: login inside the handler, session persisted
	var loginID string
	login := rv.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.PasswordAuth(r.Context(), "alice", "secret")
		if err != nil {
			t.Errorf("PasswordAuth failed: %v", err)
			return
		}
		loginID = sess.ID
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	login.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != loginID {
		t.Fatalf("login session id not written back: %v", cookies)
	}

	// second request: cookie resolves to the stored session
	var seen context.Context
	authed := rv.Middleware(resolvedHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test-kaiju-session", Value: loginID})
	rec2 := httptest.NewRecorder()
	authed.ServeHTTP(rec2, req)

	sess := SessionFromContext(seen)
	if sess.UserID != "user-1" {
		t.Fatalf("cookie did not resolve the stored session: %+v", sess)
	}
	// id unchanged, nothing to write back
	if len(rec2.Result().Cookies()) != 0 {
		t.Fatal("unchanged session must not re-set the cookie")
	}
}

func TestResolverSessionHeaderWriteback(t *testing.T) {
	svc, _ := newTestService(t, nil)
	rv := NewResolver(svc)

	var seen context.Context
	srv := rv.Middleware(resolvedHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-Id", "AAAAAAAAAAAAAAAAAAAAAA") // well-formed but unknown
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	sess := SessionFromContext(seen)
	if !sess.Anonymous() {
		t.Fatal("unknown session id must fall back to anonymous")
	}
	if got := rec.Header().Get("X-Session-Id"); got != sess.ID {
		t.Fatalf("expected new id in session header, got %q", got)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("header-resolved requests must not receive cookies")
	}
}

func TestResolverBearerPath(t *testing.T) {
	svc, _ := newTestService(t, nil)
	rv := NewResolver(svc)

	pair, err := svc.Token(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	var seen context.Context
	srv := rv.Middleware(resolvedHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, got status %d", rec.Code)
	}
	sess := SessionFromContext(seen)
	if sess.UserID != "user-1" {
		t.Fatalf("bearer identity not attached: %+v", sess)
	}
	// stateless: no session id handed back
	if len(rec.Result().Cookies()) != 0 || rec.Header().Get("X-Session-Id") != "" {
		t.Fatal("token flows must not write a session id back")
	}
}

func TestResolverBadBearerRejected(t *testing.T) {
	svc, _ := newTestService(t, nil)
	rv := NewResolver(svc)

	srv := rv.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run for rejected credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestResolverUnsupportedSchemeRejected(t *testing.T) {
	svc, _ := newTestService(t, nil)
	rv := NewResolver(svc)

	srv := rv.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run for rejected credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Digest something")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestResolverLogoutSetsFreshCookie(t *testing.T) {
	svc, _ := newTestService(t, nil)
	rv := NewResolver(svc)

	sess, err := svc.PasswordAuth(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("PasswordAuth failed: %v", err)
	}

	logout := rv.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Logout(r.Context(), nil); err != nil {
			t.Errorf("Logout failed: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "test-kaiju-session", Value: sess.ID})
	rec := httptest.NewRecorder()
	logout.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected replacement cookie, got %v", cookies)
	}
	if cookies[0].Value == sess.ID {
		t.Fatal("logout must rotate the session id")
	}

	// old stored session is gone
	if loaded, err := svc.LoadSession(context.Background(), sess.ID); err != nil || loaded != nil {
		t.Fatalf("stored session should be deleted, got sess=%v err=%v", loaded, err)
	}
}
