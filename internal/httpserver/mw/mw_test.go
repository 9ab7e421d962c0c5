package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/session"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"marks.example.com", "marks.example.com", true},
		{"a.example.com", "*.example.com", true},
		{"a.b.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"badexample.com", "*.example.com", false},
		{"other.com", "marks.example.com", false},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"Marks.Example.com", "*.lan"}, logger.NewNop())(noContent)

	tests := map[string]int{
		"marks.example.com":      http.StatusNoContent,
		"MARKS.example.com:8443": http.StatusNoContent,
		"box.lan":                http.StatusNoContent,
		"evil.com":               http.StatusForbidden,
	}
	for host, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Host = host
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != want {
			t.Errorf("host %q: got %d, want %d", host, w.Code, want)
		}
	}

	pass := EnforceHost(nil, logger.NewNop())(noContent)
	w := httptest.NewRecorder()
	pass.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("empty list should pass through, got %d", w.Code)
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"192.0.2.0/24"}, true, logger.NewNop())(noContent)

	tests := []struct {
		name   string
		remote string
		xff    string
		want   int
	}{
		{"allowed remote", "192.0.2.50:1234", "", http.StatusNoContent},
		{"denied remote", "198.51.100.1:1234", "", http.StatusForbidden},
		{"allowed via proxy header", "127.0.0.1:1234", "192.0.2.9", http.StatusNoContent},
		{"denied via proxy header", "192.0.2.50:1234", "203.0.113.1", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/infra", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := RateLimit(RateLimitConfig{
		Burst:             2,
		RefillPerIPPerMin: 60,
		now:               func() time.Time { return clock },
	})(noContent)

	call := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/bookmarks", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := call("192.0.2.1:1"); w.Code != http.StatusNoContent {
			t.Fatalf("request %d: got %d", i, w.Code)
		}
	}

	w := call("192.0.2.1:2")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("burst exhausted: got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", got)
	}

	if w := call("192.0.2.2:1"); w.Code != http.StatusNoContent {
		t.Errorf("other client should have its own bucket, got %d", w.Code)
	}

	clock = clock.Add(time.Second)
	if w := call("192.0.2.1:3"); w.Code != http.StatusNoContent {
		t.Errorf("bucket should refill, got %d", w.Code)
	}
}

func TestLimiterSweep(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{
		Burst:         1,
		SweepInterval: time.Minute,
		IdleTTL:       time.Minute,
		now:           func() time.Time { return start },
	})

	l.allow("a", start)
	l.allow("b", start.Add(90*time.Second))
	if _, ok := l.buckets["a"]; ok {
		t.Error("idle bucket should have been swept")
	}
	if _, ok := l.buckets["b"]; !ok {
		t.Error("active bucket should be kept")
	}
}

type stubTokens map[string]*domain.Principal

func (s stubTokens) Verify(raw string) (*domain.Principal, error) {
	if p, ok := s[raw]; ok {
		return p, nil
	}
	return nil, domain.ErrUnauthenticated
}

func sessionDeps(t *testing.T, tokens deps.TokenVerifier) deps.Deps {
	t.Helper()
	reg := session.NewRegistry(emptyBookmarks{}, time.Minute, logger.NewNop())
	t.Cleanup(reg.Close)
	return deps.Deps{
		Logger:     logger.NewNop(),
		CookieName: "marks_session",
		SessionTTL: time.Hour,
		Registry:   reg,
		Tokens:     tokens,
	}
}

func TestSessionBearer(t *testing.T) {
	alice := &domain.Principal{ID: "alice"}
	d := sessionDeps(t, stubTokens{"good": alice})

	var got SessionInfo
	h := Session(d)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	r.Header.Set("Authorization", "bearer good")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got %d", w.Code)
	}
	if !got.Bearer() || got.Key != TokenKeyPrefix+"alice" {
		t.Errorf("unexpected session %+v", got)
	}
	if p := got.Controller.Snapshot().Principal; p == nil || p.ID != "alice" {
		t.Errorf("controller principal = %v", p)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("bearer requests must not get a cookie")
	}

	r = httptest.NewRequest(http.MethodGet, "/api/state", nil)
	r.Header.Set("Authorization", "Bearer bad")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: got %d", w.Code)
	}

	d.Tokens = nil
	r = httptest.NewRequest(http.MethodGet, "/api/state", nil)
	r.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()
	Session(d)(noContent).ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("tokens disabled: got %d", w.Code)
	}
}

func TestSessionCookie(t *testing.T) {
	d := sessionDeps(t, nil)
	sessions := newMemSessions()
	d.Sessions = sessions

	var got SessionInfo
	h := Session(d)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "marks_session" || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.MaxAge != 3600 {
		t.Errorf("unexpected cookie %+v", c)
	}
	if got.Bearer() || got.CookieID != c.Value || got.Controller == nil {
		t.Errorf("unexpected session %+v", got)
	}
	if n := d.Registry.Count(); n != 0 {
		t.Errorf("signed-out session kept %d controllers", n)
	}

	withCookie := func() {
		r := httptest.NewRequest(http.MethodGet, "/api/state", nil)
		r.AddCookie(c)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if len(w.Result().Cookies()) != 0 {
			t.Error("known cookie must not be reissued")
		}
	}

	withCookie()
	if n := d.Registry.Count(); n != 0 {
		t.Errorf("signed-out session kept %d controllers", n)
	}

	_ = sessions.SaveSession(context.Background(), c.Value, &domain.Principal{ID: "alice"})
	withCookie()
	first := got.Controller
	if p := first.Snapshot().Principal; p == nil || p.ID != "alice" {
		t.Errorf("controller principal = %v", p)
	}
	withCookie()
	if got.Controller != first {
		t.Error("same cookie should select the same controller")
	}
	if n := d.Registry.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	r.AddCookie(&http.Cookie{Name: "marks_session", Value: "../../etc/passwd"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if len(w.Result().Cookies()) != 1 || got.CookieID == "../../etc/passwd" {
		t.Error("malformed cookie should be replaced")
	}
}

func TestLiveSessionBindsSignedOut(t *testing.T) {
	d := sessionDeps(t, nil)
	d.Sessions = newMemSessions()

	var got SessionInfo
	h := LiveSession(d)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	c := w.Result().Cookies()[0]
	first := got.Controller

	r := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	r.AddCookie(c)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got.Controller != first {
		t.Error("stream sessions should be kept while signed out")
	}
	if n := d.Registry.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}
