package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

func fakeGoogle(t *testing.T, userinfo string, userinfoStatus int) *Google {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(userinfoStatus)
		_, _ = w.Write([]byte(userinfo))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewGoogle(GoogleOptions{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://marks.example/auth/callback",
		UserInfoURL:  srv.URL + "/userinfo",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	})
}

func TestLoginURL(t *testing.T) {
	g := fakeGoogle(t, `{}`, http.StatusOK)

	u, err := url.Parse(g.LoginURL("state-1"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://marks.example/auth/callback", q.Get("redirect_uri"))
}

func TestExchange(t *testing.T) {
	g := fakeGoogle(t, `{"id":"g-42","email":"ada@example.com","verified_email":true,"name":"Ada"}`, http.StatusOK)

	p, err := g.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, &domain.Principal{ID: "g-42", Email: "ada@example.com", Name: "Ada", Provider: ProviderGoogle}, p)
}

func TestExchangeFailures(t *testing.T) {
	t.Run("bad code", func(t *testing.T) {
		g := fakeGoogle(t, `{}`, http.StatusOK)
		_, err := g.Exchange(context.Background(), "bad-code")
		assert.True(t, domain.IsTransport(err))
	})

	t.Run("empty code", func(t *testing.T) {
		g := fakeGoogle(t, `{}`, http.StatusOK)
		_, err := g.Exchange(context.Background(), "")
		assert.Error(t, err)
	})

	t.Run("userinfo error", func(t *testing.T) {
		g := fakeGoogle(t, `{"error":"boom"}`, http.StatusInternalServerError)
		_, err := g.Exchange(context.Background(), "good-code")
		assert.True(t, domain.IsTransport(err))
	})

	t.Run("userinfo without id", func(t *testing.T) {
		g := fakeGoogle(t, `{"email":"x@example.com"}`, http.StatusOK)
		_, err := g.Exchange(context.Background(), "good-code")
		assert.Error(t, err)
		assert.False(t, domain.IsTransport(err))
	})
}

func TestNewStateIsUnique(t *testing.T) {
	assert.NotEqual(t, NewState(), NewState())
}
