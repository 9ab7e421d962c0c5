// Package auth turns third-party identities into principals.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/utils"
)

const (
	// ProviderGoogle tags principals resolved through Google.
	ProviderGoogle = "google"

	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleOptions configures the OAuth client.
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UserInfoURL  string          // optional, defaults to Google's v2 userinfo
	Endpoint     oauth2.Endpoint // optional, defaults to google.Endpoint
}

// Google runs the authorization-code flow against Google.
type Google struct {
	conf        *oauth2.Config
	userInfoURL string
}

type googleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func NewGoogle(opts GoogleOptions) *Google {
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	userInfoURL := opts.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	return &Google{
		conf: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

// NewState returns an unguessable OAuth state value.
func NewState() string {
	return uuid.NewString()
}

// LoginURL returns the consent page URL for state.
func (g *Google) LoginURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the principal it identifies.
func (g *Google) Exchange(ctx context.Context, code string) (*domain.Principal, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}

	token, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return nil, &domain.TransportError{Op: "oauth code exchange", Err: err}
	}

	user, err := g.fetchUser(ctx, g.conf.Client(ctx, token))
	if err != nil {
		return nil, &domain.TransportError{Op: "oauth userinfo", Err: err}
	}
	if user.ID == "" {
		return nil, errors.New("userinfo response has no id")
	}

	return &domain.Principal{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Provider: ProviderGoogle,
	}, nil
}

func (g *Google) fetchUser(ctx context.Context, client *http.Client) (*googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, body)
	}

	var user googleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return &user, nil
}
