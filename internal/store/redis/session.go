package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

const (
	// DefaultSessionTTL is the default lifetime of a signed-in session (30 days)
	DefaultSessionTTL = 30 * 24 * time.Hour
	// DefaultOAuthStateTTL bounds the time between /auth/login and the callback
	DefaultOAuthStateTTL = 10 * time.Minute
)

// ErrUnknownState is returned when an OAuth state is missing or expired.
var ErrUnknownState = errors.New("unknown or expired oauth state")

// SessionStore handles Redis operations for sessions and login state
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	events *eventHub
}

// NewSessionStore creates a new Redis session store
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		client: client,
		ttl:    ttl,
		events: newEventHub(client),
	}
}

// SaveSession stores the principal signed in on a session
func (s *SessionStore) SaveSession(ctx context.Context, id string, p *domain.Principal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal principal: %w", err)
	}

	if err := s.client.Set(ctx, SessionKey(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadSession returns the principal of a session, nil when signed out
func (s *SessionStore) LoadSession(ctx context.Context, id string) (*domain.Principal, error) {
	data, err := s.client.Get(ctx, SessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return decodePrincipal(data)
}

// DeleteSession signs a session out
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, SessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PublishPrincipal notifies subscribers of a session that its principal
// changed. A nil principal means signed out.
func (s *SessionStore) PublishPrincipal(ctx context.Context, id string, p *domain.Principal) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal principal: %w", err)
	}

	if err := s.client.Publish(ctx, SessionChannel(id), data).Err(); err != nil {
		return fmt.Errorf("failed to publish principal: %w", err)
	}
	return nil
}

// SubscribePrincipal listens to principal changes of a session until the
// returned function is called. All sessions share one Redis connection; fn
// runs on a goroutine of its own and may skip intermediate changes when it
// falls behind, never the latest one. Undecodable messages go to onErr.
func (s *SessionStore) SubscribePrincipal(ctx context.Context, id string, fn func(*domain.Principal), onErr func(error)) (func(), error) {
	if err := s.events.listen(ctx); err != nil {
		return nil, err
	}
	return s.events.add(id, fn, onErr), nil
}

// Close ends the shared event subscription.
func (s *SessionStore) Close() error {
	return s.events.close()
}

// SaveOAuthState remembers which session started a login
func (s *SessionStore) SaveOAuthState(ctx context.Context, state, sessionID string) error {
	if err := s.client.Set(ctx, OAuthStateKey(state), sessionID, DefaultOAuthStateTTL).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState returns the session that started a login. A state can be
// consumed only once.
func (s *SessionStore) ConsumeOAuthState(ctx context.Context, state string) (string, error) {
	sessionID, err := s.client.GetDel(ctx, OAuthStateKey(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrUnknownState
		}
		return "", fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return sessionID, nil
}

// Ping reports whether Redis answers
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodePrincipal(data []byte) (*domain.Principal, error) {
	var p *domain.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal principal: %w", err)
	}
	return p, nil
}
