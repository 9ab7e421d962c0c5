package session

import (
	"context"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// SessionStore is the part of the Redis session store a RedisProvider needs.
type SessionStore interface {
	SaveSession(ctx context.Context, id string, p *domain.Principal) error
	LoadSession(ctx context.Context, id string) (*domain.Principal, error)
	DeleteSession(ctx context.Context, id string) error
	PublishPrincipal(ctx context.Context, id string, p *domain.Principal) error
	SubscribePrincipal(ctx context.Context, id string, fn func(*domain.Principal), onErr func(error)) (func(), error)
}

// RedisProvider is the Provider of one browser session. Sign-in state lives
// in Redis so every replica sees it; changes travel over Pub/Sub.
type RedisProvider struct {
	store     SessionStore
	sessionID string
	logger    logger.Logger
}

// NewRedisProvider creates the provider of sessionID.
func NewRedisProvider(store SessionStore, sessionID string, log logger.Logger) *RedisProvider {
	return &RedisProvider{
		store:     store,
		sessionID: sessionID,
		logger:    log.With(logger.String("session", sessionID)),
	}
}

func (r *RedisProvider) Current(ctx context.Context) (*domain.Principal, error) {
	p, err := r.store.LoadSession(ctx, r.sessionID)
	if err != nil {
		return nil, &domain.TransportError{Op: "load session", Err: err}
	}
	return p, nil
}

// Subscribe outlives ctx: the subscription stays open until unsubscribe.
func (r *RedisProvider) Subscribe(ctx context.Context, fn Listener) (func(), error) {
	unsubscribe, err := r.store.SubscribePrincipal(context.WithoutCancel(ctx), r.sessionID, fn, func(err error) {
		r.logger.Warn("dropping malformed session event", logger.Error(err))
	})
	if err != nil {
		return nil, &domain.TransportError{Op: "subscribe session", Err: err}
	}
	return unsubscribe, nil
}

func (r *RedisProvider) SignIn(ctx context.Context, p *domain.Principal) error {
	if err := r.store.SaveSession(ctx, r.sessionID, p); err != nil {
		return &domain.TransportError{Op: "save session", Err: err}
	}
	return r.publish(ctx, p)
}

func (r *RedisProvider) SignOut(ctx context.Context) error {
	if err := r.store.DeleteSession(ctx, r.sessionID); err != nil {
		return &domain.TransportError{Op: "delete session", Err: err}
	}
	return r.publish(ctx, nil)
}

func (r *RedisProvider) publish(ctx context.Context, p *domain.Principal) error {
	if err := r.store.PublishPrincipal(ctx, r.sessionID, p); err != nil {
		return &domain.TransportError{Op: "publish session", Err: err}
	}
	return nil
}
