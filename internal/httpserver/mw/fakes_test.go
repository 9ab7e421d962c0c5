package mw

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/marks/internal/bookmarks"
	"github.com/MrSnakeDoc/marks/internal/domain"
)

// emptyBookmarks serves every principal an empty collection.
type emptyBookmarks struct{}

func (emptyBookmarks) LoadAll(context.Context, string) ([]*domain.Bookmark, error) {
	return []*domain.Bookmark{}, nil
}

func (emptyBookmarks) Add(context.Context, string, string, string) (bookmarks.Outcome, error) {
	return bookmarks.Outcome{}, nil
}

func (emptyBookmarks) Update(context.Context, string, *domain.Bookmark, string, string) (bookmarks.Outcome, error) {
	return bookmarks.Outcome{}, nil
}

func (emptyBookmarks) Remove(context.Context, string, string) (bookmarks.Outcome, error) {
	return bookmarks.Outcome{}, nil
}

// memSessions keeps browser sessions in memory and never publishes.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*domain.Principal
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*domain.Principal)}
}

func (m *memSessions) SaveSession(_ context.Context, id string, p *domain.Principal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = p
	return nil
}

func (m *memSessions) LoadSession(_ context.Context, id string) (*domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id], nil
}

func (m *memSessions) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) PublishPrincipal(context.Context, string, *domain.Principal) error {
	return nil
}

func (m *memSessions) SubscribePrincipal(context.Context, string, func(*domain.Principal), func(error)) (func(), error) {
	return func() {}, nil
}

func (m *memSessions) SaveOAuthState(context.Context, string, string) error { return nil }

func (m *memSessions) ConsumeOAuthState(context.Context, string) (string, error) { return "", nil }

func (m *memSessions) Ping(context.Context) error { return nil }
