package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Store is an in-process bookmarks table. It mirrors the postgres store:
// rows are scoped to the principal in ctx and (owner, url) is unique.
type Store struct {
	mu    sync.RWMutex
	rows  map[string]*row   // ID -> row
	byURL map[urlKey]string // (owner, url) -> ID
	seq   uint64
	now   func() time.Time
}

type row struct {
	bookmark *domain.Bookmark
	seq      uint64 // insertion order, breaks CreatedAt ties
}

type urlKey struct {
	owner string
	url   string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rows:  make(map[string]*row),
		byURL: make(map[urlKey]string),
		now:   time.Now,
	}
}

// SelectByOwner returns the owner's bookmarks, newest first.
func (s *Store) SelectByOwner(ctx context.Context, ownerID string) ([]*domain.Bookmark, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if ownerID != p.ID {
		return []*domain.Bookmark{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make([]*row, 0, len(s.rows))
	for _, r := range s.rows {
		if r.bookmark.OwnerID == ownerID {
			owned = append(owned, r)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.bookmark.CreatedAt.Equal(b.bookmark.CreatedAt) {
			return a.bookmark.CreatedAt.After(b.bookmark.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*domain.Bookmark, 0, len(owned))
	for _, r := range owned {
		out = append(out, r.bookmark.Clone())
	}
	return out, nil
}

// SelectByOwnerAndURL returns the matching bookmark or nil.
func (s *Store) SelectByOwnerAndURL(ctx context.Context, ownerID, url string) (*domain.Bookmark, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if ownerID != p.ID {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byURL[urlKey{owner: ownerID, url: url}]
	if !ok {
		return nil, nil
	}
	return s.rows[id].bookmark.Clone(), nil
}

// Insert stores a new bookmark for the principal in ctx.
func (s *Store) Insert(ctx context.Context, in domain.NewBookmark) (*domain.Bookmark, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if in.OwnerID != p.ID {
		return nil, domain.ErrForbidden
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := urlKey{owner: in.OwnerID, url: in.URL}
	if _, taken := s.byURL[key]; taken {
		return nil, domain.ErrURLTaken
	}

	s.seq++
	b := &domain.Bookmark{
		ID:        uuid.NewString(),
		OwnerID:   in.OwnerID,
		Title:     in.Title,
		URL:       in.URL,
		CreatedAt: s.now().UTC(),
	}
	s.rows[b.ID] = &row{bookmark: b, seq: s.seq}
	s.byURL[key] = b.ID

	return b.Clone(), nil
}

// UpdateByID patches a bookmark. Unknown or foreign ids are ignored.
func (s *Store) UpdateByID(ctx context.Context, id string, patch domain.BookmarkPatch) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.bookmark.OwnerID != p.ID {
		return nil
	}

	b := r.bookmark
	oldKey := urlKey{owner: b.OwnerID, url: b.URL}
	newKey := urlKey{owner: b.OwnerID, url: patch.URL}
	if newKey != oldKey {
		if _, taken := s.byURL[newKey]; taken {
			return domain.ErrURLTaken
		}
		delete(s.byURL, oldKey)
		s.byURL[newKey] = b.ID
	}

	updatedAt := patch.UpdatedAt.UTC()
	b.Title = patch.Title
	b.URL = patch.URL
	b.UpdatedAt = &updatedAt
	return nil
}

// DeleteByID removes a bookmark. Unknown or foreign ids are ignored.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.bookmark.OwnerID != p.ID {
		return nil
	}
	delete(s.byURL, urlKey{owner: r.bookmark.OwnerID, url: r.bookmark.URL})
	delete(s.rows, id)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Count returns the number of rows across all owners.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rows)
}

func principal(ctx context.Context) (*domain.Principal, error) {
	p, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}
