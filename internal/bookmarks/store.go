package bookmarks

import (
	"context"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Store is the durable bookmarks table.
//
// Implementations apply their own access policy from the principal carried
// by ctx (see domain.WithPrincipal) and report violations of their
// (owner, url) uniqueness constraint as domain.ErrURLTaken.
type Store interface {
	// SelectByOwner returns the owner's bookmarks, newest first.
	SelectByOwner(ctx context.Context, ownerID string) ([]*domain.Bookmark, error)

	// SelectByOwnerAndURL returns the matching bookmark or nil, nil.
	SelectByOwnerAndURL(ctx context.Context, ownerID, url string) (*domain.Bookmark, error)

	Insert(ctx context.Context, in domain.NewBookmark) (*domain.Bookmark, error)
	UpdateByID(ctx context.Context, id string, patch domain.BookmarkPatch) error
	DeleteByID(ctx context.Context, id string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
