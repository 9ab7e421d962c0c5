package bookmarks

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// Outcome is the result of a mutating call: the owner's collection as the
// store sees it right after the write.
type Outcome struct {
	Bookmarks []*domain.Bookmark
	Changed   bool // false => nothing was written (no-op edit)
}

// Service owns the bookmark lifecycle and the one-URL-per-owner rule.
type Service struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
}

// NewService creates a bookmark service on top of store.
func NewService(store Store, log logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// LoadAll returns every bookmark of ownerID, newest first.
// An empty ownerID yields an empty collection.
func (s *Service) LoadAll(ctx context.Context, ownerID string) ([]*domain.Bookmark, error) {
	if ownerID == "" {
		return []*domain.Bookmark{}, nil
	}

	list, err := s.store.SelectByOwner(ctx, ownerID)
	if err != nil {
		return nil, &domain.TransportError{Op: "load bookmarks", Err: err}
	}
	if list == nil {
		list = []*domain.Bookmark{}
	}
	return list, nil
}

// Add inserts a bookmark unless the owner already stored url.
func (s *Service) Add(ctx context.Context, ownerID, title, url string) (Outcome, error) {
	if domain.Blank(title) || domain.Blank(url) {
		return Outcome{}, domain.ErrValidation
	}

	if err := s.checkDuplicate(ctx, ownerID, url); err != nil {
		return Outcome{}, err
	}

	created, err := s.store.Insert(ctx, domain.NewBookmark{
		OwnerID: ownerID,
		Title:   title,
		URL:     url,
	})
	if err != nil {
		return Outcome{}, s.writeError(ctx, "insert bookmark", ownerID, url, err)
	}

	s.logger.Debug("bookmark added",
		logger.String("owner", ownerID),
		logger.String("id", created.ID))

	return s.reload(ctx, ownerID)
}

// Update changes title and/or url of current. Identical values are a no-op
// that never reaches the store.
func (s *Service) Update(ctx context.Context, ownerID string, current *domain.Bookmark, newTitle, newURL string) (Outcome, error) {
	if current == nil {
		return Outcome{}, domain.ErrNotFound
	}
	if newTitle == current.Title && newURL == current.URL {
		return Outcome{Changed: false}, nil
	}
	if domain.Blank(newTitle) || domain.Blank(newURL) {
		return Outcome{}, domain.ErrValidation
	}

	// Only a URL change can introduce a collision. The record itself is not
	// excluded: returning to its own URL is handled by the no-op branch.
	if newURL != current.URL {
		if err := s.checkDuplicate(ctx, ownerID, newURL); err != nil {
			return Outcome{}, err
		}
	}

	err := s.store.UpdateByID(ctx, current.ID, domain.BookmarkPatch{
		Title:     newTitle,
		URL:       newURL,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Outcome{}, s.writeError(ctx, "update bookmark", ownerID, newURL, err)
	}

	s.logger.Debug("bookmark updated",
		logger.String("owner", ownerID),
		logger.String("id", current.ID))

	return s.reload(ctx, ownerID)
}

// Remove deletes a bookmark by id. Ownership is the store policy's concern.
func (s *Service) Remove(ctx context.Context, ownerID, id string) (Outcome, error) {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return Outcome{}, &domain.TransportError{Op: "delete bookmark", Err: err}
	}

	s.logger.Debug("bookmark removed",
		logger.String("owner", ownerID),
		logger.String("id", id))

	return s.reload(ctx, ownerID)
}

// checkDuplicate fails with a DuplicateError when ownerID already stored url.
func (s *Service) checkDuplicate(ctx context.Context, ownerID, url string) error {
	existing, err := s.store.SelectByOwnerAndURL(ctx, ownerID, url)
	if err != nil {
		return &domain.TransportError{Op: "check duplicate", Err: err}
	}
	if existing != nil {
		return &domain.DuplicateError{ExistingID: existing.ID, URL: url}
	}
	return nil
}

// writeError turns a store write failure into the error callers see. A
// uniqueness violation means another write won the check-then-act race:
// report it like the pre-check would have.
func (s *Service) writeError(ctx context.Context, op, ownerID, url string, err error) error {
	if !errors.Is(err, domain.ErrURLTaken) {
		return &domain.TransportError{Op: op, Err: err}
	}

	s.logger.Info("store rejected duplicate url after pre-check",
		logger.String("owner", ownerID),
		logger.String("op", op))

	if dupErr := s.checkDuplicate(ctx, ownerID, url); dupErr != nil {
		return dupErr
	}
	// The conflicting row vanished in between; still a collision.
	return &domain.DuplicateError{URL: url}
}

func (s *Service) reload(ctx context.Context, ownerID string) (Outcome, error) {
	list, err := s.LoadAll(ctx, ownerID)
	if err != nil {
		return Outcome{Changed: true}, err
	}
	return Outcome{Bookmarks: list, Changed: true}, nil
}
