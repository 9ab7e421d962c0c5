package domain

import "time"

// Bookmark is a personal link record owned by exactly one principal.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned by the store on insert.
	ID string `json:"id"`

	// OwnerID is the ID of the principal that created the bookmark.
	OwnerID string `json:"owner_id"`

	// ─────────────────────────────
	// Content (mutable)
	// ─────────────────────────────

	// Title is the display label. Never empty.
	Title string `json:"title"`

	// URL is unique per owner (exact string comparison).
	URL string `json:"url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is set once by the store at insert.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is nil until the first successful update.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// NewBookmark is the insert payload handed to a store.
type NewBookmark struct {
	OwnerID string
	Title   string
	URL     string
}

// BookmarkPatch is the update payload handed to a store.
type BookmarkPatch struct {
	Title     string
	URL       string
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can hand out bookmarks without
// sharing the UpdatedAt pointer.
func (b *Bookmark) Clone() *Bookmark {
	if b == nil {
		return nil
	}
	c := *b
	if b.UpdatedAt != nil {
		t := *b.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

// CloneAll copies every bookmark of the slice.
func CloneAll(in []*Bookmark) []*Bookmark {
	out := make([]*Bookmark, 0, len(in))
	for _, b := range in {
		out = append(out, b.Clone())
	}
	return out
}
