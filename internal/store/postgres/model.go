package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// bookmarkRow maps the bookmarks table.
type bookmarkRow struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title     string     `gorm:"type:text;not null"`
	URL       string     `gorm:"type:text;not null;uniqueIndex:uidx_bookmarks_user_url,priority:2"`
	UserID    string     `gorm:"type:text;not null;index:idx_bookmarks_user_id;uniqueIndex:uidx_bookmarks_user_url,priority:1"`
	CreatedAt time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt *time.Time `gorm:"type:timestamptz;autoUpdateTime:false"`
}

func (bookmarkRow) TableName() string { return "bookmarks" }

func (r *bookmarkRow) toDomain() *domain.Bookmark {
	b := &domain.Bookmark{
		ID:        r.ID.String(),
		OwnerID:   r.UserID,
		Title:     r.Title,
		URL:       r.URL,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.UTC()
		b.UpdatedAt = &t
	}
	return b
}
