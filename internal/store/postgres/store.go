package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// uniqueViolation is the SQLSTATE of a unique index conflict.
const uniqueViolation = "23505"

// Store is the bookmarks table in PostgreSQL. Every call is scoped to the
// principal carried by ctx.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Options tunes the connection pool.
type Options struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
}

// DefaultOptions returns the pool settings used by serve.
func DefaultOptions() Options {
	return Options{
		MaxIdleConns:    10,
		MaxOpenConns:    50,
		ConnMaxLifetime: time.Hour,
		SlowThreshold:   time.Second,
	}
}

// Open connects to dsn.
func Open(dsn string, opts Options, log logger.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newGormLogger(log, opts.SlowThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return &Store{db: db, now: time.Now}, nil
}

// Migrate creates or updates the bookmarks table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	// gen_random_uuid() is built in since PostgreSQL 13, pgcrypto before that.
	if err := s.db.WithContext(ctx).Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return fmt.Errorf("failed to enable pgcrypto: %w", err)
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&bookmarkRow{}); err != nil {
		return fmt.Errorf("failed to migrate bookmarks: %w", err)
	}
	return nil
}

func (s *Store) SelectByOwner(ctx context.Context, ownerID string) ([]*domain.Bookmark, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if ownerID != p.ID {
		return []*domain.Bookmark{}, nil
	}

	var rows []bookmarkRow
	err = s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select bookmarks: %w", err)
	}

	out := make([]*domain.Bookmark, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) SelectByOwnerAndURL(ctx context.Context, ownerID, url string) (*domain.Bookmark, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if ownerID != p.ID {
		return nil, nil
	}

	var rows []bookmarkRow
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND url = ?", ownerID, url).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select bookmark by url: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

func (s *Store) Insert(ctx context.Context, in domain.NewBookmark) (*domain.Bookmark, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if in.OwnerID != p.ID {
		return nil, domain.ErrForbidden
	}

	row := bookmarkRow{
		ID:        uuid.New(),
		Title:     in.Title,
		URL:       in.URL,
		UserID:    in.OwnerID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, translateError("insert bookmark", err)
	}
	return row.toDomain(), nil
}

// UpdateByID patches a bookmark. Unknown, malformed or foreign ids match no
// row and are ignored.
func (s *Store) UpdateByID(ctx context.Context, id string, patch domain.BookmarkPatch) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return nil
	}

	err = s.db.WithContext(ctx).
		Model(&bookmarkRow{}).
		Where("id = ? AND user_id = ?", rowID, p.ID).
		Updates(map[string]interface{}{
			"title":      patch.Title,
			"url":        patch.URL,
			"updated_at": patch.UpdatedAt.UTC(),
		}).Error
	if err != nil {
		return translateError("update bookmark", err)
	}
	return nil
}

// DeleteByID removes a bookmark. Unknown, malformed or foreign ids are
// ignored.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return nil
	}

	err = s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", rowID, p.ID).
		Delete(&bookmarkRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translateError maps a unique index conflict to domain.ErrURLTaken.
func translateError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrURLTaken
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrURLTaken
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func principal(ctx context.Context) (*domain.Principal, error) {
	p, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}

// gormWriter routes gorm's printf-style logs to the application logger.
type gormWriter struct {
	logger logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Debugf(format, args...)
}

func newGormLogger(log logger.Logger, slow time.Duration) gormlogger.Interface {
	return gormlogger.New(gormWriter{logger: log}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})
}
