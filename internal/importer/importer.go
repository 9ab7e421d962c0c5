package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/marks/internal/bookmarks"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// Adder is the part of the bookmark service an import needs.
type Adder interface {
	Add(ctx context.Context, ownerID, title, url string) (bookmarks.Outcome, error)
}

// Report counts what happened to each item.
type Report struct {
	Added      int
	Duplicates int // URL already in the collection
	Invalid    int // blank title or URL
}

// Importer adds items to a principal's collection through the bookmark
// service, so the duplicate rule applies exactly as for interactive adds.
type Importer struct {
	service Adder
	logger  logger.Logger
}

func New(service Adder, log logger.Logger) *Importer {
	return &Importer{service: service, logger: log}
}

// Run adds items for p in order. It stops at the first transport error and
// returns the report so far.
func (im *Importer) Run(ctx context.Context, p *domain.Principal, items []Item) (Report, error) {
	var report Report
	if p == nil || p.ID == "" {
		return report, domain.ErrUnauthenticated
	}
	ctx = domain.WithPrincipal(ctx, p)

	for _, it := range items {
		_, err := im.service.Add(ctx, p.ID, it.Title, it.URL)
		switch {
		case err == nil:
			report.Added++
		case errors.Is(err, domain.ErrValidation):
			report.Invalid++
		case errors.As(err, new(*domain.DuplicateError)):
			report.Duplicates++
			im.logger.Debug("skipping duplicate", logger.String("url", it.URL))
		default:
			return report, fmt.Errorf("import stopped at %q: %w", it.URL, err)
		}
	}

	im.logger.Info("import finished",
		logger.String("owner", p.ID),
		logger.Int("added", report.Added),
		logger.Int("duplicates", report.Duplicates),
		logger.Int("invalid", report.Invalid))
	return report, nil
}
