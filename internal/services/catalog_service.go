package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tick42/quicksilver/internal/models"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

// CatalogQuery carries the listing parameters of a catalog request.
// Zero-valued fields take documented defaults.
type CatalogQuery struct {
	Name    string
	OrderBy string
	Page    int
	PerPage int
}

// CatalogService is the read path over the extension collection. Public
// listings only ever surface published extensions; the pending queue is a
// separate admin-only view.
type CatalogService struct {
	repo   ExtensionRepository
	logger *slog.Logger
}

func NewCatalogService(repo ExtensionRepository, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		logger: logger,
	}
}

// normalize applies defaults and rejects unrecognized ordering keys. An
// unknown orderBy is a validation error rather than a silent fallback.
func (s *CatalogService) normalize(query CatalogQuery) (CatalogQuery, error) {
	if query.Page < 1 {
		query.Page = DefaultPage
	}
	if query.PerPage < 1 {
		query.PerPage = DefaultPerPage
	}
	if query.OrderBy == "" {
		query.OrderBy = models.OrderByUploadDate
	}
	if !models.ValidOrderBy(query.OrderBy) {
		return query, models.NewValidationError(
			fmt.Sprintf("unrecognized orderBy value %q", query.OrderBy))
	}
	return query, nil
}

func (s *CatalogService) page(ctx context.Context, filter models.ExtensionFilter) (*models.PageResult[*models.Extension], error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return models.NewPageResult(items, filter.Page, filter.PerPage, total), nil
}

// FindAll returns one page of the published catalog, filtered by name and
// ordered by the requested key.
func (s *CatalogService) FindAll(ctx context.Context, query CatalogQuery) (*models.PageResult[*models.Extension], error) {
	query, err := s.normalize(query)
	if err != nil {
		return nil, err
	}

	return s.page(ctx, models.ExtensionFilter{
		Name:    query.Name,
		State:   models.ExtensionStatePublished,
		OrderBy: query.OrderBy,
		Page:    query.Page,
		PerPage: query.PerPage,
	})
}

// FindFeatured returns every published extension carrying the featured
// flag, newest first.
func (s *CatalogService) FindFeatured(ctx context.Context) ([]*models.Extension, error) {
	featured := true
	items, _, err := s.repo.List(ctx, models.ExtensionFilter{
		State:    models.ExtensionStatePublished,
		Featured: &featured,
		OrderBy:  models.OrderByUploadDate,
	})
	return items, err
}

// FindPending returns one page of the unpublished approval queue. Routing
// restricts this view to admins.
func (s *CatalogService) FindPending(ctx context.Context, query CatalogQuery) (*models.PageResult[*models.Extension], error) {
	query, err := s.normalize(query)
	if err != nil {
		return nil, err
	}

	return s.page(ctx, models.ExtensionFilter{
		Name:    query.Name,
		State:   models.ExtensionStateUnpublished,
		OrderBy: query.OrderBy,
		Page:    query.Page,
		PerPage: query.PerPage,
	})
}
