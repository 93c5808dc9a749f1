package services

import (
	"context"
	"log/slog"

	"github.com/tick42/quicksilver/internal/models"
)

// ExtensionRepository is the persistence surface the extension lifecycle
// needs.
type ExtensionRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Extension, error)
	Create(ctx context.Context, ext *models.Extension) (*models.Extension, error)
	Update(ctx context.Context, id int64, ext *models.Extension) (*models.Extension, error)
	Delete(ctx context.Context, id int64) error
	SetPublishedState(ctx context.Context, id int64, state string) (*models.Extension, error)
	SetFeatured(ctx context.Context, id int64, featured bool) (*models.Extension, error)
	IncrementDownloads(ctx context.Context, id int64) (*models.Extension, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*models.Extension, error)
	List(ctx context.Context, filter models.ExtensionFilter) ([]*models.Extension, int, error)
}

// AssetRemover deletes stored asset objects when their extension goes away.
type AssetRemover interface {
	Delete(ctx context.Context, key string) error
}

// CreateExtensionSpec carries the fields of a submission request.
type CreateExtensionSpec struct {
	Name        string
	Description string
	Version     string
	GitHubLink  string
	Logo        *string
	Cover       *string
	File        *string
}

// UpdateExtensionSpec is a field-level merge: only non-nil fields
// overwrite.
type UpdateExtensionSpec struct {
	Name        *string
	Description *string
	Version     *string
	GitHubLink  *string
	Logo        *string
	Cover       *string
	File        *string
}

type ExtensionService struct {
	repo   ExtensionRepository
	assets AssetRemover
	logger *slog.Logger
}

func NewExtensionService(repo ExtensionRepository, assets AssetRemover, logger *slog.Logger) *ExtensionService {
	return &ExtensionService{
		repo:   repo,
		assets: assets,
		logger: logger,
	}
}

// Create submits a new extension. Every submission starts unpublished,
// unfeatured, with zero downloads, regardless of what the request claims.
func (s *ExtensionService) Create(ctx context.Context, spec CreateExtensionSpec, ownerID int64) (*models.Extension, error) {
	messages := make([]string, 0)
	if spec.Name == "" {
		messages = append(messages, "name is required")
	}
	if spec.Version == "" {
		messages = append(messages, "version is required")
	}
	if len(messages) > 0 {
		return nil, models.NewValidationError(messages...)
	}

	ext := &models.Extension{
		Name:        spec.Name,
		Description: spec.Description,
		Version:     spec.Version,
		OwnerID:     ownerID,
		State:       models.ExtensionStateUnpublished,
		Logo:        spec.Logo,
		Cover:       spec.Cover,
		File:        spec.File,
	}
	if spec.GitHubLink != "" {
		ext.GitHub = &models.GitHubStats{Link: spec.GitHubLink}
	}

	created, err := s.repo.Create(ctx, ext)
	if err != nil {
		return nil, err
	}

	s.logger.Info("extension submitted",
		slog.Int64("extension_id", created.ID),
		slog.Int64("owner_id", ownerID))

	return created, nil
}

// Update merges the supplied fields into an existing extension. Only the
// owner or an admin may edit.
func (s *ExtensionService) Update(ctx context.Context, id int64, spec UpdateExtensionSpec, caller *models.Identity) (*models.Extension, error) {
	ext, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.canMutate(ext, caller) {
		return nil, models.ErrForbidden
	}

	if spec.Name != nil {
		ext.Name = *spec.Name
	}
	if spec.Description != nil {
		ext.Description = *spec.Description
	}
	if spec.Version != nil {
		ext.Version = *spec.Version
	}
	if spec.GitHubLink != nil {
		switch {
		case *spec.GitHubLink == "":
			ext.GitHub = nil
		case ext.GitHub == nil || ext.GitHub.Link != *spec.GitHubLink:
			// Pointing at a different repository invalidates the collected
			// stats; they restart from zero until the next sync.
			ext.GitHub = &models.GitHubStats{Link: *spec.GitHubLink}
		}
	}
	if spec.Logo != nil {
		ext.Logo = spec.Logo
	}
	if spec.Cover != nil {
		ext.Cover = spec.Cover
	}
	if spec.File != nil {
		ext.File = spec.File
	}

	return s.repo.Update(ctx, id, ext)
}

// Delete removes an extension and its stored assets. Asset removal is
// best-effort: a failed object delete is logged, never surfaced, because
// the record itself is already gone.
func (s *ExtensionService) Delete(ctx context.Context, id int64, caller *models.Identity) error {
	ext, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !s.canMutate(ext, caller) {
		return models.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	for _, key := range []*string{ext.Logo, ext.Cover, ext.File} {
		if key == nil || *key == "" {
			continue
		}
		if err := s.assets.Delete(ctx, *key); err != nil {
			s.logger.Warn("failed to delete asset",
				slog.Int64("extension_id", id),
				slog.String("key", *key),
				slog.Any("error", err))
		}
	}

	s.logger.Info("extension deleted",
		slog.Int64("extension_id", id),
		slog.Int64("caller_id", caller.UserID))

	return nil
}

// SetPublishedState publishes or recalls an extension. Recalling also
// clears the featured flag.
func (s *ExtensionService) SetPublishedState(ctx context.Context, id int64, newState string) (*models.Extension, error) {
	if !models.ValidExtensionState(newState) {
		return nil, models.ErrInvalidState
	}

	ext, err := s.repo.SetPublishedState(ctx, id, newState)
	if err != nil {
		return nil, err
	}

	s.logger.Info("extension state changed",
		slog.Int64("extension_id", id),
		slog.String("state", newState))

	return ext, nil
}

// SetFeaturedState toggles the featured flag. Featuring an unpublished
// extension fails with an invalid-state error.
func (s *ExtensionService) SetFeaturedState(ctx context.Context, id int64, featured bool) (*models.Extension, error) {
	ext, err := s.repo.SetFeatured(ctx, id, featured)
	if err != nil {
		return nil, err
	}

	s.logger.Info("extension featured flag changed",
		slog.Int64("extension_id", id),
		slog.Bool("featured", featured))

	return ext, nil
}

// FindByID returns an extension for display. Unpublished extensions are
// visible only to their owner and admins.
func (s *ExtensionService) FindByID(ctx context.Context, id int64, caller *models.Identity) (*models.Extension, error) {
	ext, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if ext.State != models.ExtensionStatePublished && !s.canMutate(ext, caller) {
		return nil, models.ErrExtensionUnavailable
	}

	return ext, nil
}

// RecordDownload counts a download of a published extension and returns
// the fresh row.
func (s *ExtensionService) RecordDownload(ctx context.Context, id int64) (*models.Extension, error) {
	ext, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if ext.State != models.ExtensionStatePublished {
		return nil, models.ErrExtensionUnavailable
	}

	return s.repo.IncrementDownloads(ctx, id)
}

// FindByOwner returns everything an account has submitted, for profile
// pages. Visibility is the caller's concern: profiles shown to strangers
// should be filtered to published entries first.
func (s *ExtensionService) FindByOwner(ctx context.Context, ownerID int64) ([]*models.Extension, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *ExtensionService) canMutate(ext *models.Extension, caller *models.Identity) bool {
	if caller == nil {
		return false
	}
	return ext.IsOwnedBy(caller.UserID) || caller.IsAdmin()
}
