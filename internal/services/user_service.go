package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tick42/quicksilver/internal/models"
	"github.com/tick42/quicksilver/pkg/auth"
)

// UserRepository is the persistence surface the account lifecycle needs.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	SetState(ctx context.Context, id int64, newState string) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	List(ctx context.Context, state string) ([]*models.User, error)
}

// RegisterSpec carries the fields of a registration request.
type RegisterSpec struct {
	Username        string
	Password        string
	ConfirmPassword string
	ProfileImage    *string
}

// ChangePasswordSpec carries the fields of a password rotation request.
type ChangePasswordSpec struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

type UserService struct {
	repo   UserRepository
	logger *slog.Logger
}

func NewUserService(repo UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

// Register creates a self-registered account. New accounts start ACTIVE;
// deployments that want manual activation flip the state to PENDING through
// the admin state endpoint.
func (s *UserService) Register(ctx context.Context, spec RegisterSpec) (*models.User, error) {
	return s.register(ctx, spec, models.RoleUser)
}

// RegisterAdmin creates an ADMIN account. Route-level authorization
// restricts this path to admins.
func (s *UserService) RegisterAdmin(ctx context.Context, spec RegisterSpec) (*models.User, error) {
	return s.register(ctx, spec, models.RoleAdmin)
}

func (s *UserService) register(ctx context.Context, spec RegisterSpec, role string) (*models.User, error) {
	if spec.Password != spec.ConfirmPassword {
		return nil, models.ErrPasswordMismatch
	}

	messages := make([]string, 0)
	if spec.Username == "" {
		messages = append(messages, "username is required")
	}
	messages = append(messages, auth.ValidatePassword(spec.Password)...)
	if len(messages) > 0 {
		return nil, models.NewValidationError(messages...)
	}

	if _, err := s.repo.GetByUsername(ctx, spec.Username); err == nil {
		return nil, models.ErrUsernameExists
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := auth.HashPassword(spec.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     spec.Username,
		PasswordHash: hash,
		Role:         role,
		State:        models.UserStateActive,
		ProfileImage: spec.ProfileImage,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		// A concurrent registration can still lose the race after the
		// uniqueness pre-check.
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrUsernameExists
		}
		return nil, err
	}

	s.logger.Info("account registered",
		slog.Int64("user_id", created.ID),
		slog.String("role", created.Role))

	return created, nil
}

// SetState transitions an account between lifecycle states. Setting the
// state it already has is a conflict, not a no-op.
func (s *UserService) SetState(ctx context.Context, id int64, newState string) (*models.User, error) {
	if !models.ValidUserState(newState) {
		return nil, models.ErrInvalidState
	}

	updated, err := s.repo.SetState(ctx, id, newState)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account state changed",
		slog.Int64("user_id", id),
		slog.String("state", newState))

	return updated, nil
}

// ChangePassword rotates an account's password after re-verifying the
// current one.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, spec ChangePasswordSpec) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := auth.ComparePassword(user.PasswordHash, spec.CurrentPassword); err != nil {
		return models.ErrPasswordMismatch
	}

	if spec.NewPassword != spec.ConfirmPassword {
		return models.ErrPasswordMismatch
	}

	if messages := auth.ValidatePassword(spec.NewPassword); len(messages) > 0 {
		return models.NewValidationError(messages...)
	}

	hash, err := auth.HashPassword(spec.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.Int64("user_id", userID))

	return nil
}

// FindByID returns an account for display. Inactive accounts are hidden
// from everyone but their owner and admins, including whether they exist
// in that state at all.
func (s *UserService) FindByID(ctx context.Context, id int64, caller *models.Identity) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if user.State != models.UserStateActive {
		if caller == nil || (caller.UserID != user.ID && !caller.IsAdmin()) {
			return nil, models.ErrProfileUnavailable
		}
	}

	return user, nil
}

// FindAll lists accounts for the admin console, optionally by state.
func (s *UserService) FindAll(ctx context.Context, state string) ([]*models.User, error) {
	if state != "" && !models.ValidUserState(state) {
		return nil, models.ErrInvalidState
	}

	return s.repo.List(ctx, state)
}
