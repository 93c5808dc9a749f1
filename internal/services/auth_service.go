package services

import (
	"context"
	"errors"
	"log/slog"

	tokenauth "github.com/tick42/quicksilver/internal/auth"
	"github.com/tick42/quicksilver/internal/models"
	"github.com/tick42/quicksilver/pkg/auth"
)

type AuthService struct {
	repo   UserRepository
	tm     *tokenauth.TokenManager
	logger *slog.Logger
}

func NewAuthService(repo UserRepository, tm *tokenauth.TokenManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		repo:   repo,
		tm:     tm,
		logger: logger,
	}
}

// Login verifies credentials and issues a token. A missing account and a
// wrong password fail identically so usernames cannot be probed.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, "", models.ErrCredentialMismatch
		}
		return nil, "", err
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", models.ErrCredentialMismatch
	}

	if user.State != models.UserStateActive {
		s.logger.Info("login refused for inactive account",
			slog.Int64("user_id", user.ID),
			slog.String("state", user.State))
		return nil, "", models.ErrUnauthorized
	}

	token, err := s.tm.Issue(user)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("login succeeded", slog.Int64("user_id", user.ID))

	return user, token, nil
}
