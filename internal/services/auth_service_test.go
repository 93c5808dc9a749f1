package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tokenauth "github.com/tick42/quicksilver/internal/auth"
	"github.com/tick42/quicksilver/internal/models"
)

func newAuthService(repo UserRepository) (*AuthService, *tokenauth.TokenManager) {
	tm := tokenauth.NewTokenManager("test-secret-that-is-long-enough", time.Hour)
	return NewAuthService(repo, tm, testLogger()), tm
}

func TestAuthService_Login(t *testing.T) {
	user := NewTestUser(7, "vlad")
	repo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return user, nil
		},
	}
	service, tm := newAuthService(repo)

	loggedIn, token, err := service.Login(context.Background(), "vlad", "correct-horse!")

	require.NoError(t, err)
	assert.Equal(t, int64(7), loggedIn.ID)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestAuthService_Login_UnknownUsername(t *testing.T) {
	repo := &MockUserRepository{
		GetByUsernameFunc: notFoundByUsername,
	}
	service, _ := newAuthService(repo)

	_, _, err := service.Login(context.Background(), "nobody", "whatever-pass")

	// Identical to a wrong password, so usernames cannot be probed.
	assert.ErrorIs(t, err, models.ErrCredentialMismatch)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return NewTestUser(7, "vlad"), nil
		},
	}
	service, _ := newAuthService(repo)

	_, _, err := service.Login(context.Background(), "vlad", "wrong-horse!")

	assert.ErrorIs(t, err, models.ErrCredentialMismatch)
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	for _, state := range []string{models.UserStatePending, models.UserStateBlocked} {
		t.Run(state, func(t *testing.T) {
			user := NewTestUser(7, "vlad")
			user.State = state
			repo := &MockUserRepository{
				GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
					return user, nil
				},
			}
			service, _ := newAuthService(repo)

			_, _, err := service.Login(context.Background(), "vlad", "correct-horse!")

			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}
