package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tick42/quicksilver/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:       42,
		Username: "gregory",
		Role:     models.RoleUser,
		State:    models.UserStateActive,
	}
}

func TestTokenManager_IssueVerify_RoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret-that-is-long-enough", time.Hour)

	token, err := tm.Issue(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, "gregory", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenManager_Verify_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret-that-is-long-enough", -time.Minute)

	token, err := tm.Issue(testUser())
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_Verify_WrongSecret(t *testing.T) {
	issuer := NewTokenManager("test-secret-that-is-long-enough", time.Hour)
	verifier := NewTokenManager("a-completely-different-secret!!", time.Hour)

	token, err := issuer.Issue(testUser())
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManager_Verify_Malformed(t *testing.T) {
	tm := NewTokenManager("test-secret-that-is-long-enough", time.Hour)

	_, err := tm.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}
