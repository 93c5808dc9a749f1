package integration

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tick42/quicksilver/internal/models"
	"github.com/tick42/quicksilver/internal/repositories"
	"github.com/tick42/quicksilver/pkg/auth"
)

func setup(t *testing.T) (*TestDB, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Teardown(ctx) })

	return db, ctx
}

func createUser(t *testing.T, repo *repositories.UserRepository, ctx context.Context, username string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("correct-horse!")
	require.NoError(t, err)

	user, err := repo.Create(ctx, &models.User{
		Username:     username,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return user
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	db, ctx := setup(t)
	repo := repositories.NewUserRepository(db.DB)

	created := createUser(t, repo, ctx, "gregory")
	assert.Equal(t, models.RoleUser, created.Role)
	assert.Equal(t, models.UserStateActive, created.State)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "gregory", byID.Username)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserRepository_SetState(t *testing.T) {
	db, ctx := setup(t)
	repo := repositories.NewUserRepository(db.DB)

	user := createUser(t, repo, ctx, "vlad")

	blocked, err := repo.SetState(ctx, user.ID, models.UserStateBlocked)
	require.NoError(t, err)
	assert.Equal(t, models.UserStateBlocked, blocked.State)

	_, err = repo.SetState(ctx, user.ID, models.UserStateBlocked)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = repo.SetState(ctx, 9999, models.UserStateBlocked)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db, ctx := setup(t)
	repo := repositories.NewUserRepository(db.DB)

	createUser(t, repo, ctx, "gregory")

	hash, _ := auth.HashPassword("correct-horse!")
	_, err := repo.Create(ctx, &models.User{Username: "gregory", PasswordHash: hash})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestExtensionRepository_PublishFeatureRecall(t *testing.T) {
	db, ctx := setup(t)
	users := repositories.NewUserRepository(db.DB)
	extensions := repositories.NewExtensionRepository(db.DB)

	owner := createUser(t, users, ctx, "vlad")

	ext, err := extensions.Create(ctx, &models.Extension{
		Name:    "clipboard-sync",
		Version: "1.0.0",
		OwnerID: owner.ID,
		GitHub:  &models.GitHubStats{Link: "https://github.com/tick42/clipboard-sync"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStateUnpublished, ext.State)
	assert.Equal(t, "vlad", ext.OwnerName)

	// Featuring before publication must be refused.
	_, err = extensions.SetFeatured(ctx, ext.ID, true)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	published, err := extensions.SetPublishedState(ctx, ext.ID, models.ExtensionStatePublished)
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatePublished, published.State)

	featured, err := extensions.SetFeatured(ctx, ext.ID, true)
	require.NoError(t, err)
	assert.True(t, featured.Featured)

	// Recall clears the featured flag in the same statement.
	recalled, err := extensions.SetPublishedState(ctx, ext.ID, models.ExtensionStateUnpublished)
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStateUnpublished, recalled.State)
	assert.False(t, recalled.Featured)
}

func TestExtensionRepository_ListFilterAndPagination(t *testing.T) {
	db, ctx := setup(t)
	users := repositories.NewUserRepository(db.DB)
	extensions := repositories.NewExtensionRepository(db.DB)

	owner := createUser(t, users, ctx, "vlad")

	for i := 0; i < 12; i++ {
		ext, err := extensions.Create(ctx, &models.Extension{
			Name:    fmt.Sprintf("tool-%02d", i),
			Version: "1.0.0",
			OwnerID: owner.ID,
		})
		require.NoError(t, err)

		if i%2 == 0 {
			_, err = extensions.SetPublishedState(ctx, ext.ID, models.ExtensionStatePublished)
			require.NoError(t, err)
		}
	}

	page1, total, err := extensions.List(ctx, models.ExtensionFilter{
		State:   models.ExtensionStatePublished,
		OrderBy: models.OrderByName,
		Page:    1,
		PerPage: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, page1, 4)
	assert.Equal(t, "tool-00", page1[0].Name)

	page2, _, err := extensions.List(ctx, models.ExtensionFilter{
		State:   models.ExtensionStatePublished,
		OrderBy: models.OrderByName,
		Page:    2,
		PerPage: 4,
	})
	require.NoError(t, err)
	assert.Len(t, page2, 2)

	beyond, _, err := extensions.List(ctx, models.ExtensionFilter{
		State:   models.ExtensionStatePublished,
		OrderBy: models.OrderByName,
		Page:    5,
		PerPage: 4,
	})
	require.NoError(t, err)
	assert.Empty(t, beyond)

	named, total, err := extensions.List(ctx, models.ExtensionFilter{
		Name:    "tool-01",
		Page:    1,
		PerPage: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, named, 1)
	assert.Equal(t, "tool-01", named[0].Name)
}

func TestExtensionRepository_UpdateRewritesGitHubStats(t *testing.T) {
	db, ctx := setup(t)
	users := repositories.NewUserRepository(db.DB)
	extensions := repositories.NewExtensionRepository(db.DB)

	owner := createUser(t, users, ctx, "vlad")
	ext, err := extensions.Create(ctx, &models.Extension{
		Name:    "clipboard-sync",
		Version: "1.0.0",
		OwnerID: owner.ID,
		GitHub:  &models.GitHubStats{Link: "https://github.com/tick42/old-repo"},
	})
	require.NoError(t, err)

	err = extensions.UpdateGitHubStats(ctx, ext.ID, &models.GitHubStats{
		OpenIssues:   5,
		PullRequests: 2,
	})
	require.NoError(t, err)

	// Switching the link writes the fresh zeroed stats back to the row.
	ext.GitHub = &models.GitHubStats{Link: "https://github.com/tick42/new-repo"}
	updated, err := extensions.Update(ctx, ext.ID, ext)
	require.NoError(t, err)

	require.NotNil(t, updated.GitHub)
	assert.Equal(t, "https://github.com/tick42/new-repo", updated.GitHub.Link)
	assert.Zero(t, updated.GitHub.OpenIssues)
	assert.Zero(t, updated.GitHub.PullRequests)
	assert.Nil(t, updated.GitHub.LastCommit)
}

func TestExtensionRepository_Downloads(t *testing.T) {
	db, ctx := setup(t)
	users := repositories.NewUserRepository(db.DB)
	extensions := repositories.NewExtensionRepository(db.DB)

	owner := createUser(t, users, ctx, "vlad")
	ext, err := extensions.Create(ctx, &models.Extension{
		Name:    "clipboard-sync",
		Version: "1.0.0",
		OwnerID: owner.ID,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = extensions.IncrementDownloads(ctx, ext.ID)
		require.NoError(t, err)
	}

	fresh, err := extensions.GetByID(ctx, ext.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), fresh.Downloads)
}
