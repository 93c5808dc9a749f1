package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tick42/quicksilver/internal/models"
	"github.com/tick42/quicksilver/pkg/auth"
)

// MockUserRepository implements UserRepository with overridable behavior
// per test.
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id int64) (*models.User, error)
	GetByUsernameFunc  func(ctx context.Context, username string) (*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	SetStateFunc       func(ctx context.Context, id int64, newState string) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, id int64, passwordHash string) error
	ListFunc           func(ctx context.Context, state string) ([]*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.GetByUsernameFunc(ctx, username)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return m.CreateFunc(ctx, user)
}

func (m *MockUserRepository) SetState(ctx context.Context, id int64, newState string) (*models.User, error) {
	return m.SetStateFunc(ctx, id, newState)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return m.UpdatePasswordFunc(ctx, id, passwordHash)
}

func (m *MockUserRepository) List(ctx context.Context, state string) ([]*models.User, error) {
	return m.ListFunc(ctx, state)
}

// MockExtensionRepository implements ExtensionRepository with overridable
// behavior per test.
type MockExtensionRepository struct {
	GetByIDFunc            func(ctx context.Context, id int64) (*models.Extension, error)
	CreateFunc             func(ctx context.Context, ext *models.Extension) (*models.Extension, error)
	UpdateFunc             func(ctx context.Context, id int64, ext *models.Extension) (*models.Extension, error)
	DeleteFunc             func(ctx context.Context, id int64) error
	SetPublishedStateFunc  func(ctx context.Context, id int64, state string) (*models.Extension, error)
	SetFeaturedFunc        func(ctx context.Context, id int64, featured bool) (*models.Extension, error)
	IncrementDownloadsFunc func(ctx context.Context, id int64) (*models.Extension, error)
	ListByOwnerFunc        func(ctx context.Context, ownerID int64) ([]*models.Extension, error)
	ListFunc               func(ctx context.Context, filter models.ExtensionFilter) ([]*models.Extension, int, error)
}

func (m *MockExtensionRepository) GetByID(ctx context.Context, id int64) (*models.Extension, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *MockExtensionRepository) Create(ctx context.Context, ext *models.Extension) (*models.Extension, error) {
	return m.CreateFunc(ctx, ext)
}

func (m *MockExtensionRepository) Update(ctx context.Context, id int64, ext *models.Extension) (*models.Extension, error) {
	return m.UpdateFunc(ctx, id, ext)
}

func (m *MockExtensionRepository) Delete(ctx context.Context, id int64) error {
	return m.DeleteFunc(ctx, id)
}

func (m *MockExtensionRepository) SetPublishedState(ctx context.Context, id int64, state string) (*models.Extension, error) {
	return m.SetPublishedStateFunc(ctx, id, state)
}

func (m *MockExtensionRepository) SetFeatured(ctx context.Context, id int64, featured bool) (*models.Extension, error) {
	return m.SetFeaturedFunc(ctx, id, featured)
}

func (m *MockExtensionRepository) IncrementDownloads(ctx context.Context, id int64) (*models.Extension, error) {
	return m.IncrementDownloadsFunc(ctx, id)
}

func (m *MockExtensionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Extension, error) {
	return m.ListByOwnerFunc(ctx, ownerID)
}

func (m *MockExtensionRepository) List(ctx context.Context, filter models.ExtensionFilter) ([]*models.Extension, int, error) {
	return m.ListFunc(ctx, filter)
}

// MockAssetRemover records the keys it was asked to delete.
type MockAssetRemover struct {
	Deleted []string
	Err     error
}

func (m *MockAssetRemover) Delete(ctx context.Context, key string) error {
	m.Deleted = append(m.Deleted, key)
	return m.Err
}

// NewTestUser builds an active USER account with a known password hash.
func NewTestUser(id int64, username string) *models.User {
	hash, _ := auth.HashPassword("correct-horse!")
	now := time.Now()
	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleUser,
		State:        models.UserStateActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestExtension builds an unpublished extension owned by ownerID.
func NewTestExtension(id, ownerID int64, name string) *models.Extension {
	now := time.Now()
	return &models.Extension{
		ID:        id,
		Name:      name,
		Version:   "1.0.0",
		OwnerID:   ownerID,
		OwnerName: "owner",
		State:     models.ExtensionStateUnpublished,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testLogger() *slog.Logger {
	return slog.Default()
}
