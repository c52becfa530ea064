package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bebusy/backend/internal/models"
)

// MockStore implements RoleStore, BanStore and ProfileStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetRole(ctx context.Context, id uuid.UUID) (RoleRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(RoleRecord), args.Error(1)
}

func (m *MockStore) ClearExpiredBan(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SetBan(ctx context.Context, id uuid.UUID, until *time.Time, reason string) error {
	args := m.Called(ctx, id, until, reason)
	return args.Error(0)
}

func (m *MockStore) ClearBan(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockStore) SetAvatarKey(ctx context.Context, id uuid.UUID, key string) (*string, error) {
	args := m.Called(ctx, id, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

// MockAvatars implements AvatarStorage.
type MockAvatars struct {
	mock.Mock
}

func (m *MockAvatars) PresignAvatarUpload(ctx context.Context, key, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockAvatars) PresignAvatarDownload(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockAvatars) DeleteAvatar(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockAvatars) PresignExpire() time.Duration {
	return 15 * time.Minute
}
