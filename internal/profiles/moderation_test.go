package profiles

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bebusy/backend/internal/auth"
	"github.com/bebusy/backend/internal/models"
)

func TestModerator_Ban(t *testing.T) {
	store := new(MockStore)
	mod := NewModerator(store, nil)
	admin := auth.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	target := uuid.New()
	until := time.Now().Add(24 * time.Hour)

	store.On("GetRole", mock.Anything, target).Return(RoleRecord{Role: models.RoleUser}, nil)
	store.On("SetBan", mock.Anything, target, &until, "spam").Return(nil)

	require.NoError(t, mod.Ban(context.Background(), admin, target, &until, "spam"))
	store.AssertExpectations(t)
}

func TestModerator_BanRules(t *testing.T) {
	store := new(MockStore)
	mod := NewModerator(store, nil)
	admin := auth.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	mentor := auth.Identity{UserID: uuid.New(), Role: models.RoleMentor}
	otherAdmin := uuid.New()
	past := time.Now().Add(-time.Hour)
	store.On("GetRole", mock.Anything, otherAdmin).Return(RoleRecord{Role: models.RoleAdmin}, nil)

	ctx := context.Background()
	assert.ErrorIs(t, mod.Ban(ctx, mentor, uuid.New(), nil, ""), ErrForbidden)
	assert.ErrorIs(t, mod.Ban(ctx, admin, admin.UserID, nil, ""), ErrProtectedTarget)
	assert.ErrorIs(t, mod.Ban(ctx, admin, otherAdmin, nil, ""), ErrProtectedTarget)
	assert.ErrorIs(t, mod.Ban(ctx, admin, uuid.New(), &past, ""), ErrInvalidBan)
	store.AssertNotCalled(t, "SetBan", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestModerator_Unban(t *testing.T) {
	store := new(MockStore)
	mod := NewModerator(store, nil)
	admin := auth.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	target := uuid.New()
	store.On("GetRole", mock.Anything, target).Return(RoleRecord{Role: models.RoleBanned}, nil)
	store.On("ClearBan", mock.Anything, target).Return(nil)

	require.NoError(t, mod.Unban(context.Background(), admin, target))
	store.AssertExpectations(t)
}

func TestModerator_UnknownTarget(t *testing.T) {
	store := new(MockStore)
	mod := NewModerator(store, nil)
	admin := auth.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	target := uuid.New()
	store.On("GetRole", mock.Anything, target).Return(RoleRecord{}, ErrProfileNotFound)

	assert.ErrorIs(t, mod.Unban(context.Background(), admin, target), ErrProfileNotFound)
}
