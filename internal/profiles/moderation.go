package profiles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/auth"
	"github.com/bebusy/backend/internal/models"
)

// BanStore persists moderation changes.
type BanStore interface {
	GetRole(ctx context.Context, id uuid.UUID) (RoleRecord, error)
	SetBan(ctx context.Context, id uuid.UUID, until *time.Time, reason string) error
	ClearBan(ctx context.Context, id uuid.UUID) error
}

// Moderator applies bans. The profiles change trigger carries the new role to connected sessions.
type Moderator struct {
	store  BanStore
	now    func() time.Time
	logger *zap.Logger
}

// NewModerator creates a Moderator.
func NewModerator(store BanStore, logger *zap.Logger) *Moderator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Moderator{store: store, now: time.Now, logger: logger}
}

func (m *Moderator) checkTarget(ctx context.Context, actor auth.Identity, target uuid.UUID) error {
	if actor.Role != models.RoleAdmin {
		return ErrForbidden
	}
	if actor.UserID == target {
		return ErrProtectedTarget
	}
	rec, err := m.store.GetRole(ctx, target)
	if err != nil {
		return err
	}
	if rec.Role == models.RoleAdmin {
		return ErrProtectedTarget
	}
	return nil
}

// Ban bans target until the given time (nil is permanent).
func (m *Moderator) Ban(ctx context.Context, actor auth.Identity, target uuid.UUID, until *time.Time, reason string) error {
	if until != nil && !until.After(m.now()) {
		return ErrInvalidBan
	}
	if err := m.checkTarget(ctx, actor, target); err != nil {
		return err
	}
	if err := m.store.SetBan(ctx, target, until, reason); err != nil {
		return err
	}
	m.logger.Info("user banned",
		zap.String("actor_id", actor.UserID.String()),
		zap.String("user_id", target.String()),
		zap.Timep("banned_until", until))
	return nil
}

// Unban lifts any ban on target.
func (m *Moderator) Unban(ctx context.Context, actor auth.Identity, target uuid.UUID) error {
	if err := m.checkTarget(ctx, actor, target); err != nil {
		return err
	}
	if err := m.store.ClearBan(ctx, target); err != nil {
		return err
	}
	m.logger.Info("user unbanned", zap.String("actor_id", actor.UserID.String()), zap.String("user_id", target.String()))
	return nil
}
