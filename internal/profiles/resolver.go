package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/auth"
	"github.com/bebusy/backend/internal/models"
)

// RoleStore is the persistence the resolver needs.
type RoleStore interface {
	GetRole(ctx context.Context, id uuid.UUID) (RoleRecord, error)
	ClearExpiredBan(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// Resolver resolves the acting user's role, lazily expiring lapsed bans.
type Resolver struct {
	store  RoleStore
	now    func() time.Time
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(store RoleStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, now: time.Now, logger: logger}
}

// Resolve returns the user's current identity. A nil id or a missing profile is ErrUnauthenticated;
// no default role is ever assumed.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (auth.Identity, error) {
	if userID == uuid.Nil {
		return auth.Identity{}, ErrUnauthenticated
	}
	return r.resolve(ctx, userID, true)
}

func (r *Resolver) resolve(ctx context.Context, userID uuid.UUID, clearLapsed bool) (auth.Identity, error) {
	rec, err := r.store.GetRole(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return auth.Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("get role: %w", err)
	}

	ident := auth.Identity{UserID: userID, Role: rec.Role, BannedUntil: rec.BannedUntil}
	if rec.Role != models.RoleBanned || rec.BannedUntil == nil {
		return ident, nil
	}

	now := r.now()
	if rec.BannedUntil.After(now) || !clearLapsed {
		return ident, nil
	}
	cleared, err := r.store.ClearExpiredBan(ctx, userID, now)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("clear expired ban: %w", err)
	}
	if !cleared {
		// The row changed under us (ban renewed or already cleared); trust a fresh read.
		return r.resolve(ctx, userID, false)
	}
	r.logger.Info("lapsed ban cleared", zap.String("user_id", userID.String()), zap.Time("banned_until", *rec.BannedUntil))
	return auth.Identity{UserID: userID, Role: models.RoleUser}, nil
}
