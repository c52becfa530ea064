package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/pkg/database"
)

// RoleRecord is the role and ban expiry as stored.
type RoleRecord struct {
	Role        models.Role
	BannedUntil *time.Time
}

// Repository handles profile persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a profiles repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// GetRole returns the stored role and ban expiry.
func (r *Repository) GetRole(ctx context.Context, id uuid.UUID) (RoleRecord, error) {
	var rec RoleRecord
	err := r.db.QueryRow(ctx, `SELECT role, banned_until FROM profiles WHERE id = $1`, id).
		Scan(&rec.Role, &rec.BannedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, ErrProfileNotFound
	}
	return rec, err
}

// ClearExpiredBan resets a lapsed ban. It only touches the row if the ban is still lapsed at now,
// so a ban renewed concurrently survives.
func (r *Repository) ClearExpiredBan(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	const q = `UPDATE profiles
		SET role = 'user', banned_until = NULL, ban_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND role = 'banned' AND banned_until IS NOT NULL AND banned_until <= $2`
	tag, err := r.db.Exec(ctx, q, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireBans clears every lapsed ban and returns how many profiles changed.
func (r *Repository) ExpireBans(ctx context.Context, now time.Time) (int64, error) {
	const q = `UPDATE profiles
		SET role = 'user', banned_until = NULL, ban_reason = NULL, updated_at = NOW()
		WHERE role = 'banned' AND banned_until IS NOT NULL AND banned_until <= $1`
	tag, err := r.db.Exec(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetBan bans a profile. A nil until is permanent.
func (r *Repository) SetBan(ctx context.Context, id uuid.UUID, until *time.Time, reason string) error {
	const q = `UPDATE profiles
		SET role = 'banned', banned_until = $2, ban_reason = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, until, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// ClearBan lifts a ban. Profiles that are not banned keep their role.
func (r *Repository) ClearBan(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE profiles
		SET role = CASE WHEN role = 'banned' THEN 'user' ELSE role END,
			banned_until = NULL, ban_reason = NULL, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// GetByID returns a full profile.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	const q = `SELECT id, email, username, full_name, avatar_key, role, banned_until, ban_reason, created_at, updated_at
		FROM profiles WHERE id = $1`
	var p models.Profile
	err := r.db.QueryRow(ctx, q, id).Scan(&p.ID, &p.Email, &p.Username, &p.FullName, &p.AvatarKey,
		&p.Role, &p.BannedUntil, &p.BanReason, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetAvatarKey stores a new avatar key and returns the previous one.
func (r *Repository) SetAvatarKey(ctx context.Context, id uuid.UUID, key string) (*string, error) {
	const q = `UPDATE profiles p SET avatar_key = $2, updated_at = NOW()
		FROM (SELECT avatar_key FROM profiles WHERE id = $1 FOR UPDATE) old
		WHERE p.id = $1
		RETURNING old.avatar_key`
	var prev *string
	err := r.db.QueryRow(ctx, q, id, key).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	return prev, err
}
