package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/pkg/database"
)

var (
	ErrEmailTaken    = errors.New("email or username already registered")
	ErrProfileAbsent = errors.New("profile not found")
)

const profileColumns = `id, email, password_hash, username, full_name, avatar_key, role, banned_until, ban_reason, created_at, updated_at`

// Repository handles credential lookups against profiles.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an auth repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Email, &p.Password, &p.Username, &p.FullName, &p.AvatarKey,
		&p.Role, &p.BannedUntil, &p.BanReason, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileAbsent
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByEmail returns a profile by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email))
}

// Create inserts a new profile with role user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, username, fullName string) (*models.Profile, error) {
	const q = `INSERT INTO profiles (email, password_hash, username, full_name, role)
		VALUES ($1, $2, $3, $4, 'user')
		RETURNING ` + profileColumns
	p, err := scanProfile(r.db.QueryRow(ctx, q, email, passwordHash, username, fullName))
	if database.IsCode(err, database.CodeUniqueViolation) {
		return nil, ErrEmailTaken
	}
	return p, err
}
