package checkins

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/pkg/database"
)

// Repository handles check-in persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a check-ins repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Upsert records userID's check-in for day (YYYY-MM-DD). A second check-in the same day replaces the note.
func (r *Repository) Upsert(ctx context.Context, userID uuid.UUID, day, note string) (*models.CheckIn, error) {
	const q = `INSERT INTO check_ins (user_id, check_in_date, note)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (user_id, check_in_date) DO UPDATE SET note = EXCLUDED.note, updated_at = NOW()
		RETURNING id, user_id, check_in_date, note, created_at, updated_at`
	var ci models.CheckIn
	err := r.db.QueryRow(ctx, q, userID, day, note).
		Scan(&ci.ID, &ci.UserID, &ci.CheckInDate, &ci.Note, &ci.CreatedAt, &ci.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ci, nil
}

// RecentDates returns up to limit check-in dates for userID, newest first.
func (r *Repository) RecentDates(ctx context.Context, userID uuid.UUID, limit int) ([]time.Time, error) {
	rows, err := r.db.Query(ctx,
		`SELECT check_in_date FROM check_ins WHERE user_id = $1 ORDER BY check_in_date DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

// HasCheckedIn reports whether userID has a check-in on day (YYYY-MM-DD).
func (r *Repository) HasCheckedIn(ctx context.Context, userID uuid.UUID, day string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM check_ins WHERE user_id = $1 AND check_in_date = $2::date)`,
		userID, day).Scan(&ok)
	return ok, err
}
