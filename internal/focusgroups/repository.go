package focusgroups

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/pkg/database"
)

// Repository handles focus-group persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a focus-group repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// GetByID returns a focus group.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.FocusGroup, error) {
	const q = `SELECT id, title, description, mentor_id, mentor_name, total_spots, available_spots, is_full,
		group_id, start_date, end_date, tags, created_at, updated_at
		FROM focus_groups WHERE id = $1`
	var fg models.FocusGroup
	err := r.db.QueryRow(ctx, q, id).Scan(
		&fg.ID, &fg.Title, &fg.Description, &fg.MentorID, &fg.MentorName, &fg.TotalSpots, &fg.AvailableSpots, &fg.IsFull,
		&fg.GroupID, &fg.StartDate, &fg.EndDate, &fg.Tags, &fg.CreatedAt, &fg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFocusGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	return &fg, nil
}

// GetCapacity reads the trigger-maintained capacity fields and the bound group. Zero capacity is
// not an error; a missing focus group is ErrFocusGroupNotFound.
func (r *Repository) GetCapacity(ctx context.Context, id uuid.UUID) (models.Capacity, error) {
	const q = `SELECT available_spots, total_spots, is_full, group_id FROM focus_groups WHERE id = $1`
	var c models.Capacity
	err := r.db.QueryRow(ctx, q, id).Scan(&c.AvailableSpots, &c.TotalSpots, &c.IsFull, &c.BoundGroupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrFocusGroupNotFound
	}
	return c, err
}

// FindMembership returns the membership row, or nil if the user is not a member.
func (r *Repository) FindMembership(ctx context.Context, focusGroupID, userID uuid.UUID) (*models.FocusGroupMembership, error) {
	const q = `SELECT focus_group_id, user_id, status, created_at
		FROM focus_group_members WHERE focus_group_id = $1 AND user_id = $2`
	var m models.FocusGroupMembership
	err := r.db.QueryRow(ctx, q, focusGroupID, userID).Scan(&m.FocusGroupID, &m.UserID, &m.Status, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMembership creates a membership row. The capacity trigger may reject an active row.
func (r *Repository) InsertMembership(ctx context.Context, focusGroupID, userID uuid.UUID, status models.MembershipStatus) (*models.FocusGroupMembership, error) {
	const q = `INSERT INTO focus_group_members (focus_group_id, user_id, status)
		VALUES ($1, $2, $3)
		RETURNING focus_group_id, user_id, status, created_at`
	var m models.FocusGroupMembership
	err := r.db.QueryRow(ctx, q, focusGroupID, userID, status).Scan(&m.FocusGroupID, &m.UserID, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, classifyInsertError(err)
	}
	return &m, nil
}

func classifyInsertError(err error) error {
	pgErr, ok := database.PgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case database.CodeUniqueViolation:
		return ErrAlreadyMember
	case database.CodeCheckViolation:
		return &CapacityError{Message: pgErr.Message}
	case database.CodeForeignKeyViolation:
		if pgErr.ConstraintName == "focus_group_members_focus_group_id_fkey" {
			return ErrFocusGroupNotFound
		}
	}
	return fmt.Errorf("insert membership: %w", err)
}

// DeleteMembership removes a membership row and reports whether one existed.
func (r *Repository) DeleteMembership(ctx context.Context, focusGroupID, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM focus_group_members WHERE focus_group_id = $1 AND user_id = $2`, focusGroupID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListMembers returns members with profile names, optionally filtered by status.
func (r *Repository) ListMembers(ctx context.Context, focusGroupID uuid.UUID, status *models.MembershipStatus) ([]models.FocusGroupMember, error) {
	const q = `SELECT m.user_id, p.username, p.full_name, m.status, m.created_at
		FROM focus_group_members m
		JOIN profiles p ON p.id = m.user_id
		WHERE m.focus_group_id = $1 AND ($2::text IS NULL OR m.status = $2)
		ORDER BY m.created_at`
	var filter *string
	if status != nil {
		s := string(*status)
		filter = &s
	}
	rows, err := r.db.Query(ctx, q, focusGroupID, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.FocusGroupMember
	for rows.Next() {
		var m models.FocusGroupMember
		if err := rows.Scan(&m.UserID, &m.Username, &m.FullName, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
