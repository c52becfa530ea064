package groups

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bebusy/backend/pkg/database"
)

// ErrGroupNotFound is returned when binding into a group that no longer exists.
var ErrGroupNotFound = errors.New("group not found")

// Repository handles discussion-group membership.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a groups repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// AddMember seats a user in a group. Already seated is success.
func (r *Repository) AddMember(ctx context.Context, groupID, userID uuid.UUID) error {
	const q = `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING`
	_, err := r.db.Exec(ctx, q, groupID, userID)
	if database.IsCode(err, database.CodeForeignKeyViolation) {
		return ErrGroupNotFound
	}
	return err
}

// RemoveMember removes a user from a group. Not seated is success.
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return err
}

// ShouldBeSeated reports whether the user is an active member of the focus group bound to groupID.
func (r *Repository) ShouldBeSeated(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM focus_group_members m
		JOIN focus_groups f ON f.id = m.focus_group_id
		WHERE f.group_id = $1 AND m.user_id = $2 AND m.status = 'active')`
	var ok bool
	err := r.db.QueryRow(ctx, q, groupID, userID).Scan(&ok)
	return ok, err
}

// ReconcileBindings seats every active focus-group member in the focus group's bound group
// and returns how many seats were added.
func (r *Repository) ReconcileBindings(ctx context.Context) (int64, error) {
	const q = `INSERT INTO group_members (group_id, user_id)
		SELECT f.group_id, m.user_id
		FROM focus_group_members m
		JOIN focus_groups f ON f.id = m.focus_group_id
		WHERE m.status = 'active' AND f.group_id IS NOT NULL
		ON CONFLICT (group_id, user_id) DO NOTHING`
	tag, err := r.db.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
