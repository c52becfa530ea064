package inbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bebusy/backend/internal/models"
	"github.com/bebusy/backend/internal/realtime"
	"github.com/bebusy/backend/pkg/database"
)

var (
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// Repository handles message and notification read state.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an inbox repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// UnreadMessageIDs returns the ids of unread direct messages sent to userID by someone else.
func (r *Repository) UnreadMessageIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM messages WHERE recipient_id = $1 AND sender_id <> $1 AND NOT is_read`, userID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// UnreadNotificationIDs returns the ids of userID's unread notifications.
func (r *Repository) UnreadNotificationIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM notifications WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

// ListMessages returns the newest messages addressed to userID.
func (r *Repository) ListMessages(ctx context.Context, userID uuid.UUID, limit int) ([]models.Message, error) {
	rows, err := r.db.Query(ctx, `SELECT id, sender_id, recipient_id, body, is_read, created_at
		FROM messages WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// ListNotifications returns userID's newest notifications.
func (r *Repository) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id, kind, body, is_read, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Body, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// MarkMessageRead marks a message addressed to userID as read. Marking an already read message succeeds.
func (r *Repository) MarkMessageRead(ctx context.Context, userID, messageID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`, messageID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkNotificationRead marks one of userID's notifications as read.
func (r *Repository) MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of userID and returns how many changed.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Snapshot loads the authoritative unread ids and whether userID checked in on today (YYYY-MM-DD).
func (r *Repository) Snapshot(ctx context.Context, userID uuid.UUID, today string) (realtime.Snapshot, error) {
	var snap realtime.Snapshot
	var err error
	if snap.UnreadMessageIDs, err = r.UnreadMessageIDs(ctx, userID); err != nil {
		return snap, err
	}
	if snap.UnreadNotificationIDs, err = r.UnreadNotificationIDs(ctx, userID); err != nil {
		return snap, err
	}
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM check_ins WHERE user_id = $1 AND check_in_date = $2::date)`,
		userID, today).Scan(&snap.CheckedInToday)
	return snap, err
}
