package inbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Snapshot(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	user := uuid.New()
	m1, m2, n1 := uuid.New(), uuid.New(), uuid.New()
	mockPool.ExpectQuery("SELECT id FROM messages").
		WithArgs(user).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(m1).AddRow(m2))
	mockPool.ExpectQuery("SELECT id FROM notifications").
		WithArgs(user).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(n1))
	mockPool.ExpectQuery("FROM check_ins").
		WithArgs(user, "2026-03-10").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	snap, err := NewRepository(mockPool).Snapshot(context.Background(), user, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{m1, m2}, snap.UnreadMessageIDs)
	assert.Equal(t, []uuid.UUID{n1}, snap.UnreadNotificationIDs)
	assert.True(t, snap.CheckedInToday)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_SnapshotError(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	user := uuid.New()
	mockPool.ExpectQuery("SELECT id FROM messages").
		WithArgs(user).
		WillReturnError(errors.New("connection reset"))

	_, err = NewRepository(mockPool).Snapshot(context.Background(), user, "2026-03-10")
	assert.Error(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_MarkMessageRead(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewRepository(mockPool)
	user, id := uuid.New(), uuid.New()

	mockPool.ExpectExec("UPDATE messages SET is_read = TRUE").
		WithArgs(id, user).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.MarkMessageRead(context.Background(), user, id))

	mockPool.ExpectExec("UPDATE messages SET is_read = TRUE").
		WithArgs(id, user).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.MarkMessageRead(context.Background(), user, id), ErrMessageNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_MarkNotificationRead(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	user, id := uuid.New(), uuid.New()
	mockPool.ExpectExec("UPDATE notifications SET is_read = TRUE").
		WithArgs(id, user).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewRepository(mockPool).MarkNotificationRead(context.Background(), user, id)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestRepository_MarkAllNotificationsRead(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	user := uuid.New()
	mockPool.ExpectExec("UPDATE notifications SET is_read = TRUE WHERE user_id").
		WithArgs(user).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := NewRepository(mockPool).MarkAllNotificationsRead(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRepository_ListNotifications(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	user, id := uuid.New(), uuid.New()
	now := time.Now()
	mockPool.ExpectQuery("FROM notifications WHERE user_id").
		WithArgs(user, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "kind", "body", "is_read", "created_at"}).
			AddRow(id, user, "streak", "7 days!", false, now))

	list, err := NewRepository(mockPool).ListNotifications(context.Background(), user, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "streak", list[0].Kind)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_ListMessages(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	user := uuid.New()
	mockPool.ExpectQuery("FROM messages WHERE recipient_id").
		WithArgs(user, 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "sender_id", "recipient_id", "body", "is_read", "created_at"}))

	list, err := NewRepository(mockPool).ListMessages(context.Background(), user, 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}
