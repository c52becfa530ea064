package checkins

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Upsert(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	user, id := uuid.New(), uuid.New()
	now := time.Now()
	mockPool.ExpectQuery("INSERT INTO check_ins").
		WithArgs(user, "2026-03-10", "note").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "check_in_date", "note", "created_at", "updated_at"}).
			AddRow(id, user, day("2026-03-10"), "note", now, now))

	ci, err := NewRepository(mockPool).Upsert(context.Background(), user, "2026-03-10", "note")
	require.NoError(t, err)
	assert.Equal(t, id, ci.ID)
	assert.Equal(t, "2026-03-10", ci.CheckInDate.Format(dayLayout))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_RecentDates(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	user := uuid.New()
	mockPool.ExpectQuery("SELECT check_in_date FROM check_ins").
		WithArgs(user, streakWindow).
		WillReturnRows(pgxmock.NewRows([]string{"check_in_date"}).
			AddRow(day("2026-03-10")).AddRow(day("2026-03-09")))

	dates, err := NewRepository(mockPool).RecentDates(context.Background(), user, streakWindow)
	require.NoError(t, err)
	assert.Len(t, dates, 2)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepository_HasCheckedIn(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	user := uuid.New()
	mockPool.ExpectQuery("SELECT EXISTS").
		WithArgs(user, "2026-03-10").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := NewRepository(mockPool).HasCheckedIn(context.Background(), user, "2026-03-10")
	require.NoError(t, err)
	assert.False(t, ok)
}
