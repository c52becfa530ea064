package checkins

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/models"
)

const (
	dayLayout = "2006-01-02"
	// streakWindow bounds how far back a streak is counted.
	streakWindow = 366
)

// Store is the persistence surface of the service.
type Store interface {
	Upsert(ctx context.Context, userID uuid.UUID, day, note string) (*models.CheckIn, error)
	RecentDates(ctx context.Context, userID uuid.UUID, limit int) ([]time.Time, error)
	HasCheckedIn(ctx context.Context, userID uuid.UUID, day string) (bool, error)
}

// Service implements daily check-ins and streaks. loc decides the calendar day.
type Service struct {
	store  Store
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a check-ins service.
func NewService(store Store, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, loc: loc, now: time.Now, logger: logger}
}

// Today returns the current check-in day.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(dayLayout)
}

// CheckIn records today's check-in for userID.
func (s *Service) CheckIn(ctx context.Context, userID uuid.UUID, note string) (*models.CheckIn, error) {
	ci, err := s.store.Upsert(ctx, userID, s.Today(), note)
	if err != nil {
		return nil, err
	}
	s.logger.Info("checked in", zap.String("user_id", userID.String()), zap.String("day", ci.CheckInDate.Format(dayLayout)))
	return ci, nil
}

// HasCheckedIn reports whether userID checked in on day.
func (s *Service) HasCheckedIn(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	return s.store.HasCheckedIn(ctx, userID, day.Format(dayLayout))
}

// Streak returns userID's current streak.
func (s *Service) Streak(ctx context.Context, userID uuid.UUID) (models.Streak, error) {
	dates, err := s.store.RecentDates(ctx, userID, streakWindow)
	if err != nil {
		return models.Streak{}, err
	}
	return ComputeStreak(dates, s.Today()), nil
}

// ComputeStreak counts consecutive check-in days ending today, or ending yesterday when there is
// no check-in today yet. today is YYYY-MM-DD; dates are calendar dates in any order.
func ComputeStreak(dates []time.Time, today string) models.Streak {
	days := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		days[d.Format(dayLayout)] = struct{}{}
	}
	cursor, err := time.Parse(dayLayout, today)
	if err != nil {
		return models.Streak{}
	}

	var st models.Streak
	if _, ok := days[today]; ok {
		st.CheckedInToday = true
	} else {
		cursor = cursor.AddDate(0, 0, -1)
	}
	for {
		if _, ok := days[cursor.Format(dayLayout)]; !ok {
			break
		}
		st.Current++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return st
}
