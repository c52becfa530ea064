package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/auth"
)

// Session events pushed to a user's clients.
const (
	EventCounters = "counters"
	EventBanned   = "banned"
	EventEnded    = "session_ended"
)

// Snapshotter loads the authoritative counters for a user. today is a YYYY-MM-DD date.
type Snapshotter interface {
	Snapshot(ctx context.Context, userID uuid.UUID, today string) (Snapshot, error)
}

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Feed      Feed
	Resolver  auth.IdentityResolver
	Snapshots Snapshotter
	Bus       BusPublisher
	Logger    *zap.Logger
}

// SessionConfig tunes a session.
type SessionConfig struct {
	RolePollInterval time.Duration
	Location         *time.Location
	// Now overrides the clock used to decide today's date.
	Now              func() time.Time
}

// Session keeps one user's counters in sync with the change feed and enforces bans while the
// user is connected.
type Session struct {
	UserID uuid.UUID

	rec      *Reconciler
	deps     SessionDeps
	notify   func(event string, payload any)
	onEnd    func(userID uuid.UUID)
	logger   *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	recheck   chan struct{}
	closeOnce sync.Once
	unsubs    []func()
}

// StartSession subscribes to the user's rows, seeds counters and starts the role poll.
// notify receives every event for the user's clients; onEnd is called once if the user is found
// banned or deleted, after which the session is closed.
func StartSession(ctx context.Context, userID uuid.UUID, deps SessionDeps, cfg SessionConfig,
	notify func(event string, payload any), onEnd func(uuid.UUID)) (*Session, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RolePollInterval <= 0 {
		cfg.RolePollInterval = 5 * time.Second
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		UserID:   userID,
		rec:      NewReconciler(userID, cfg.Location, deps.Bus),
		deps:     deps,
		notify:   notify,
		onEnd:    onEnd,
		logger:   logger.With(zap.String("user_id", userID.String())),
		ctx:      sctx,
		cancel:   cancel,
		recheck:  make(chan struct{}, 1),
	}

	if cfg.Now != nil {
		s.rec.now = cfg.Now
	}

	uid := userID.String()
	subs := []struct {
		table  string
		filter Filter
		h      Handler
	}{
		{TableMessages, Eq("recipient_id", uid), s.onChange},
		{TableNotifications, Eq("user_id", uid), s.onChange},
		{TableCheckIns, Eq("user_id", uid), s.onChange},
		{TableProfiles, Eq("id", uid), s.onProfileChange},
	}
	for _, sub := range subs {
		unsub, err := deps.Feed.Subscribe(sctx, sub.table, sub.filter, sub.h)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("subscribe %s: %w", sub.table, err)
		}
		s.unsubs = append(s.unsubs, unsub)
	}

	// Seed after subscribing so nothing committed in between is missed.
	if deps.Snapshots != nil {
		snap, err := deps.Snapshots.Snapshot(ctx, userID, s.rec.today())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		s.rec.Seed(snap)
	}
	s.push()

	go s.pollRole(cfg.RolePollInterval)
	return s, nil
}

func (s *Session) onChange(ev ChangeEvent) {
	if s.ctx.Err() != nil {
		return
	}
	if s.rec.Apply(ev) {
		s.push()
	}
}

func (s *Session) onProfileChange(ChangeEvent) {
	select {
	case s.recheck <- struct{}{}:
	default:
	}
}

func (s *Session) push() {
	if s.notify != nil {
		s.notify(EventCounters, s.rec.Counters())
	}
}

func (s *Session) pollRole(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		case <-s.recheck:
		}
		if s.rec.RollDay() {
			s.push()
		}
		if s.checkRole() {
			return
		}
	}
}

// checkRole re-resolves the user's role and reports whether the session ended.
func (s *Session) checkRole() bool {
	ident, err := s.deps.Resolver.Resolve(s.ctx, s.UserID)
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		s.logger.Info("profile gone; ending session")
		s.end(EventEnded, nil)
		return true
	case err != nil:
		if s.ctx.Err() == nil {
			s.logger.Warn("role poll failed", zap.Error(err))
		}
		return false
	case ident.IsBanned():
		s.logger.Info("user banned; ending session")
		s.end(EventBanned, map[string]any{"banned_until": ident.BannedUntil})
		return true
	}
	return false
}

func (s *Session) end(event string, payload any) {
	if s.notify != nil {
		s.notify(event, payload)
	}
	if s.onEnd != nil {
		s.onEnd(s.UserID)
	}
	s.Close()
}

// Counters returns the session's current counters.
func (s *Session) Counters() Counters {
	return s.rec.Counters()
}

// MarkMessageRead applies an optimistic read and pushes the new counters.
func (s *Session) MarkMessageRead(id uuid.UUID) bool {
	changed := s.rec.MarkMessageRead(id)
	if changed {
		s.push()
	}
	return changed
}

// MarkNotificationRead applies an optimistic read and pushes the new counters.
func (s *Session) MarkNotificationRead(id uuid.UUID) bool {
	changed := s.rec.MarkNotificationRead(id)
	if changed {
		s.push()
	}
	return changed
}

// RevertMessageRead undoes an optimistic read.
func (s *Session) RevertMessageRead(id uuid.UUID) {
	if s.rec.RevertMessageRead(id) {
		s.push()
	}
}

// RevertNotificationRead undoes an optimistic read.
func (s *Session) RevertNotificationRead(id uuid.UUID) {
	if s.rec.RevertNotificationRead(id) {
		s.push()
	}
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close cancels every subscription and the role poll. Safe to call more than once and from
// any goroutine, including the session's own callbacks.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		for _, unsub := range s.unsubs {
			unsub()
		}
		s.unsubs = nil
	})
}
