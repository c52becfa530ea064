package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

const dayLayout = "2006-01-02"

// Counters is the derived per-user view pushed to clients.
type Counters struct {
	UnreadMessages      int  `json:"unread_messages"`
	UnreadNotifications int  `json:"unread_notifications"`
	CheckedInToday      bool `json:"checked_in_today"`
}

// Snapshot is the authoritative state a session is seeded from.
type Snapshot struct {
	UnreadMessageIDs      []uuid.UUID
	UnreadNotificationIDs []uuid.UUID
	CheckedInToday        bool
}

// CheckInStatus is published on TopicCheckInToday.
type CheckInStatus struct {
	UserID         uuid.UUID `json:"user_id"`
	Day            string    `json:"day"`
	CheckedInToday bool      `json:"checked_in_today"`
}

// BusPublisher is the part of Bus the reconciler needs.
type BusPublisher interface {
	Publish(topic string, payload any)
}

type messageRow struct {
	ID          uuid.UUID `json:"id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	IsRead      bool      `json:"is_read"`
}

type notificationRow struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	IsRead bool      `json:"is_read"`
}

type checkInRow struct {
	UserID      uuid.UUID `json:"user_id"`
	CheckInDate string    `json:"check_in_date"`
}

// idSet holds unread ids and ids already read or deleted. A retired id is never re-added
// except through restore.
type idSet struct {
	unread map[uuid.UUID]struct{}
	done   map[uuid.UUID]struct{}
}

func newIDSet() idSet {
	return idSet{unread: map[uuid.UUID]struct{}{}, done: map[uuid.UUID]struct{}{}}
}

func (s idSet) add(id uuid.UUID) bool {
	if _, gone := s.done[id]; gone {
		return false
	}
	if _, ok := s.unread[id]; ok {
		return false
	}
	s.unread[id] = struct{}{}
	return true
}

func (s idSet) retire(id uuid.UUID) bool {
	s.done[id] = struct{}{}
	if _, ok := s.unread[id]; !ok {
		return false
	}
	delete(s.unread, id)
	return true
}

// restore undoes a retire, used when an optimistic read could not be persisted.
func (s idSet) restore(id uuid.UUID) bool {
	delete(s.done, id)
	return s.add(id)
}

// Reconciler folds change events for one user into Counters.
type Reconciler struct {
	userID uuid.UUID
	loc    *time.Location
	now    func() time.Time
	bus    BusPublisher

	mu            sync.Mutex
	messages      idSet
	notifications idSet
	checkInDay    string
}

// NewReconciler creates a reconciler for userID. loc decides the calendar day for check-ins.
func NewReconciler(userID uuid.UUID, loc *time.Location, bus BusPublisher) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{
		userID:        userID,
		loc:           loc,
		now:           time.Now,
		bus:           bus,
		messages:      newIDSet(),
		notifications: newIDSet(),
	}
}

func (r *Reconciler) today() string {
	return r.now().In(r.loc).Format(dayLayout)
}

// Seed merges an authoritative snapshot. Ids already seen as read stay read.
func (r *Reconciler) Seed(s Snapshot) {
	r.mu.Lock()
	for _, id := range s.UnreadMessageIDs {
		r.messages.add(id)
	}
	for _, id := range s.UnreadNotificationIDs {
		r.notifications.add(id)
	}
	var flipped bool
	if s.CheckedInToday {
		flipped = r.setCheckIn(true)
	}
	r.mu.Unlock()
	if flipped {
		r.publishCheckIn(true)
	}
}

// Apply folds one change event and reports whether Counters changed.
func (r *Reconciler) Apply(ev ChangeEvent) bool {
	switch ev.Table {
	case TableMessages:
		return r.applyMessage(ev)
	case TableNotifications:
		return r.applyNotification(ev)
	case TableCheckIns:
		return r.applyCheckIn(ev)
	}
	return false
}

func (r *Reconciler) applyMessage(ev ChangeEvent) bool {
	var row messageRow
	if err := json.Unmarshal(ev.Row(), &row); err != nil || row.RecipientID != r.userID {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Type {
	case EventInsert, EventUpdate:
		if row.IsRead {
			return r.messages.retire(row.ID)
		}
		if row.SenderID == r.userID {
			return false
		}
		return r.messages.add(row.ID)
	case EventDelete:
		return r.messages.retire(row.ID)
	}
	return false
}

func (r *Reconciler) applyNotification(ev ChangeEvent) bool {
	var row notificationRow
	if err := json.Unmarshal(ev.Row(), &row); err != nil || row.UserID != r.userID {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Type {
	case EventInsert, EventUpdate:
		if row.IsRead {
			return r.notifications.retire(row.ID)
		}
		return r.notifications.add(row.ID)
	case EventDelete:
		return r.notifications.retire(row.ID)
	}
	return false
}

func (r *Reconciler) applyCheckIn(ev ChangeEvent) bool {
	var row checkInRow
	if err := json.Unmarshal(ev.Row(), &row); err != nil || row.UserID != r.userID {
		return false
	}
	today := r.today()

	var want, relevant bool
	switch ev.Type {
	case EventInsert:
		want, relevant = true, row.CheckInDate == today
	case EventUpdate:
		if row.CheckInDate == today {
			want, relevant = true, true
		} else {
			var old checkInRow
			if json.Unmarshal(ev.OldRecord, &old) == nil && old.CheckInDate == today {
				want, relevant = false, true
			}
		}
	case EventDelete:
		want, relevant = false, row.CheckInDate == today
	}
	if !relevant {
		return false
	}

	r.mu.Lock()
	flipped := r.setCheckIn(want)
	r.mu.Unlock()
	if flipped {
		r.publishCheckIn(want)
	}
	return flipped
}

// setCheckIn records today's flag. Caller holds r.mu.
func (r *Reconciler) setCheckIn(done bool) bool {
	today := r.today()
	was := r.checkInDay == today
	if done {
		r.checkInDay = today
	} else if was {
		r.checkInDay = ""
	}
	return was != done
}

// RollDay forgets a check-in left over from a previous day and reports whether it did.
func (r *Reconciler) RollDay() bool {
	r.mu.Lock()
	stale := r.checkInDay != "" && r.checkInDay != r.today()
	if stale {
		r.checkInDay = ""
	}
	r.mu.Unlock()
	if stale {
		r.publishCheckIn(false)
	}
	return stale
}

func (r *Reconciler) publishCheckIn(done bool) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(TopicCheckInToday, CheckInStatus{UserID: r.userID, Day: r.today(), CheckedInToday: done})
}

// MarkMessageRead optimistically retires a message. A later authoritative event is a no-op.
func (r *Reconciler) MarkMessageRead(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages.retire(id)
}

// MarkNotificationRead optimistically retires a notification.
func (r *Reconciler) MarkNotificationRead(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notifications.retire(id)
}

// RevertMessageRead undoes MarkMessageRead after a failed write.
func (r *Reconciler) RevertMessageRead(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages.restore(id)
}

// RevertNotificationRead undoes MarkNotificationRead after a failed write.
func (r *Reconciler) RevertNotificationRead(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notifications.restore(id)
}

// Counters returns the current derived view.
func (r *Reconciler) Counters() Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Counters{
		UnreadMessages:      len(r.messages.unread),
		UnreadNotifications: len(r.notifications.unread),
		CheckedInToday:      r.checkInDay == r.today(),
	}
}
