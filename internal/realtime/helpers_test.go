package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bebusy/backend/internal/auth"
	"github.com/bebusy/backend/internal/models"
)

func rawJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func messageEvent(typ EventType, id, sender, recipient uuid.UUID, isRead bool) ChangeEvent {
	row := rawJSON(map[string]any{"id": id, "sender_id": sender, "recipient_id": recipient, "is_read": isRead})
	ev := ChangeEvent{Table: TableMessages, Type: typ}
	if typ == EventDelete {
		ev.OldRecord = row
	} else {
		ev.Record = row
	}
	return ev
}

func notificationEvent(typ EventType, id, user uuid.UUID, isRead bool) ChangeEvent {
	row := rawJSON(map[string]any{"id": id, "user_id": user, "kind": "system", "is_read": isRead})
	ev := ChangeEvent{Table: TableNotifications, Type: typ}
	if typ == EventDelete {
		ev.OldRecord = row
	} else {
		ev.Record = row
	}
	return ev
}

func checkInEvent(typ EventType, user uuid.UUID, day string) ChangeEvent {
	row := rawJSON(map[string]any{"id": uuid.New(), "user_id": user, "check_in_date": day})
	ev := ChangeEvent{Table: TableCheckIns, Type: typ}
	if typ == EventDelete {
		ev.OldRecord = row
	} else {
		ev.Record = row
	}
	return ev
}

func profileEvent(user uuid.UUID, role models.Role) ChangeEvent {
	return ChangeEvent{
		Table:  TableProfiles,
		Type:   EventUpdate,
		Record: rawJSON(map[string]any{"id": user, "role": role}),
	}
}

// stubResolver answers with a mutable identity per user.
type stubResolver struct {
	mu    sync.Mutex
	ids   map[uuid.UUID]auth.Identity
	calls int
}

func newStubResolver() *stubResolver {
	return &stubResolver{ids: map[uuid.UUID]auth.Identity{}}
}

func (r *stubResolver) set(user uuid.UUID, role models.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ident := auth.Identity{UserID: user, Role: role}
	if role == models.RoleBanned {
		until := time.Now().Add(time.Hour)
		ident.BannedUntil = &until
	}
	r.ids[user] = ident
}

func (r *stubResolver) remove(user uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, user)
}

func (r *stubResolver) Resolve(_ context.Context, user uuid.UUID) (auth.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	ident, ok := r.ids[user]
	if !ok {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return ident, nil
}

type stubSnapshots struct {
	snap Snapshot
	err  error
}

func (s stubSnapshots) Snapshot(context.Context, uuid.UUID, string) (Snapshot, error) {
	return s.snap, s.err
}

// recorder collects notify callbacks.
type recorder struct {
	mu     sync.Mutex
	events []string
	last   map[string]any
}

func newRecorder() *recorder {
	return &recorder{last: map[string]any{}}
}

func (r *recorder) notify(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.last[event] = payload
}

func (r *recorder) counters() (Counters, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.last[EventCounters].(Counters)
	return c, ok
}

func (r *recorder) saw(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.last[event]
	return ok
}

type busRecord struct {
	mu       sync.Mutex
	payloads []any
}

func (b *busRecord) Publish(_ string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
}
