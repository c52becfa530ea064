package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bebusy/backend/internal/models"
)

type stubReads struct {
	err error
}

func (s stubReads) MarkMessageRead(context.Context, uuid.UUID, uuid.UUID) error      { return s.err }
func (s stubReads) MarkNotificationRead(context.Context, uuid.UUID, uuid.UUID) error { return s.err }

func nextMessage(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return WSMessage{}
}

func decodeCounters(t *testing.T, msg WSMessage) Counters {
	t.Helper()
	require.Equal(t, EventCounters, msg.Event)
	var c Counters
	require.NoError(t, json.Unmarshal(msg.Data, &c))
	return c
}

func newTestHub(feed *MemoryFeed, res *stubResolver, snap Snapshot, poll time.Duration, reads ReadMarker) *Hub {
	return NewHub(SessionDeps{Feed: feed, Resolver: res, Snapshots: stubSnapshots{snap: snap}},
		SessionConfig{RolePollInterval: poll}, reads, zap.NewNop())
}

func TestHub_SessionFollowsFirstAndLastClient(t *testing.T) {
	feed, res := NewMemoryFeed(), newStubResolver()
	hub := newTestHub(feed, res, Snapshot{}, time.Hour, nil)
	defer hub.Close()
	me := uuid.New()
	res.set(me, models.RoleUser)
	ctx := context.Background()

	c1 := newClient(hub, me, nil, zap.NewNop())
	require.NoError(t, hub.Register(ctx, c1))
	assert.Equal(t, Counters{}, decodeCounters(t, nextMessage(t, c1)))
	assert.Equal(t, 1, feed.Subscribers(TableMessages))

	c2 := newClient(hub, me, nil, zap.NewNop())
	require.NoError(t, hub.Register(ctx, c2))
	decodeCounters(t, nextMessage(t, c2))
	assert.Equal(t, 1, feed.Subscribers(TableMessages), "second client shares the session")
	assert.Equal(t, 2, hub.ConnectedClients(me))

	require.NoError(t, feed.Publish(ctx, messageEvent(EventInsert, uuid.New(), uuid.New(), me, false)))
	assert.Equal(t, 1, decodeCounters(t, nextMessage(t, c1)).UnreadMessages)
	assert.Equal(t, 1, decodeCounters(t, nextMessage(t, c2)).UnreadMessages)

	hub.Unregister(c1)
	assert.Equal(t, 1, feed.Subscribers(TableMessages))
	hub.Unregister(c2)
	for _, table := range allTables {
		assert.Equal(t, 0, feed.Subscribers(table), table)
	}
	_, open := <-c2.send
	assert.False(t, open)
}

func TestHub_BanDisconnectsEveryClient(t *testing.T) {
	feed, res := NewMemoryFeed(), newStubResolver()
	hub := newTestHub(feed, res, Snapshot{}, 10*time.Millisecond, nil)
	defer hub.Close()
	me := uuid.New()
	res.set(me, models.RoleUser)

	clients := []*Client{newClient(hub, me, nil, zap.NewNop()), newClient(hub, me, nil, zap.NewNop())}
	for _, c := range clients {
		require.NoError(t, hub.Register(context.Background(), c))
	}

	res.set(me, models.RoleBanned)
	require.Eventually(t, func() bool { return hub.ConnectedClients(me) == 0 }, time.Second, 5*time.Millisecond)

	for _, c := range clients {
		var events []string
		for msg := range c.send {
			events = append(events, msg.Event)
		}
		assert.Contains(t, events, EventBanned)
		// Unregister after the socket drops is a no-op.
		hub.Unregister(c)
	}
	assert.Eventually(t, func() bool { return feed.Subscribers(TableMessages) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_MarkReadRevertsOnFailedWrite(t *testing.T) {
	feed, res := NewMemoryFeed(), newStubResolver()
	id := uuid.New()
	ctx := context.Background()
	me := uuid.New()
	res.set(me, models.RoleUser)

	hub := newTestHub(feed, res, Snapshot{UnreadMessageIDs: []uuid.UUID{id}}, time.Hour, stubReads{err: errors.New("db down")})
	defer hub.Close()
	c := newClient(hub, me, nil, zap.NewNop())
	require.NoError(t, hub.Register(ctx, c))
	assert.Equal(t, 1, decodeCounters(t, nextMessage(t, c)).UnreadMessages)

	require.Error(t, hub.MarkMessageRead(ctx, me, id))
	assert.Equal(t, 0, decodeCounters(t, nextMessage(t, c)).UnreadMessages)
	assert.Equal(t, 1, decodeCounters(t, nextMessage(t, c)).UnreadMessages)
	assert.Equal(t, 1, hub.session(me).Counters().UnreadMessages)
}

func TestHub_MarkReadPersists(t *testing.T) {
	feed, res := NewMemoryFeed(), newStubResolver()
	id := uuid.New()
	ctx := context.Background()
	me := uuid.New()
	res.set(me, models.RoleUser)

	hub := newTestHub(feed, res, Snapshot{UnreadNotificationIDs: []uuid.UUID{id}}, time.Hour, stubReads{})
	defer hub.Close()
	c := newClient(hub, me, nil, zap.NewNop())
	require.NoError(t, hub.Register(ctx, c))
	nextMessage(t, c)

	require.NoError(t, hub.MarkNotificationRead(ctx, me, id))
	assert.Equal(t, 0, decodeCounters(t, nextMessage(t, c)).UnreadNotifications)

	// The authoritative update changes nothing.
	require.NoError(t, feed.Publish(ctx, notificationEvent(EventUpdate, id, me, true)))
	assert.Equal(t, 0, hub.session(me).Counters().UnreadNotifications)
	assert.Empty(t, c.send)
}

func TestHub_SendToClosedClientIsDropped(t *testing.T) {
	c := newClient(nil, uuid.New(), nil, zap.NewNop())
	c.closeSend()
	c.closeSend()
	assert.False(t, c.enqueue(WSMessage{Event: "x"}))
}

func TestHub_ForwardRoutesBusPayloads(t *testing.T) {
	feed, res := NewMemoryFeed(), newStubResolver()
	hub := newTestHub(feed, res, Snapshot{}, time.Hour, nil)
	defer hub.Close()
	me := uuid.New()
	res.set(me, models.RoleUser)
	c := newClient(hub, me, nil, zap.NewNop())
	require.NoError(t, hub.Register(context.Background(), c))
	nextMessage(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewBus(nil)
	hub.Forward(ctx, bus, TopicCheckInToday, CheckInRoute)

	bus.Publish(TopicCheckInToday, "not a status")
	bus.Publish(TopicCheckInToday, CheckInStatus{UserID: uuid.New(), CheckedInToday: true})
	bus.Publish(TopicCheckInToday, CheckInStatus{UserID: me, Day: "2026-03-10", CheckedInToday: true})

	msg := nextMessage(t, c)
	assert.Equal(t, TopicCheckInToday, msg.Event)
	assert.JSONEq(t, `{"user_id":"`+me.String()+`","day":"2026-03-10","checked_in_today":true}`, string(msg.Data))
}
