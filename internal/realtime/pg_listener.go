package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotifyChannel is the Postgres channel the row-change triggers notify on.
const NotifyChannel = "row_changes"

// Publisher accepts change events for fan-out.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

const maxListenBackoff = 30 * time.Second

// PGListener turns Postgres NOTIFY payloads into change events.
type PGListener struct {
	pool    *pgxpool.Pool
	sink    Publisher
	logger  *zap.Logger
	backoff time.Duration

	// connect runs one LISTEN session; listened reports whether LISTEN was established.
	connect func(ctx context.Context) (listened bool, err error)
	after   func(time.Duration) <-chan time.Time
}

// NewPGListener creates a listener that forwards into sink.
func NewPGListener(pool *pgxpool.Pool, sink Publisher, logger *zap.Logger) *PGListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &PGListener{pool: pool, sink: sink, logger: logger, backoff: 2 * time.Second, after: time.After}
	l.connect = l.listen
	return l
}

// Run listens until ctx is done, reconnecting with capped backoff. The backoff starts over
// after every connection that got as far as LISTEN.
func (l *PGListener) Run(ctx context.Context) {
	wait := l.backoff
	for {
		listened, err := l.connect(ctx)
		if ctx.Err() != nil {
			l.logger.Info("change listener stopping")
			return
		}
		if listened {
			wait = l.backoff
		}
		l.logger.Warn("change listener disconnected", zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-ctx.Done():
			return
		case <-l.after(wait):
		}
		wait = nextBackoff(wait)
	}
}

func nextBackoff(wait time.Duration) time.Duration {
	return min(wait*2, maxListenBackoff)
}

func (l *PGListener) listen(ctx context.Context) (bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	// A LISTENing connection must not go back to the pool.
	pgConn := conn.Hijack()
	defer pgConn.Close(context.Background())

	if _, err := pgConn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return false, err
	}
	l.logger.Info("change listener started", zap.String("channel", NotifyChannel))

	for {
		n, err := pgConn.WaitForNotification(ctx)
		if err != nil {
			return true, err
		}
		ev, ok := decodeNotification(n.Payload)
		if !ok {
			l.logger.Warn("invalid notification payload", zap.String("payload", n.Payload))
			continue
		}
		if err := l.sink.Publish(ctx, ev); err != nil {
			l.logger.Warn("publish change event failed", zap.String("table", ev.Table), zap.Error(err))
		}
	}
}

func decodeNotification(payload string) (ChangeEvent, bool) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, false
	}
	switch ev.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return ev, false
	}
	return ev, ev.Table != ""
}
