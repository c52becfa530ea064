package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "changes:"
	publishTimeout = 5 * time.Second
)

// RedisFeed carries change events between instances over Redis pub/sub. Each table gets one
// Redis subscription per process, opened by the first local subscriber and closed with the last.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
	subs   *fanout

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRedisFeed creates a Redis-backed feed.
func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{
		client:  client,
		logger:  logger,
		subs:    newFanout(),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Publish sends ev to every instance subscribed to its table.
func (r *RedisFeed) Publish(ctx context.Context, ev ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channelPrefix+ev.Table, body).Err()
}

// Subscribe registers h for table rows matching filter.
func (r *RedisFeed) Subscribe(ctx context.Context, table string, filter Filter, h Handler) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, first := r.subs.add(table, subscription{filter: filter, h: h})
	if first {
		if err := r.listen(ctx, table); err != nil {
			r.subs.remove(table, id)
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.subs.remove(table, id) {
				if cancel, ok := r.cancels[table]; ok {
					cancel()
					delete(r.cancels, table)
				}
			}
		})
	}, nil
}

// listen opens the table's Redis subscription. Caller holds r.mu.
func (r *RedisFeed) listen(ctx context.Context, table string) error {
	channel := channelPrefix + table
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pubsub := r.client.Subscribe(subCtx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	r.cancels[table] = cancel

	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("invalid change event", zap.String("channel", channel), zap.Error(err))
					continue
				}
				r.subs.dispatch(ev)
			}
		}
	}()
	r.logger.Debug("change feed subscribed", zap.String("channel", channel))
	return nil
}

// Close stops every Redis subscription.
func (r *RedisFeed) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for table, cancel := range r.cancels {
		cancel()
		delete(r.cancels, table)
	}
}
