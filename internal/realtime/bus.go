package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// TopicCheckInToday carries CheckInStatus whenever a user's today flag flips.
const TopicCheckInToday = "checkin_today"

// Bus is an in-process publish/subscribe hub. Publish never blocks: a subscriber whose buffer is
// full misses that message.
type Bus struct {
	mu     sync.RWMutex
	next   uint64
	topics map[string]map[uint64]chan any
	logger *zap.Logger
}

// NewBus creates an in-process bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{topics: make(map[string]map[uint64]chan any), logger: logger}
}

// Subscribe returns a channel of payloads for topic and a func that unsubscribes and closes it.
func (b *Bus) Subscribe(topic string, buffer int) (<-chan any, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan any, buffer)

	b.mu.Lock()
	b.next++
	id := b.next
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]chan any)
	}
	b.topics[topic][id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.topics[topic], id)
			if len(b.topics[topic]) == 0 {
				delete(b.topics, topic)
			}
			close(ch)
		})
	}
}

// Publish delivers payload to every current subscriber of topic.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.topics[topic] {
		select {
		case ch <- payload:
		default:
			b.logger.Debug("bus subscriber full; dropped", zap.String("topic", topic))
		}
	}
}
