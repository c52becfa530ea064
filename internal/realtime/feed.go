package realtime

import (
	"context"
	"sync"
)

// Handler receives change events for one subscription.
type Handler func(ChangeEvent)

// Feed delivers change events per table. Unsubscribe is idempotent.
type Feed interface {
	Subscribe(ctx context.Context, table string, filter Filter, h Handler) (unsubscribe func(), err error)
}

type subscription struct {
	filter Filter
	h      Handler
}

// fanout is the per-table subscriber registry shared by the feed implementations.
type fanout struct {
	mu     sync.RWMutex
	next   uint64
	tables map[string]map[uint64]subscription
}

func newFanout() *fanout {
	return &fanout{tables: make(map[string]map[uint64]subscription)}
}

// add registers a subscriber and reports whether it is the table's first.
func (f *fanout) add(table string, s subscription) (id uint64, first bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	subs := f.tables[table]
	if subs == nil {
		subs = make(map[uint64]subscription)
		f.tables[table] = subs
	}
	subs[f.next] = s
	return f.next, len(subs) == 1
}

// remove drops a subscriber and reports whether the table has none left.
func (f *fanout) remove(table string, id uint64) (last bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs, ok := f.tables[table]
	if !ok {
		return false
	}
	if _, ok := subs[id]; !ok {
		return false
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(f.tables, table)
		return true
	}
	return false
}

func (f *fanout) dispatch(ev ChangeEvent) {
	f.mu.RLock()
	matched := make([]Handler, 0, len(f.tables[ev.Table]))
	for _, s := range f.tables[ev.Table] {
		if s.filter.Match(ev) {
			matched = append(matched, s.h)
		}
	}
	f.mu.RUnlock()
	for _, h := range matched {
		h(ev)
	}
}

func (f *fanout) count(table string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tables[table])
}

// MemoryFeed is a single-process feed. Publish delivers synchronously.
type MemoryFeed struct {
	subs *fanout
}

// NewMemoryFeed creates an in-memory feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: newFanout()}
}

// Subscribe registers h for table rows matching filter.
func (m *MemoryFeed) Subscribe(_ context.Context, table string, filter Filter, h Handler) (func(), error) {
	id, _ := m.subs.add(table, subscription{filter: filter, h: h})
	var once sync.Once
	return func() { once.Do(func() { m.subs.remove(table, id) }) }, nil
}

// Publish delivers ev to matching subscribers.
func (m *MemoryFeed) Publish(_ context.Context, ev ChangeEvent) error {
	m.subs.dispatch(ev)
	return nil
}

// Subscribers returns the live subscription count for table.
func (m *MemoryFeed) Subscribers(table string) int {
	return m.subs.count(table)
}
