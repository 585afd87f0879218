package services

import "sync"

// Bus is the in-process update notification fan-out, keyed by room id. It
// carries no payload: a wake-up only means "state probably changed, re-fetch
// through the projector". It is process-local and advisory; correctness never
// depends on it, so a multi-instance deployment degrades to polling latency,
// not to inconsistency.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func()
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func())}
}

// Subscribe registers cb for a room and returns an unsubscribe func. The
// unsubscribe is safe to call more than once and safe to call from inside
// the callback itself.
func (b *Bus) Subscribe(roomID string, cb func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[int]func())
	}
	b.subs[roomID][id] = cb

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if m, ok := b.subs[roomID]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(b.subs, roomID)
			}
		}
	}
}

// Publish wakes every current subscriber of a room. Callbacks run
// synchronously over a snapshot, so a subscriber unsubscribing itself
// mid-notification is fine.
func (b *Bus) Publish(roomID string) {
	b.mu.Lock()
	snapshot := make([]func(), 0, len(b.subs[roomID]))
	for _, cb := range b.subs[roomID] {
		snapshot = append(snapshot, cb)
	}
	b.mu.Unlock()

	for _, cb := range snapshot {
		cb()
	}
}

// SubscriberCount reports how many subscribers a room currently has.
func (b *Bus) SubscriberCount(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[roomID])
}
