package events

import "sync"

// RingBuffer is a bounded, thread-safe FIFO of change events.
// When full, the oldest event is dropped to make room.
type RingBuffer struct {
	mu       sync.Mutex
	events   []ChangeEvent
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int
	dropped  int64
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RingBuffer{
		events:   make([]ChangeEvent, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an event, dropping the oldest if necessary. Reports whether a
// drop happened.
func (b *RingBuffer) Enqueue(ev ChangeEvent) (dropped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.events[b.tail] = ChangeEvent{}
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}
	b.events[b.head] = ev
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// DequeueBatch removes up to n events, oldest first.
func (b *RingBuffer) DequeueBatch(n int) []ChangeEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	out := make([]ChangeEvent, n)
	for i := range n {
		out[i] = b.events[b.tail]
		b.events[b.tail] = ChangeEvent{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
