package stream

import (
	"sync/atomic"

	"github.com/zurustar/midikit/pkg/midi"
)

// DefaultQueueSize is the capacity used when a non-positive size is requested.
const DefaultQueueSize = 1024

// Queue is a bounded ring of messages for exactly one producer goroutine and
// one consumer goroutine. Pushing never blocks: when the ring is full the new
// message is refused and the caller decides what to report.
//
// More than one concurrent producer, or more than one concurrent consumer,
// must be serialized by the caller.
type Queue struct {
	buf  []midi.Message
	head atomic.Uint64 // next slot to pop, owned by the consumer
	tail atomic.Uint64 // next slot to push, owned by the producer
}

// NewQueue creates a queue holding at most size messages.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{buf: make([]midi.Message, size)}
}

// Cap returns the capacity.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// TryPush appends m. It returns false, leaving the queue unchanged, when full.
func (q *Queue) TryPush(m midi.Message) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() == uint64(len(q.buf)) {
		return false
	}
	q.buf[tail%uint64(len(q.buf))] = m
	q.tail.Store(tail + 1)
	return true
}

// TryPop removes the oldest message.
func (q *Queue) TryPop() (midi.Message, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return midi.Message{}, false
	}
	slot := head % uint64(len(q.buf))
	m := q.buf[slot]
	q.buf[slot] = midi.Message{}
	q.head.Store(head + 1)
	return m, true
}
