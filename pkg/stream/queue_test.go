package stream

import (
	"sync"
	"testing"

	"github.com/zurustar/midikit/pkg/midi"
)

func TestNewQueue(t *testing.T) {
	q := NewQueue(0)
	if q.Cap() != DefaultQueueSize {
		t.Errorf("Cap() = %d, want %d", q.Cap(), DefaultQueueSize)
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got length %d", q.Len())
	}
}

func TestQueuePushPop(t *testing.T) {
	q := NewQueue(2)

	if !q.TryPush(midi.NoteOn(0, 1, 1)) || !q.TryPush(midi.NoteOn(0, 2, 1)) {
		t.Fatal("pushes within capacity should succeed")
	}
	if q.TryPush(midi.NoteOn(0, 3, 1)) {
		t.Error("push into a full queue should fail")
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}

	m, ok := q.TryPop()
	if !ok || m.Note() != 1 {
		t.Errorf("TryPop() = (%v, %v), want note 1", m, ok)
	}
	if !q.TryPush(midi.NoteOn(0, 4, 1)) {
		t.Error("push after pop should succeed (wrap around)")
	}

	for _, want := range []uint8{2, 4} {
		m, ok := q.TryPop()
		if !ok || m.Note() != want {
			t.Errorf("TryPop() = (%v, %v), want note %d", m, ok, want)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Error("TryPop on empty queue should fail")
	}
}

func TestQueueSingleProducerSingleConsumer(t *testing.T) {
	const total = 10000
	q := NewQueue(16)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if q.TryPush(midi.Message{Bytes: []byte{0xB0, byte(i % 128), byte(i / 128 % 128)}}) {
				i++
			}
		}
	}()

	for i := 0; i < total; {
		m, ok := q.TryPop()
		if !ok {
			continue
		}
		n, v := m.Controller()
		if int(n) != i%128 || int(v) != i/128%128 {
			t.Fatalf("message %d out of order: %v", i, m)
		}
		i++
	}
	wg.Wait()
}
