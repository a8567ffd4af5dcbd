package port

import (
	"sync"

	"github.com/zurustar/midikit/pkg/midi"
	"github.com/zurustar/midikit/pkg/stream"
)

// Loopback is an in-memory port: every message sent is decoded and
// delivered back to its own input.
type Loopback struct {
	mu      sync.Mutex
	open    bool
	decoder *stream.Decoder
}

// NewLoopback creates a closed loopback port.
func NewLoopback(cfg stream.Config) *Loopback {
	return &Loopback{decoder: stream.NewDecoder(cfg)}
}

func (l *Loopback) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = true
	return nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = false
	l.decoder.Reset()
	return nil
}

// Send feeds msg through the decoder. Sends are serialized so the decoder
// keeps a single producer.
func (l *Loopback) Send(msg midi.Message) error {
	ok, err := checkOutgoing("Send", msg)
	if !ok {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return ErrNotOpen
	}
	l.decoder.Feed(msg.Bytes)
	return nil
}

// SendRaw feeds an arbitrary byte fragment, as a driver would.
func (l *Loopback) SendRaw(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open {
		return ErrNotOpen
	}
	l.decoder.Feed(data)
	return nil
}

func (l *Loopback) SetCallback(fn func(midi.Message)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decoder.OnMessage(fn)
}

func (l *Loopback) Poll() (midi.Message, bool) {
	return l.decoder.Poll()
}

// Decoder returns the decoder behind the port.
func (l *Loopback) Decoder() *stream.Decoder {
	return l.decoder
}
