// Package port connects the stream decoder to MIDI backends.
//
// A backend delivers raw byte fragments to a stream.Decoder and writes
// messages out. Device discovery and driver management stay with the caller.
package port

import (
	"errors"

	"github.com/zurustar/midikit/pkg/midi"
)

var (
	// ErrNotOpen is returned by Send on a closed port.
	ErrNotOpen = errors.New("port is not open")
	// ErrNoOutput is returned by Send on a port without an output side.
	ErrNoOutput = errors.New("port has no output")
)

// Port is a bidirectional MIDI endpoint.
type Port interface {
	Open() error
	Close() error
	Send(msg midi.Message) error
	// SetCallback switches the port to callback mode; nil returns it to queue mode.
	SetCallback(fn func(midi.Message))
	// Poll returns the next queued message in queue mode.
	Poll() (midi.Message, bool)
}

// checkOutgoing validates msg before it reaches a backend. Empty messages
// are reported as false with no error and must be skipped.
func checkOutgoing(op string, msg midi.Message) (bool, error) {
	if msg.IsEmpty() {
		return false, nil
	}
	if msg.Bytes[0] < 0x80 {
		return false, midi.NewInvalidArgumentError(op, "message % X does not start with a status byte", msg.Bytes)
	}
	return true, nil
}
