// Package midi defines the MIDI message model shared by the stream decoder
// and the Standard MIDI File reader and writer.
//
// A Message is a status byte followed by its data bytes, or a complete SysEx
// or meta-event run, plus a timestamp in seconds for live input. File events
// carry their time as ticks in smf.TrackEvent instead.
package midi

import (
	"bytes"
	"fmt"
)

// MessageType is the status of a message with the channel nibble removed.
// Channel voice types are the top nibble; system types are the full byte.
type MessageType uint8

const (
	TypeUnknown MessageType = 0x00

	TypeNoteOff       MessageType = 0x80
	TypeNoteOn        MessageType = 0x90
	TypePolyPressure  MessageType = 0xA0
	TypeControlChange MessageType = 0xB0
	TypeProgramChange MessageType = 0xC0
	TypeAftertouch    MessageType = 0xD0
	TypePitchBend     MessageType = 0xE0

	TypeSysEx          MessageType = 0xF0
	TypeTimeCode       MessageType = 0xF1
	TypeSongPosition   MessageType = 0xF2
	TypeSongSelect     MessageType = 0xF3
	TypeTuneRequest    MessageType = 0xF6
	TypeEndOfExclusive MessageType = 0xF7
	TypeClock          MessageType = 0xF8
	TypeTick           MessageType = 0xF9
	TypeStart          MessageType = 0xFA
	TypeContinue       MessageType = 0xFB
	TypeStop           MessageType = 0xFC
	TypeActiveSensing  MessageType = 0xFE
	// TypeMeta is 0xFF. On the wire it is System Reset; in a file it marks a meta event.
	TypeMeta MessageType = 0xFF
)

var typeNames = map[MessageType]string{
	TypeNoteOff:        "NoteOff",
	TypeNoteOn:         "NoteOn",
	TypePolyPressure:   "PolyPressure",
	TypeControlChange:  "ControlChange",
	TypeProgramChange:  "ProgramChange",
	TypeAftertouch:     "Aftertouch",
	TypePitchBend:      "PitchBend",
	TypeSysEx:          "SysEx",
	TypeTimeCode:       "TimeCode",
	TypeSongPosition:   "SongPosition",
	TypeSongSelect:     "SongSelect",
	TypeTuneRequest:    "TuneRequest",
	TypeEndOfExclusive: "EndOfExclusive",
	TypeClock:          "Clock",
	TypeTick:           "Tick",
	TypeStart:          "Start",
	TypeContinue:       "Continue",
	TypeStop:           "Stop",
	TypeActiveSensing:  "ActiveSensing",
	TypeMeta:           "Meta",
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%#02x)", uint8(t))
}

// IsChannelVoice reports whether t carries a channel in its low nibble.
func (t MessageType) IsChannelVoice() bool {
	return t >= TypeNoteOff && t < TypeSysEx
}

// IsRealtime reports whether t is a single-byte system realtime message.
func (t MessageType) IsRealtime() bool {
	return t >= TypeClock
}

// DataLen returns the fixed number of data bytes that follow status. It returns
// -1 for SysEx and for bytes that are not status bytes.
func DataLen(status byte) int {
	switch {
	case status < 0x80:
		return -1
	case status < 0xF0:
		switch MessageType(status & 0xF0) {
		case TypeProgramChange, TypeAftertouch:
			return 1
		}
		return 2
	}
	switch MessageType(status) {
	case TypeSysEx:
		return -1
	case TypeTimeCode, TypeSongSelect:
		return 1
	case TypeSongPosition:
		return 2
	}
	return 0
}

// Message is one MIDI message. An empty Bytes means "no message".
type Message struct {
	Bytes     []byte
	Timestamp float64 // seconds since stream start; zero for file events
}

// New creates a message holding a copy of b.
func New(b ...byte) Message {
	return Message{Bytes: append([]byte(nil), b...)}
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	return Message{Bytes: append([]byte(nil), m.Bytes...), Timestamp: m.Timestamp}
}

// Equal compares the bytes of m and o. Timestamps are ignored.
func (m Message) Equal(o Message) bool {
	return bytes.Equal(m.Bytes, o.Bytes)
}

// IsEmpty reports whether m holds no message.
func (m Message) IsEmpty() bool {
	return len(m.Bytes) == 0
}

// Status returns the first byte, or 0 for an empty message.
func (m Message) Status() byte {
	if len(m.Bytes) == 0 {
		return 0
	}
	return m.Bytes[0]
}

// Type returns the message type: the top nibble of channel voice statuses, the
// full byte of system statuses, TypeUnknown for empty or data-led messages.
func (m Message) Type() MessageType {
	s := m.Status()
	switch {
	case s < 0x80:
		return TypeUnknown
	case s < 0xF0:
		return MessageType(s & 0xF0)
	}
	return MessageType(s)
}

// Channel returns the 1-based channel, or 0 for messages without a channel.
func (m Message) Channel() int {
	if !m.Type().IsChannelVoice() {
		return 0
	}
	return int(m.Bytes[0]&0x0F) + 1
}

// UsesChannel reports whether m is a channel message on channel n (1..16).
func (m Message) UsesChannel(n int) (bool, error) {
	if n < 1 || n > 16 {
		return false, NewOutOfRangeError("UsesChannel", "channel", n, 1, 16)
	}
	return m.Channel() == n, nil
}

// data returns the i-th data byte, or 0 when absent.
func (m Message) data(i int) uint8 {
	if i+1 >= len(m.Bytes) {
		return 0
	}
	return m.Bytes[i+1]
}

// Note returns the key of note and poly-pressure messages.
func (m Message) Note() uint8 {
	switch m.Type() {
	case TypeNoteOn, TypeNoteOff, TypePolyPressure:
		return m.data(0)
	}
	return 0
}

// Velocity returns the velocity of note messages.
func (m Message) Velocity() uint8 {
	switch m.Type() {
	case TypeNoteOn, TypeNoteOff:
		return m.data(1)
	}
	return 0
}

// IsNoteOn reports a note-on with non-zero velocity.
func (m Message) IsNoteOn() bool {
	return m.Type() == TypeNoteOn && len(m.Bytes) >= 3 && m.Bytes[2] > 0
}

// IsNoteOff reports a note-off, including note-on with zero velocity.
func (m Message) IsNoteOff() bool {
	switch m.Type() {
	case TypeNoteOff:
		return len(m.Bytes) >= 3
	case TypeNoteOn:
		return len(m.Bytes) >= 3 && m.Bytes[2] == 0
	}
	return false
}

// Controller returns the controller number and value of a control change.
func (m Message) Controller() (number, value uint8) {
	if m.Type() != TypeControlChange {
		return 0, 0
	}
	return m.data(0), m.data(1)
}

// Program returns the program of a program change.
func (m Message) Program() uint8 {
	if m.Type() != TypeProgramChange {
		return 0
	}
	return m.data(0)
}

// PitchBendValue returns the 14-bit pitch wheel position (center 8192).
func (m Message) PitchBendValue() uint16 {
	if m.Type() != TypePitchBend {
		return 0
	}
	return uint16(m.data(0)) | uint16(m.data(1))<<7
}

// IsSysEx reports whether m starts a system exclusive message.
func (m Message) IsSysEx() bool {
	return m.Status() == byte(TypeSysEx)
}
