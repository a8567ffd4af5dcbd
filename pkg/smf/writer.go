package smf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zurustar/midikit/pkg/midi"
	"github.com/zurustar/midikit/pkg/vlq"
)

var endOfTrack = []byte{0xFF, 0x2F, 0x00}

// Writer collects delta-timed events per track and serializes them as a
// Standard MIDI File. Argument errors reject the call and leave the Writer
// unchanged.
type Writer struct {
	division Division
	tracks   []Track
}

// NewWriter creates a writer with the given ticks per quarter note.
func NewWriter(ticksPerBeat int) *Writer {
	if ticksPerBeat <= 0 {
		ticksPerBeat = DefaultTicksPerQuarter
	}
	return &Writer{division: MetricDivision(ticksPerBeat)}
}

// SetDivision replaces the timing division, for example with an SMPTE one.
func (w *Writer) SetDivision(d Division) error {
	if !d.Valid() {
		return midi.NewInvalidArgumentError("SetDivision", "division %#04x is not valid", uint16(d))
	}
	w.division = d
	return nil
}

// Division returns the timing division written to the header.
func (w *Writer) Division() Division { return w.division }

// NumTracks returns the number of tracks, including empty ones created by AddEvent.
func (w *Writer) NumTracks() int { return len(w.tracks) }

// Track returns a copy of the events of track i.
func (w *Writer) Track(i int) []TrackEvent {
	if i < 0 || i >= len(w.tracks) {
		return nil
	}
	return append([]TrackEvent(nil), w.tracks[i].Events...)
}

func checkEvent(op string, tick int64, msg midi.Message) error {
	if tick < 0 || tick > vlq.MaxSMF {
		return midi.NewOutOfRangeError(op, "delta tick", int(tick), 0, vlq.MaxSMF)
	}
	if len(msg.Bytes) > 0 && msg.Bytes[0] < 0x80 {
		return midi.NewInvalidArgumentError(op, "message % X does not start with a status byte", msg.Bytes)
	}
	if msg.IsMeta() {
		if _, ok := msg.MetaData(); !ok {
			return midi.NewInvalidArgumentError(op, "message % X is not a complete meta event", msg.Bytes)
		}
	}
	return nil
}

// folded reports whether encodeTrack leaves msg out when another event
// follows it, adding its delta to the next one.
func folded(msg midi.Message) bool {
	return len(msg.Bytes) == 0 || msg.IsEndOfTrack()
}

// addCarry returns the delta that will be written for an event of tick
// placed after events whose deltas were folded into carry.
func addCarry(op string, carry, tick int64) (int64, error) {
	sum := carry + tick
	if sum > vlq.MaxSMF {
		return 0, midi.NewOutOfRangeError(op, "delta tick after suppressed events", int(sum), 0, vlq.MaxSMF)
	}
	return sum, nil
}

// trailingCarry sums the deltas of the folded events at the end of events.
func trailingCarry(events []TrackEvent) int64 {
	var carry int64
	for i := len(events) - 1; i >= 0 && folded(events[i].Message); i-- {
		carry += events[i].Tick
	}
	return carry
}

// AddEvent appends msg to track, delta ticks after the previous event of that
// track. Tracks up to index are created on demand. index must be in [0, 65535].
func (w *Writer) AddEvent(track int, tick int64, msg midi.Message) error {
	if track < 0 || track >= MaxTracks {
		return midi.NewOutOfRangeError("AddEvent", "track index", track, 0, MaxTracks-1)
	}
	if err := checkEvent("AddEvent", tick, msg); err != nil {
		return err
	}
	if track < len(w.tracks) {
		if _, err := addCarry("AddEvent", trailingCarry(w.tracks[track].Events), tick); err != nil {
			return err
		}
	}
	for len(w.tracks) <= track {
		w.tracks = append(w.tracks, Track{})
	}
	t := &w.tracks[track]
	t.Events = append(t.Events, TrackEvent{Tick: tick, Track: track, Message: msg.Clone()})
	t.EndTick += tick
	return nil
}

// AddTrack appends a new track holding events (delta ticks) and returns its index.
func (w *Writer) AddTrack(events []TrackEvent) (int, error) {
	index := len(w.tracks)
	if index >= MaxTracks {
		return -1, midi.NewOutOfRangeError("AddTrack", "track index", index, 0, MaxTracks-1)
	}
	var carry int64
	for _, ev := range events {
		if err := checkEvent("AddTrack", ev.Tick, ev.Message); err != nil {
			return -1, err
		}
		sum, err := addCarry("AddTrack", carry, ev.Tick)
		if err != nil {
			return -1, err
		}
		carry = 0
		if folded(ev.Message) {
			carry = sum
		}
	}
	t := Track{Events: make([]TrackEvent, 0, len(events))}
	for _, ev := range events {
		t.Events = append(t.Events, TrackEvent{Tick: ev.Tick, Track: index, Message: ev.Message.Clone()})
		t.EndTick += ev.Tick
	}
	w.tracks = append(w.tracks, t)
	return index, nil
}

// encodeTrack builds the body of an MTrk chunk. Empty messages and
// End-Of-Track events are left out and their deltas move to the next event.
// An exact End-Of-Track stored last is written in place with its delta;
// otherwise a canonical End-Of-Track with delta 0 closes the body.
func encodeTrack(t Track) []byte {
	var buf []byte
	var carry int64
	for i, ev := range t.Events {
		b := ev.Message.Bytes
		last := i == len(t.Events)-1
		if last && bytes.Equal(b, endOfTrack) {
			buf = vlq.Append(buf, uint32(carry+ev.Tick))
			return append(buf, endOfTrack...)
		}
		if folded(ev.Message) {
			carry += ev.Tick
			continue
		}
		buf = vlq.Append(buf, uint32(carry+ev.Tick))
		carry = 0
		switch midi.MessageType(b[0]) {
		case midi.TypeSysEx, midi.TypeEndOfExclusive:
			buf = append(buf, b[0])
			buf = vlq.Append(buf, uint32(len(b)-1))
			buf = append(buf, b[1:]...)
		default:
			buf = append(buf, b...)
		}
	}
	buf = append(buf, 0x00)
	return append(buf, endOfTrack...)
}

// Bytes serializes the file.
func (w *Writer) Bytes() []byte {
	var out bytes.Buffer

	format := uint16(1)
	if len(w.tracks) == 1 {
		format = 0
	}
	out.WriteString(headerID)
	binary.Write(&out, binary.BigEndian, uint32(headerDataSize))
	binary.Write(&out, binary.BigEndian, format)
	binary.Write(&out, binary.BigEndian, uint16(len(w.tracks)))
	binary.Write(&out, binary.BigEndian, uint16(w.division))

	for _, t := range w.tracks {
		body := encodeTrack(t)
		out.WriteString(trackID)
		binary.Write(&out, binary.BigEndian, uint32(len(body)))
		out.Write(body)
	}
	return out.Bytes()
}

// Write serializes the file to out.
func (w *Writer) Write(out io.Writer) (int64, error) {
	n, err := out.Write(w.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("failed to write MIDI file: %w", err)
	}
	return int64(n), nil
}
