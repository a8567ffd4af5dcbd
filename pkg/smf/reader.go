package smf

import (
	"encoding/binary"
	"fmt"

	"github.com/zurustar/midikit/pkg/logger"
	"github.com/zurustar/midikit/pkg/midi"
	"github.com/zurustar/midikit/pkg/vlq"
)

// ParseResult is how far the Reader could verify a buffer. Levels are
// ordered: a higher level means everything below it was verified too.
type ParseResult int

const (
	// Invalid means no usable header chunk was found.
	Invalid ParseResult = iota
	// Incomplete means a chunk or event ran past its bounds or could not be decoded.
	Incomplete
	// Complete means every byte decoded but SMF conventions were broken.
	Complete
	// Validated means the buffer is a conformant Standard MIDI File.
	Validated
)

func (r ParseResult) String() string {
	switch r {
	case Invalid:
		return "invalid"
	case Incomplete:
		return "incomplete"
	case Complete:
		return "complete"
	case Validated:
		return "validated"
	}
	return fmt.Sprintf("ParseResult(%d)", int(r))
}

const (
	headerID        = "MThd"
	trackID         = "MTrk"
	chunkHeaderSize = 8
	headerDataSize  = 6
	maxSMFVLQLen    = 4 // bytes of a VLQ holding vlq.MaxSMF
)

// ParseError explains why a parse ended below Validated.
type ParseError struct {
	Result ParseResult
	Offset int // byte offset in the buffer
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("smf: %s at offset %d: %s", e.Result, e.Offset, e.Reason)
}

// Reader parses complete in-memory SMF buffers. A Reader keeps only its tick
// mode and the outcome of the last Parse; it is not safe for concurrent use.
type Reader struct {
	absoluteTicks bool
	reporter      midi.Reporter

	format   int
	declared int
	division Division
	tracks   []Track
	result   ParseResult
	err      *ParseError
}

// NewReader creates a reader. With absoluteTicks set, TrackEvent.Tick counts
// from the start of its track; otherwise it is the delta from the previous event.
func NewReader(absoluteTicks bool) *Reader {
	return &Reader{absoluteTicks: absoluteTicks}
}

// SetReporter makes Parse report a result below Validated as a
// midi.WarnNonConformant warning. nil turns reporting off.
func (r *Reader) SetReporter(rep midi.Reporter) { r.reporter = rep }

// AbsoluteTicks reports the tick mode chosen at construction.
func (r *Reader) AbsoluteTicks() bool { return r.absoluteTicks }

// Tracks returns the tracks of the last Parse.
func (r *Reader) Tracks() []Track { return r.tracks }

// Format returns the header format (0, 1 or 2).
func (r *Reader) Format() int { return r.format }

// DeclaredTracks returns the track count announced by the header.
func (r *Reader) DeclaredTracks() int { return r.declared }

// Division returns the raw timing division.
func (r *Reader) Division() Division { return r.division }

// TicksPerBeat returns ticks per quarter note, or 0 for SMPTE timing.
func (r *Reader) TicksPerBeat() int { return r.division.TicksPerQuarter() }

// Result returns the result of the last Parse.
func (r *Reader) Result() ParseResult { return r.result }

// Err returns why the last Parse ended below Validated, or nil.
func (r *Reader) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Parse decodes data. It never panics and never returns an error: malformed
// input lowers the result instead. Events decoded before a failure are kept.
func (r *Reader) Parse(data []byte) ParseResult {
	r.format = 0
	r.declared = 0
	r.division = 0
	r.tracks = nil
	r.err = nil
	r.result = Validated

	pos, ok := r.parseHeader(data)
	if !ok {
		return r.result
	}

	skipped := false
	for len(r.tracks) < r.declared {
		if pos == len(data) {
			// the header miscounts when other chunks took the place of tracks
			level := Incomplete
			if skipped {
				level = Complete
			}
			r.downgrade(level, pos, "%d of %d tracks present", len(r.tracks), r.declared)
			break
		}
		if len(data)-pos < chunkHeaderSize {
			r.downgrade(Incomplete, pos, "truncated chunk header")
			break
		}
		id := string(data[pos : pos+4])
		length := int64(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + chunkHeaderSize
		end := int64(start) + length
		truncated := end > int64(len(data))
		if truncated {
			r.downgrade(Incomplete, pos, "%s chunk declares %d bytes, %d remain", id, length, len(data)-start)
			end = int64(len(data))
		}

		if id != trackID {
			// unknown chunk types are skipped
			logger.GetLogger().Debug("smf: skipping chunk", "id", id, "length", length)
			skipped = true
			if truncated {
				break
			}
			pos = int(end)
			continue
		}

		r.tracks = append(r.tracks, r.parseTrack(data[start:int(end)], start, len(r.tracks)))
		pos = int(end)
		if truncated {
			break
		}
	}

	if r.result > Incomplete {
		r.checkTail(data, pos)
	}

	if r.err != nil {
		logger.GetLogger().Debug("smf: parse result", "result", r.result.String(), "reason", r.err.Reason, "offset", r.err.Offset)
		if r.reporter != nil {
			r.reporter.Warn(midi.Warning{Kind: midi.WarnNonConformant, Message: r.err.Error(), Count: 1})
		}
	}
	return r.result
}

// checkTail looks at the bytes after the declared tracks. Unknown chunks are
// skipped; extra MTrk chunks and bytes that do not form a chunk lower the
// result to Complete.
func (r *Reader) checkTail(data []byte, pos int) {
	extra := 0
	for pos < len(data) {
		if len(data)-pos < chunkHeaderSize || !isChunkID(data[pos:pos+4]) {
			r.downgrade(Complete, pos, "%d trailing bytes after the last chunk", len(data)-pos)
			return
		}
		id := string(data[pos : pos+4])
		length := int64(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
		end := int64(pos+chunkHeaderSize) + length
		if end > int64(len(data)) {
			r.downgrade(Complete, pos, "trailing %s chunk declares %d bytes, %d remain", id, length, len(data)-pos-chunkHeaderSize)
			return
		}
		if id == trackID {
			extra++
		} else {
			logger.GetLogger().Debug("smf: skipping chunk", "id", id, "length", length)
		}
		pos = int(end)
	}
	if extra > 0 {
		r.downgrade(Complete, len(data), "%d %s chunks beyond the %d declared", extra, trackID, r.declared)
	}
}

// isChunkID reports whether id is four printable ASCII characters.
func isChunkID(id []byte) bool {
	for _, c := range id {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

func (r *Reader) parseHeader(data []byte) (int, bool) {
	if len(data) < chunkHeaderSize || string(data[:4]) != headerID {
		r.downgrade(Invalid, 0, "missing %s chunk", headerID)
		return 0, false
	}
	length := int64(binary.BigEndian.Uint32(data[4:8]))
	if length < headerDataSize {
		r.downgrade(Invalid, 4, "header length %d, want %d", length, headerDataSize)
		return 0, false
	}
	if len(data) < chunkHeaderSize+headerDataSize {
		r.downgrade(Invalid, chunkHeaderSize, "truncated header fields")
		return 0, false
	}

	format := int(binary.BigEndian.Uint16(data[8:10]))
	if format > 2 {
		r.downgrade(Invalid, 8, "unknown format %d", format)
		return 0, false
	}
	r.format = format
	r.declared = int(binary.BigEndian.Uint16(data[10:12]))
	r.division = Division(binary.BigEndian.Uint16(data[12:14]))

	if !r.division.Valid() {
		r.downgrade(Complete, 12, "unusable division %#04x", uint16(r.division))
	}
	if format == 0 && r.declared != 1 {
		r.downgrade(Complete, 10, "format 0 with %d tracks", r.declared)
	}

	end := chunkHeaderSize + length
	if length > headerDataSize {
		r.downgrade(Complete, 4, "header length %d, want %d", length, headerDataSize)
	}
	if end > int64(len(data)) {
		r.downgrade(Incomplete, 4, "header chunk runs past the end of the buffer")
		return len(data), true
	}
	return int(end), true
}

// parseTrack decodes the body of one MTrk chunk. base is the offset of body
// in the whole buffer and is only used for diagnostics.
func (r *Reader) parseTrack(body []byte, base, index int) Track {
	var (
		t         Track
		tick      int64
		running   byte
		cancelled bool // a meta or SysEx event followed the running status
		pos       int
	)

	for pos < len(body) {
		delta, n, err := vlq.Decode(body, pos)
		if err != nil {
			r.downgrade(Incomplete, base+pos, "track %d: delta-time: %v", index, err)
			break
		}
		if n > maxSMFVLQLen {
			r.downgrade(Complete, base+pos, "track %d: %d-byte delta-time", index, n)
		}
		pos += n
		tick += int64(delta)
		t.EndTick = tick
		if pos >= len(body) {
			r.downgrade(Incomplete, base+pos, "track %d: delta-time without event", index)
			break
		}

		msg, next, ok := r.parseEvent(body, pos, base, index, &running, &cancelled)
		if !ok {
			break
		}
		pos = next

		if msg.IsEndOfTrack() {
			if len(msg.Bytes) != 3 {
				r.downgrade(Complete, base+pos, "track %d: End-Of-Track carries data", index)
			}
			if pos != len(body) {
				r.downgrade(Complete, base+pos, "track %d: %d bytes after End-Of-Track", index, len(body)-pos)
			}
			return t
		}

		ev := TrackEvent{Tick: int64(delta), Track: index, Message: msg}
		if r.absoluteTicks {
			ev.Tick = tick
		}
		t.Events = append(t.Events, ev)
	}

	r.downgrade(Complete, base+pos, "track %d: missing End-Of-Track", index)
	return t
}

// parseEvent decodes the event at body[pos]. It returns the message and the
// offset after it; ok is false when the event cannot be decoded.
func (r *Reader) parseEvent(body []byte, pos, base, index int, running *byte, cancelled *bool) (midi.Message, int, bool) {
	status := body[pos]

	switch {
	case status == byte(midi.TypeMeta):
		if pos+2 > len(body) {
			r.downgrade(Incomplete, base+pos, "track %d: truncated meta event", index)
			return midi.Message{}, pos, false
		}
		length, n, err := vlq.Decode(body, pos+2)
		if err != nil {
			r.downgrade(Incomplete, base+pos, "track %d: meta length: %v", index, err)
			return midi.Message{}, pos, false
		}
		if n > maxSMFVLQLen {
			r.downgrade(Complete, base+pos, "track %d: %d-byte meta length", index, n)
		}
		end := int64(pos+2+n) + int64(length)
		if end > int64(len(body)) {
			r.downgrade(Incomplete, base+pos, "track %d: meta event runs past the chunk", index)
			return midi.Message{}, pos, false
		}
		*cancelled = true
		return midi.New(body[pos:int(end)]...), int(end), true

	case status == byte(midi.TypeSysEx) || status == byte(midi.TypeEndOfExclusive):
		length, n, err := vlq.Decode(body, pos+1)
		if err != nil {
			r.downgrade(Incomplete, base+pos, "track %d: SysEx length: %v", index, err)
			return midi.Message{}, pos, false
		}
		if n > maxSMFVLQLen {
			r.downgrade(Complete, base+pos, "track %d: %d-byte SysEx length", index, n)
		}
		start := pos + 1 + n
		end := int64(start) + int64(length)
		if end > int64(len(body)) {
			r.downgrade(Incomplete, base+pos, "track %d: SysEx runs past the chunk", index)
			return midi.Message{}, pos, false
		}
		b := make([]byte, 0, 1+int(length))
		b = append(b, status)
		b = append(b, body[start:int(end)]...)
		*cancelled = true
		return midi.Message{Bytes: b}, int(end), true

	case status >= byte(midi.TypeSysEx):
		r.downgrade(Incomplete, base+pos, "track %d: status %#02x is not allowed in a file", index, status)
		return midi.Message{}, pos, false

	case status >= 0x80:
		*running = status
		*cancelled = false
		pos++

	default:
		if *running == 0 {
			r.downgrade(Incomplete, base+pos, "track %d: data byte without running status", index)
			return midi.Message{}, pos, false
		}
		if *cancelled {
			r.downgrade(Complete, base+pos, "track %d: running status used after a meta or SysEx event", index)
		}
		status = *running
	}

	need := midi.DataLen(status)
	if pos+need > len(body) {
		r.downgrade(Incomplete, base+pos, "track %d: truncated channel message", index)
		return midi.Message{}, pos, false
	}
	b := make([]byte, 0, 1+need)
	b = append(b, status)
	for i := 0; i < need; i++ {
		d := body[pos+i]
		if d >= 0x80 {
			r.downgrade(Incomplete, base+pos+i, "track %d: status byte %#02x inside a channel message", index, d)
			return midi.Message{}, pos, false
		}
		b = append(b, d)
	}
	return midi.Message{Bytes: b}, pos + need, true
}

func (r *Reader) downgrade(level ParseResult, offset int, format string, args ...any) {
	if level >= r.result {
		return
	}
	r.result = level
	r.err = &ParseError{Result: level, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}
