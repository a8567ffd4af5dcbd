// Package smf reads and writes Standard MIDI Files held in memory.
//
// The Reader reports how far a buffer could be trusted as a ParseResult
// instead of an error; the Writer serializes tracks of delta-timed events.
package smf

import "github.com/zurustar/midikit/pkg/midi"

// MaxTracks is the largest number of tracks a file can address.
const MaxTracks = 65536

// TrackEvent is one timed message of a track.
//
// Tick is a delta from the previous event of the same track when passed to
// the Writer. The Reader returns deltas too, unless it was created with
// absolute ticks, in which case Tick counts from the start of the track.
type TrackEvent struct {
	Tick    int64
	Track   int
	Message midi.Message
}

// Track is an ordered sequence of events, oldest first.
type Track struct {
	Events []TrackEvent
	// EndTick is the absolute tick of the End-Of-Track event, or of the last
	// decoded event when the track has none.
	EndTick int64
}

// Len returns the number of events.
func (t *Track) Len() int {
	return len(t.Events)
}
