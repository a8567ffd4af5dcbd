package stream

import (
	"bytes"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zurustar/midikit/pkg/midi"
)

// collect decodes fragments in callback mode and returns the message bytes.
func collect(d *Decoder, fragments ...[]byte) [][]byte {
	var got [][]byte
	d.OnMessage(func(m midi.Message) {
		got = append(got, m.Bytes)
	})
	for _, f := range fragments {
		d.FeedAt(f, 0)
	}
	return got
}

func newTestDecoder(reporter midi.Reporter) *Decoder {
	return NewDecoder(Config{Reporter: reporter})
}

func assertMessages(t *testing.T, got [][]byte, want ...[]byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d messages % X, want %d % X", len(got), got, len(want), want)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("message %d = % X, want % X", i, got[i], want[i])
		}
	}
}

func TestDecoderRunningStatusAcrossFragments(t *testing.T) {
	stream := []byte{0x90, 60, 100, 61, 101, 62, 102}
	want := [][]byte{{0x90, 60, 100}, {0x90, 61, 101}, {0x90, 62, 102}}

	splits := [][2]int{{1, 2}, {3, 5}, {2, 6}, {4, 5}, {1, 6}, {0, 7}}
	for _, s := range splits {
		d := newTestDecoder(midi.NewCountingReporter())
		got := collect(d, stream[:s[0]], stream[s[0]:s[1]], stream[s[1]:])
		assertMessages(t, got, want...)
	}
}

func TestDecoderSysExAcrossFragments(t *testing.T) {
	d := newTestDecoder(midi.NewCountingReporter())
	got := collect(d, []byte{0xF0, 0x01, 0x02}, []byte{0x03, 0xF7})
	assertMessages(t, got, []byte{0xF0, 0x01, 0x02, 0x03, 0xF7})
}

func TestDecoderMessageTypes(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  [][]byte
	}{
		{
			name:  "program change uses one data byte",
			input: []byte{0xC3, 5, 6},
			want:  [][]byte{{0xC3, 5}, {0xC3, 6}},
		},
		{
			name:  "channel pressure running status",
			input: []byte{0xD0, 10, 20, 30},
			want:  [][]byte{{0xD0, 10}, {0xD0, 20}, {0xD0, 30}},
		},
		{
			name:  "new status replaces running status",
			input: []byte{0x90, 60, 100, 0x80, 60, 0, 61, 0},
			want:  [][]byte{{0x90, 60, 100}, {0x80, 60, 0}, {0x80, 61, 0}},
		},
		{
			name:  "realtime inside a channel message",
			input: []byte{0x90, 60, 0xF8, 100},
			want:  [][]byte{{0xF8}, {0x90, 60, 100}},
		},
		{
			name:  "realtime keeps running status",
			input: []byte{0xB0, 7, 100, 0xFA, 7, 90},
			want:  [][]byte{{0xB0, 7, 100}, {0xFA}, {0xB0, 7, 90}},
		},
		{
			name:  "realtime inside sysex",
			input: []byte{0xF0, 0x41, 0xF8, 0x10, 0xF7},
			want:  [][]byte{{0xF8}, {0xF0, 0x41, 0x10, 0xF7}},
		},
		{
			name:  "song position has two data bytes",
			input: []byte{0xF2, 0x10, 0x20},
			want:  [][]byte{{0xF2, 0x10, 0x20}},
		},
		{
			name:  "song select and tune request",
			input: []byte{0xF3, 0x05, 0xF6},
			want:  [][]byte{{0xF3, 0x05}, {0xF6}},
		},
		{
			name:  "time code quarter frame",
			input: []byte{0xF1, 0x23},
			want:  [][]byte{{0xF1, 0x23}},
		},
		{
			name:  "system common cancels running status",
			input: []byte{0x90, 60, 100, 0xF6, 61, 101},
			want:  [][]byte{{0x90, 60, 100}, {0xF6}},
		},
		{
			name:  "sysex cancels running status",
			input: []byte{0x90, 60, 100, 0xF0, 0x01, 0xF7, 61, 101},
			want:  [][]byte{{0x90, 60, 100}, {0xF0, 0x01, 0xF7}},
		},
		{
			name:  "pitch bend",
			input: []byte{0xE1, 0x00, 0x40},
			want:  [][]byte{{0xE1, 0x00, 0x40}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(midi.NewCountingReporter())
			assertMessages(t, collect(d, tt.input), tt.want...)
		})
	}
}

func TestDecoderMalformedInput(t *testing.T) {
	t.Run("stray data without status", func(t *testing.T) {
		r := midi.NewCountingReporter()
		d := newTestDecoder(r)
		got := collect(d, []byte{0x10, 0x20, 0x90, 60, 100})
		assertMessages(t, got, []byte{0x90, 60, 100})
		if r.Count(midi.WarnStrayData) != 2 {
			t.Errorf("expected 2 stray data warnings, got %d", r.Count(midi.WarnStrayData))
		}
	})

	t.Run("status interrupts sysex", func(t *testing.T) {
		r := midi.NewCountingReporter()
		d := newTestDecoder(r)
		got := collect(d, []byte{0xF0, 0x01, 0x02, 0x90, 60, 100})
		assertMessages(t, got, []byte{0x90, 60, 100})
		if r.Count(midi.WarnSysExAborted) != 1 {
			t.Errorf("expected a SysEx aborted warning, got %v", r.Warnings())
		}
	})

	t.Run("status interrupts incomplete message", func(t *testing.T) {
		r := midi.NewCountingReporter()
		d := newTestDecoder(r)
		got := collect(d, []byte{0x90, 60, 0xB0, 1, 2})
		assertMessages(t, got, []byte{0xB0, 1, 2})
		if r.Count(midi.WarnStrayData) != 1 {
			t.Errorf("expected one discard warning, got %v", r.Warnings())
		}
	})

	t.Run("stray end of exclusive", func(t *testing.T) {
		r := midi.NewCountingReporter()
		d := newTestDecoder(r)
		got := collect(d, []byte{0xF7})
		assertMessages(t, got)
		if r.Count(midi.WarnStrayEndOfSysEx) != 1 {
			t.Errorf("expected a stray EOX warning, got %v", r.Warnings())
		}
	})

	t.Run("oversized sysex", func(t *testing.T) {
		r := midi.NewCountingReporter()
		d := NewDecoder(Config{Reporter: r, MaxSysEx: 4})
		got := collect(d, []byte{0xF0, 1, 2, 3, 4, 5, 0xF7, 0xC0, 1})
		assertMessages(t, got, []byte{0xC0, 1})
		if r.Count(midi.WarnSysExOverflow) != 1 {
			t.Errorf("expected an overflow warning, got %v", r.Warnings())
		}
	})
}

func TestDecoderIgnoreFlags(t *testing.T) {
	input := []byte{0xF0, 0x7E, 0xF7, 0xF8, 0xF1, 0x10, 0xFE, 0x90, 60, 100, 61, 101}

	tests := []struct {
		name  string
		flags IgnoreFlags
		want  [][]byte
	}{
		{"none", IgnoreNone, [][]byte{{0xF0, 0x7E, 0xF7}, {0xF8}, {0xF1, 0x10}, {0xFE}, {0x90, 60, 100}, {0x90, 61, 101}}},
		{"sysex", IgnoreSysEx, [][]byte{{0xF8}, {0xF1, 0x10}, {0xFE}, {0x90, 60, 100}, {0x90, 61, 101}}},
		{"time", IgnoreTime, [][]byte{{0xF0, 0x7E, 0xF7}, {0xFE}, {0x90, 60, 100}, {0x90, 61, 101}}},
		{"sense", IgnoreActiveSensing, [][]byte{{0xF0, 0x7E, 0xF7}, {0xF8}, {0xF1, 0x10}, {0x90, 60, 100}, {0x90, 61, 101}}},
		{"all", IgnoreAll, [][]byte{{0x90, 60, 100}, {0x90, 61, 101}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(midi.NewCountingReporter())
			d.SetIgnoreFlags(tt.flags)
			assertMessages(t, collect(d, input), tt.want...)
		})
	}
}

func TestDecoderReset(t *testing.T) {
	d := newTestDecoder(midi.NewCountingReporter())
	got := collect(d, []byte{0x90, 60})
	d.Reset()
	got = append(got, collect(d, []byte{61, 101})...)
	assertMessages(t, got)
}

func TestDecoderTimestamps(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	d := NewDecoder(Config{Reporter: midi.NewCountingReporter(), Now: func() time.Time { return now }})

	d.Feed([]byte{0x90, 60})
	now = base.Add(1500 * time.Millisecond)
	d.Feed([]byte{100})

	m, ok := d.Poll()
	if !ok {
		t.Fatal("expected a queued message")
	}
	if m.Timestamp != 1.5 {
		t.Errorf("Timestamp = %v, want 1.5 (time of the completing fragment)", m.Timestamp)
	}
}

func TestDecoderQueueBackpressure(t *testing.T) {
	r := midi.NewCountingReporter()
	d := NewDecoder(Config{Reporter: r, QueueSize: 3})

	for note := byte(0); note < 5; note++ {
		d.FeedAt([]byte{0x90, 60 + note, 100}, 0)
	}

	if d.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", d.Dropped())
	}
	if r.Count(midi.WarnQueueFull) != 2 {
		t.Errorf("expected 2 queue full warnings, got %d", r.Count(midi.WarnQueueFull))
	}
	warnings := r.Warnings()
	if warnings[len(warnings)-1].Count != 2 {
		t.Errorf("last warning count = %d, want 2", warnings[len(warnings)-1].Count)
	}

	for i := byte(0); i < 3; i++ {
		m, ok := d.Poll()
		if !ok {
			t.Fatalf("poll %d: queue unexpectedly empty", i)
		}
		if m.Note() != 60+i {
			t.Errorf("poll %d: note %d, want %d (oldest accepted first)", i, m.Note(), 60+i)
		}
	}
	if _, ok := d.Poll(); ok {
		t.Error("expected the queue to be drained")
	}
}

func TestDecoderCallbackBypassesQueue(t *testing.T) {
	d := newTestDecoder(midi.NewCountingReporter())
	var got []midi.Message
	d.OnMessage(func(m midi.Message) { got = append(got, m) })
	d.FeedAt([]byte{0xC0, 1}, 0)

	if len(got) != 1 || d.Queued() != 0 {
		t.Errorf("callback mode: got %d callbacks, %d queued", len(got), d.Queued())
	}
	if _, ok := d.Poll(); ok {
		t.Error("Poll should report nothing in callback mode")
	}

	d.OnMessage(nil)
	d.FeedAt([]byte{2}, 0)
	if d.Queued() != 1 {
		t.Errorf("queue mode: %d queued, want 1", d.Queued())
	}
}

func TestDecoderQueuedMessagesSurviveCallback(t *testing.T) {
	d := newTestDecoder(midi.NewCountingReporter())
	d.FeedAt([]byte{0xC0, 1}, 0)

	var got []midi.Message
	d.OnMessage(func(m midi.Message) { got = append(got, m) })
	d.FeedAt([]byte{0xC0, 2}, 0)

	if len(got) != 1 || got[0].Program() != 2 {
		t.Fatalf("callback received %v, want program 2", got)
	}
	m, ok := d.Poll()
	if !ok || m.Program() != 1 {
		t.Errorf("Poll() = %v, %v; want the program 1 queued before the callback", m, ok)
	}
	if _, ok := d.Poll(); ok {
		t.Error("nothing else should be queued")
	}
}

// genStream builds a byte stream from a mix of channel messages with running
// status, SysEx and realtime bytes.
func genStream(parts []int) []byte {
	var out []byte
	for i, p := range parts {
		switch p % 5 {
		case 0:
			out = append(out, 0x90|byte(i%16), byte(p%128), byte((p/7)%128))
		case 1:
			out = append(out, byte(p%128), byte((p/3)%128))
		case 2:
			out = append(out, 0xF0, byte(p%128), byte((p/5)%128), 0xF7)
		case 3:
			out = append(out, 0xF8)
		case 4:
			out = append(out, 0xC0|byte(i%16), byte(p%128))
		}
	}
	return out
}

func TestDecoderFragmentationInvarianceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("output does not depend on fragment boundaries", prop.ForAll(
		func(parts []int, cuts []int) bool {
			stream := genStream(parts)

			whole := collect(newTestDecoder(midi.NewCountingReporter()), stream)

			var fragments [][]byte
			rest := stream
			for _, c := range cuts {
				if len(rest) == 0 {
					break
				}
				n := c % (len(rest) + 1)
				fragments = append(fragments, rest[:n])
				rest = rest[n:]
			}
			fragments = append(fragments, rest)
			split := collect(newTestDecoder(midi.NewCountingReporter()), fragments...)

			if len(whole) != len(split) {
				return false
			}
			for i := range whole {
				if !bytes.Equal(whole[i], split[i]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 10000)),
		gen.SliceOf(gen.IntRange(0, 16)),
	))

	properties.TestingRun(t)
}
