package midi

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{"note on", NoteOn(0, 60, 100), []byte{0x90, 60, 100}},
		{"note off", NoteOff(9, 36, 0), []byte{0x89, 36, 0}},
		{"poly pressure", PolyPressure(1, 64, 20), []byte{0xA1, 64, 20}},
		{"control change", ControlChange(15, 7, 127), []byte{0xBF, 7, 127}},
		{"program change", ProgramChange(2, 5), []byte{0xC2, 5}},
		{"aftertouch", Aftertouch(3, 90), []byte{0xD3, 90}},
		{"pitch bend center", PitchBend(0, 8192), []byte{0xE0, 0x00, 0x40}},
		{"pitch bend max", PitchBend(0, 0xFFFF), []byte{0xE0, 0x7F, 0x7F}},
		{"channel clamped high", NoteOn(40, 60, 1), []byte{0x9F, 60, 1}},
		{"channel clamped low", NoteOn(-3, 60, 1), []byte{0x90, 60, 1}},
		{"data masked", NoteOn(0, 0xFF, 0x80), []byte{0x90, 0x7F, 0x00}},
		{"sysex", SysEx([]byte{0x7E, 0x7F, 0x09, 0x01}), []byte{0xF0, 0x7E, 0x7F, 0x09, 0x01, 0xF7}},
		{"song position", SongPosition(0x3FFF), []byte{0xF2, 0x7F, 0x7F}},
		{"end of track", EndOfTrack(), []byte{0xFF, 0x2F, 0x00}},
		{"tempo", Tempo(500000), []byte{0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20}},
		{"track name", TrackName("Bass"), []byte{0xFF, 0x03, 0x04, 'B', 'a', 's', 's'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.msg.Bytes, tt.want) {
				t.Errorf("got % X, want % X", tt.msg.Bytes, tt.want)
			}
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	src := []byte{0x90, 60, 100}
	m := New(src...)
	src[1] = 0
	if m.Bytes[1] != 60 {
		t.Error("New must not alias its input")
	}
	c := m.Clone()
	c.Bytes[2] = 1
	if m.Bytes[2] != 100 {
		t.Error("Clone must not alias the original")
	}
}

func TestTypeAndChannel(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		typ     MessageType
		channel int
	}{
		{"note on ch 1", NoteOn(0, 60, 100), TypeNoteOn, 1},
		{"control change ch 16", ControlChange(15, 1, 2), TypeControlChange, 16},
		{"sysex", SysEx(nil), TypeSysEx, 0},
		{"clock", Clock(), TypeClock, 0},
		{"meta", EndOfTrack(), TypeMeta, 0},
		{"empty", Message{}, TypeUnknown, 0},
		{"data led", New(0x40, 0x10), TypeUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Type(); got != tt.typ {
				t.Errorf("Type() = %v, want %v", got, tt.typ)
			}
			if got := tt.msg.Channel(); got != tt.channel {
				t.Errorf("Channel() = %d, want %d", got, tt.channel)
			}
		})
	}
}

func TestUsesChannel(t *testing.T) {
	m := NoteOn(4, 60, 100)

	ok, err := m.UsesChannel(5)
	if err != nil || !ok {
		t.Errorf("UsesChannel(5) = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = m.UsesChannel(1)
	if err != nil || ok {
		t.Errorf("UsesChannel(1) = (%v, %v), want (false, nil)", ok, err)
	}

	for _, n := range []int{0, 17, -1} {
		_, err := m.UsesChannel(n)
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("UsesChannel(%d): expected ErrOutOfRange, got %v", n, err)
		}
		var merr *Error
		if !errors.As(err, &merr) || merr.Kind != ErrorOutOfRange {
			t.Errorf("UsesChannel(%d): expected *Error of kind %s, got %v", n, ErrorOutOfRange, err)
		}
	}
}

func TestNoteAccessors(t *testing.T) {
	on := NoteOn(0, 45, 35)
	if on.Note() != 45 || on.Velocity() != 35 || !on.IsNoteOn() || on.IsNoteOff() {
		t.Errorf("unexpected accessors for %v", on)
	}
	silent := NoteOn(0, 45, 0)
	if silent.IsNoteOn() || !silent.IsNoteOff() {
		t.Error("note on with zero velocity is a note off")
	}
	if n, v := ControlChange(0, 7, 99).Controller(); n != 7 || v != 99 {
		t.Errorf("Controller() = (%d, %d), want (7, 99)", n, v)
	}
	if got := PitchBend(0, 12345).PitchBendValue(); got != 12345 {
		t.Errorf("PitchBendValue() = %d, want 12345", got)
	}
	if got := ProgramChange(0, 42).Program(); got != 42 {
		t.Errorf("Program() = %d, want 42", got)
	}
	// truncated message must not panic
	if New(0x90).Velocity() != 0 {
		t.Error("missing data byte should read as zero")
	}
}

func TestMetaAccessors(t *testing.T) {
	t.Run("short message is unknown", func(t *testing.T) {
		if got := New(0xFF).MetaType(); got != MetaUnknown {
			t.Errorf("MetaType() = %d, want MetaUnknown", got)
		}
		if got := NoteOn(0, 1, 1).MetaType(); got != MetaUnknown {
			t.Errorf("MetaType() of note = %d, want MetaUnknown", got)
		}
	})

	t.Run("tempo", func(t *testing.T) {
		us, ok := Tempo(600000).TempoMicros()
		if !ok || us != 600000 {
			t.Errorf("TempoMicros() = (%d, %v), want (600000, true)", us, ok)
		}
	})

	t.Run("long payload uses multi-byte length", func(t *testing.T) {
		payload := bytes.Repeat([]byte{'a'}, 200)
		m := Meta(MetaText, payload)
		if !bytes.Equal(m.Bytes[:4], []byte{0xFF, 0x01, 0x81, 0x48}) {
			t.Errorf("header = % X", m.Bytes[:4])
		}
		got, ok := m.MetaData()
		if !ok || !bytes.Equal(got, payload) {
			t.Error("MetaData() did not return the payload")
		}
	})

	t.Run("length past end", func(t *testing.T) {
		if _, ok := New(0xFF, 0x01, 0x05, 'a').MetaData(); ok {
			t.Error("expected MetaData to fail for a short payload")
		}
	})

	t.Run("end of track", func(t *testing.T) {
		if !EndOfTrack().IsEndOfTrack() || TrackName("x").IsEndOfTrack() {
			t.Error("IsEndOfTrack misclassified")
		}
	})
}

func TestText(t *testing.T) {
	sjis, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte("ピアノ"))
	if err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	m := Meta(MetaTrackName, sjis)

	enc, err := LookupCharset("Shift_JIS")
	if err != nil {
		t.Fatalf("LookupCharset failed: %v", err)
	}
	got, err := m.Text(enc)
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if got != "ピアノ" {
		t.Errorf("Text() = %q, want %q", got, "ピアノ")
	}

	raw, err := TrackName("Lead").Text(nil)
	if err != nil || raw != "Lead" {
		t.Errorf("Text(nil) = (%q, %v)", raw, err)
	}

	if _, err := Tempo(500000).Text(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for tempo, got %v", err)
	}
	if _, err := LookupCharset("klingon"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown charset, got %v", err)
	}
}

func TestString(t *testing.T) {
	if got := (Message{}).String(); got != "<empty>" {
		t.Errorf("empty String() = %q", got)
	}
	if got := NoteOn(0, 60, 100).String(); !strings.Contains(got, "NoteOn") {
		t.Errorf("note String() = %q, want it to mention NoteOn", got)
	}
	if got := New(0x10, 0x20).String(); !strings.HasPrefix(got, "Unknown") {
		t.Errorf("data-led String() = %q", got)
	}
}

func TestDataLen(t *testing.T) {
	tests := []struct {
		status byte
		want   int
	}{
		{0x90, 2}, {0x80, 2}, {0xA5, 2}, {0xB0, 2}, {0xE3, 2},
		{0xC0, 1}, {0xDF, 1},
		{0xF0, -1}, {0xF1, 1}, {0xF2, 2}, {0xF3, 1}, {0xF6, 0},
		{0xF8, 0}, {0xFE, 0}, {0x40, -1},
	}
	for _, tt := range tests {
		if got := DataLen(tt.status); got != tt.want {
			t.Errorf("DataLen(%#x) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestCountingReporter(t *testing.T) {
	r := NewCountingReporter()
	r.Warn(Warning{Kind: WarnQueueFull, Message: "full", Count: 1})
	r.Warn(Warning{Kind: WarnQueueFull, Message: "full", Count: 2})
	r.Warn(Warning{Kind: WarnStrayData, Message: "stray", Count: 1})

	if r.Count(WarnQueueFull) != 2 || r.Count(WarnStrayData) != 1 {
		t.Errorf("unexpected counts: %v", r.Warnings())
	}
	if len(r.Warnings()) != 3 {
		t.Errorf("expected 3 warnings, got %d", len(r.Warnings()))
	}
}
