package midi

import (
	"github.com/zurustar/midikit/pkg/vlq"
)

// MetaType is the type byte of a file meta event.
type MetaType int

// MetaUnknown is returned by MetaType for messages that are not meta events.
const MetaUnknown MetaType = -1

const (
	MetaSequenceNumber    MetaType = 0x00
	MetaText              MetaType = 0x01
	MetaCopyright         MetaType = 0x02
	MetaTrackName         MetaType = 0x03
	MetaInstrumentName    MetaType = 0x04
	MetaLyric             MetaType = 0x05
	MetaMarker            MetaType = 0x06
	MetaCuePoint          MetaType = 0x07
	MetaProgramName       MetaType = 0x08
	MetaDeviceName        MetaType = 0x09
	MetaChannelPrefix     MetaType = 0x20
	MetaPort              MetaType = 0x21
	MetaEndOfTrack        MetaType = 0x2F
	MetaTempo             MetaType = 0x51
	MetaSMPTEOffset       MetaType = 0x54
	MetaTimeSignature     MetaType = 0x58
	MetaKeySignature      MetaType = 0x59
	MetaSequencerSpecific MetaType = 0x7F
)

// IsText reports whether the payload of t is text.
func (t MetaType) IsText() bool {
	return t >= MetaText && t <= MetaDeviceName
}

// Meta builds FF type <VLQ length> payload.
func Meta(t MetaType, payload []byte) Message {
	b := make([]byte, 0, 2+vlq.Len(uint32(len(payload)))+len(payload))
	b = append(b, byte(TypeMeta), byte(t))
	b = vlq.Append(b, uint32(len(payload)))
	b = append(b, payload...)
	return Message{Bytes: b}
}

// EndOfTrack returns the canonical FF 2F 00.
func EndOfTrack() Message {
	return Meta(MetaEndOfTrack, nil)
}

// Tempo builds a set-tempo meta event in microseconds per quarter note.
func Tempo(microsPerQuarter uint32) Message {
	if microsPerQuarter > 0xFFFFFF {
		microsPerQuarter = 0xFFFFFF
	}
	return Meta(MetaTempo, []byte{
		byte(microsPerQuarter >> 16),
		byte(microsPerQuarter >> 8),
		byte(microsPerQuarter),
	})
}

// TrackName builds a sequence/track name meta event.
func TrackName(name string) Message {
	return Meta(MetaTrackName, []byte(name))
}

// TimeSignature builds a time signature: numerator, denominator as a power of
// two, MIDI clocks per metronome click, and 32nd notes per quarter.
func TimeSignature(numerator, denominatorPow2, clocksPerClick, thirtySecondsPerQuarter uint8) Message {
	return Meta(MetaTimeSignature, []byte{numerator, denominatorPow2, clocksPerClick, thirtySecondsPerQuarter})
}

// KeySignature builds a key signature: sharps (negative for flats) and minor flag.
func KeySignature(sharps int8, minor bool) Message {
	var mi byte
	if minor {
		mi = 1
	}
	return Meta(MetaKeySignature, []byte{byte(sharps), mi})
}

// IsMeta reports whether the first byte is the meta marker 0xFF.
func (m Message) IsMeta() bool {
	return m.Status() == byte(TypeMeta)
}

// MetaType returns the meta type byte, or MetaUnknown when m is not a meta
// event or is too short to hold one.
func (m Message) MetaType() MetaType {
	if !m.IsMeta() || len(m.Bytes) < 2 {
		return MetaUnknown
	}
	return MetaType(m.Bytes[1])
}

// MetaData returns the payload of a meta event. ok is false if m is not a meta
// event or its length field does not match the bytes present.
func (m Message) MetaData() (payload []byte, ok bool) {
	if m.MetaType() == MetaUnknown {
		return nil, false
	}
	length, n, err := vlq.Decode(m.Bytes, 2)
	if err != nil {
		return nil, false
	}
	start := 2 + n
	if uint64(start)+uint64(length) > uint64(len(m.Bytes)) {
		return nil, false
	}
	return m.Bytes[start : start+int(length)], true
}

// IsEndOfTrack reports whether m is an End-Of-Track meta event.
func (m Message) IsEndOfTrack() bool {
	return m.MetaType() == MetaEndOfTrack
}

// TempoMicros returns the microseconds per quarter of a set-tempo event.
func (m Message) TempoMicros() (uint32, bool) {
	if m.MetaType() != MetaTempo {
		return 0, false
	}
	p, ok := m.MetaData()
	if !ok || len(p) != 3 {
		return 0, false
	}
	return uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2]), true
}
