package midi

// clampChannel folds a 0-based channel into the status nibble range.
func clampChannel(channel int) byte {
	if channel < 0 {
		return 0
	}
	if channel > 15 {
		return 15
	}
	return byte(channel)
}

// ChannelMessage builds a channel voice message from a type, a 0-based channel and
// its data bytes. Data bytes are masked to seven bits.
func ChannelMessage(t MessageType, channel int, data ...uint8) Message {
	b := make([]byte, 0, 1+len(data))
	b = append(b, byte(t)&0xF0|clampChannel(channel))
	for _, d := range data {
		b = append(b, d&0x7F)
	}
	return Message{Bytes: b}
}

func NoteOn(channel int, note, velocity uint8) Message {
	return ChannelMessage(TypeNoteOn, channel, note, velocity)
}

func NoteOff(channel int, note, velocity uint8) Message {
	return ChannelMessage(TypeNoteOff, channel, note, velocity)
}

func PolyPressure(channel int, note, pressure uint8) Message {
	return ChannelMessage(TypePolyPressure, channel, note, pressure)
}

func ControlChange(channel int, controller, value uint8) Message {
	return ChannelMessage(TypeControlChange, channel, controller, value)
}

func ProgramChange(channel int, program uint8) Message {
	return ChannelMessage(TypeProgramChange, channel, program)
}

func Aftertouch(channel int, pressure uint8) Message {
	return ChannelMessage(TypeAftertouch, channel, pressure)
}

// PitchBend encodes a 14-bit wheel position (0..16383, center 8192), LSB first.
func PitchBend(channel int, value uint16) Message {
	if value > 0x3FFF {
		value = 0x3FFF
	}
	return ChannelMessage(TypePitchBend, channel, uint8(value&0x7F), uint8(value>>7))
}

// SysEx frames payload as F0 payload F7. Payload bytes are masked to seven bits.
func SysEx(payload []byte) Message {
	b := make([]byte, 0, len(payload)+2)
	b = append(b, byte(TypeSysEx))
	for _, d := range payload {
		b = append(b, d&0x7F)
	}
	b = append(b, byte(TypeEndOfExclusive))
	return Message{Bytes: b}
}

func Clock() Message    { return New(byte(TypeClock)) }
func Start() Message    { return New(byte(TypeStart)) }
func Continue() Message { return New(byte(TypeContinue)) }
func Stop() Message     { return New(byte(TypeStop)) }

// SongPosition encodes a song position pointer in MIDI beats.
func SongPosition(beats uint16) Message {
	return New(byte(TypeSongPosition), byte(beats&0x7F), byte(beats>>7)&0x7F)
}

func SongSelect(song uint8) Message {
	return New(byte(TypeSongSelect), song&0x7F)
}
