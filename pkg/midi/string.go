package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// String describes m. Channel and system messages use the gomidi
// description; meta events use the SMF one.
func (m Message) String() string {
	switch {
	case m.IsEmpty():
		return "<empty>"
	case m.IsMeta():
		return smf.Message(m.Bytes).String()
	case m.Type() == TypeUnknown:
		return fmt.Sprintf("Unknown % X", m.Bytes)
	}
	return gomidi.Message(m.Bytes).String()
}
