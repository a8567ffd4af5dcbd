package midi

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// LookupCharset maps a charset name to its decoder. UTF-8 (and the empty
// name) map to a nil encoding, meaning the payload is used as is.
func LookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "_")) {
	case "", "utf8", "utf_8":
		return nil, nil
	case "shift_jis", "sjis", "cp932":
		return japanese.ShiftJIS, nil
	case "euc_jp", "eucjp":
		return japanese.EUCJP, nil
	case "latin1", "iso_8859_1", "iso8859_1":
		return charmap.ISO8859_1, nil
	case "windows_1252", "cp1252":
		return charmap.Windows1252, nil
	}
	return nil, NewInvalidArgumentError("LookupCharset", "unknown charset %q", name)
}

// Text decodes the payload of a text meta event with enc. A nil enc returns
// the payload unchanged. SMF does not declare a text encoding, so files made
// by Japanese sequencers commonly carry Shift_JIS here.
func (m Message) Text(enc encoding.Encoding) (string, error) {
	if !m.MetaType().IsText() {
		return "", NewInvalidArgumentError("Text", "meta type %d is not a text event", int(m.MetaType()))
	}
	payload, ok := m.MetaData()
	if !ok {
		return "", NewInvalidArgumentError("Text", "meta event length does not match its payload")
	}
	if enc == nil {
		return string(payload), nil
	}
	s, _, err := transform.Bytes(enc.NewDecoder(), payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode meta text: %w", err)
	}
	return string(s), nil
}
