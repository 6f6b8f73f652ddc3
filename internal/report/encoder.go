package report

import (
	"strings"

	"github.com/nerrad567/govee-local-bridge/internal/node"
)

// NextToggle returns the driver value that forces a change notification.
// Any value other than 1, including the uninitialised -1, moves to 1.
func NextToggle(current int) int {
	if current != 1 {
		return 1
	}
	return 0
}

// EncodeText removes every '.' and percent-encodes everything outside the
// RFC 3986 unreserved set, so the result is safe as a single URL path segment.
func EncodeText(text string) string {
	text = strings.ReplaceAll(text, ".", "")

	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(text) * 3)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}

// Encoded is the outcome of preparing a text push.
type Encoded struct {
	Value int
	Text  string
}

// Encode advances the toggle on driver and encodes text. The new value is
// stored on the node before Encode returns, whatever happens to the delivery.
// A driver missing from the node yields node.ErrMissingDriver and leaves the
// node untouched.
func Encode(n *node.Node, driver node.DriverName, text string) (Encoded, error) {
	value, err := n.UpdateDriver(driver, NextToggle)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{Value: value, Text: EncodeText(text)}, nil
}
