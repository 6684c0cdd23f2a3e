package framing

import "fmt"

const upperhex = "0123456789ABCDEF"

// unquoted reports whether b travels unescaped. The set is the RFC 3986
// unreserved alphabet plus '/', which keeps encoded paths readable in logs.
func unquoted(b byte) bool {
	switch {
	case 'A' <= b && b <= 'Z', 'a' <= b && b <= 'z', '0' <= b && b <= '9':
		return true
	case b == '-' || b == '.' || b == '_' || b == '~' || b == '/':
		return true
	}
	return false
}

// Encode percent-escapes every byte outside the unquoted set, newline and
// '%' included. Decode(Encode(p)) == p for any byte string p.
func Encode(payload []byte) []byte {
	hexCount := 0
	for _, b := range payload {
		if !unquoted(b) {
			hexCount++
		}
	}
	if hexCount == 0 {
		return append([]byte(nil), payload...)
	}

	out := make([]byte, 0, len(payload)+2*hexCount)
	for _, b := range payload {
		if unquoted(b) {
			out = append(out, b)
		} else {
			out = append(out, '%', upperhex[b>>4], upperhex[b&0xf])
		}
	}
	return out
}

// Decode reverses Encode. Malformed escapes are an error, not a silent
// pass-through: a truncated frame must not be mistaken for a valid message.
func Decode(encoded []byte) ([]byte, error) {
	out := make([]byte, 0, len(encoded))
	for i := 0; i < len(encoded); i++ {
		b := encoded[i]
		if b != '%' {
			out = append(out, b)
			continue
		}
		if i+2 >= len(encoded) {
			return nil, fmt.Errorf("truncated percent escape at offset %d", i)
		}
		hi, ok1 := unhex(encoded[i+1])
		lo, ok2 := unhex(encoded[i+2])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("invalid percent escape %q at offset %d", encoded[i:i+3], i)
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return out, nil
}

func unhex(b byte) (byte, bool) {
	switch {
	case '0' <= b && b <= '9':
		return b - '0', true
	case 'a' <= b && b <= 'f':
		return b - 'a' + 10, true
	case 'A' <= b && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
