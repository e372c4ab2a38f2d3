package minidump

import "encoding/binary"

// decodeUTF16LE converts a UTF-16LE byte string to UTF-8. Malformed
// sequences (a lone low surrogate, or a high surrogate not followed by a
// matching low surrogate) yield an empty string rather than a best-effort
// guess, per R1's "ill-formed sequences yield empty string" rule.
func decodeUTF16LE(data []byte) string {
	if len(data)%2 != 0 {
		return ""
	}
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	// Drop a single trailing NUL terminator, as minidump strings carry one.
	if n := len(units); n > 0 && units[n-1] == 0 {
		units = units[:n-1]
	}

	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u < 0xD800 || u > 0xDFFF:
			runes = append(runes, rune(u))
		case u >= 0xDC00 && u <= 0xDFFF:
			return "" // lone low surrogate
		default: // high surrogate, 0xD800-0xDBFF
			if i+1 >= len(units) {
				return ""
			}
			lo := units[i+1]
			if lo < 0xDC00 || lo > 0xDFFF {
				return "" // unmatched high surrogate
			}
			r := (rune(u-0xD800) << 10) + rune(lo-0xDC00) + 0x10000
			runes = append(runes, r)
			i++
		}
	}

	return string(runes)
}

// encodeUTF16LE is the inverse of decodeUTF16LE, used to verify the R1
// round-trip property. It does not append a NUL terminator.
func encodeUTF16LE(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range []rune(s) {
		if r < 0x10000 {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(r))
			out = append(out, b[:]...)
			continue
		}
		r -= 0x10000
		hi := uint16(0xD800 + (r >> 10))
		lo := uint16(0xDC00 + (r & 0x3FF))
		var b [4]byte
		binary.LittleEndian.PutUint16(b[0:], hi)
		binary.LittleEndian.PutUint16(b[2:], lo)
		out = append(out, b[:]...)
	}
	return out
}
