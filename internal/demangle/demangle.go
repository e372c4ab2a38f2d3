// Package demangle provides a small, best-effort Itanium C++ mangled-name
// stripper for display purposes. It is not a conformant demangler: template
// arguments, substitutions, and most operator encodings are left as-is
// rather than reconstructed.
package demangle

import (
	"strconv"
	"strings"
)

// Itanium demangles name if it looks like an Itanium ABI mangled symbol
// (starts with "_Z"), joining its nested-name components with "::". Any
// name it cannot parse is returned unchanged.
func Itanium(name string) string {
	s := name
	if strings.HasPrefix(s, "_Z") {
		s = s[2:]
	} else {
		return name
	}

	var parts []string
	if strings.HasPrefix(s, "N") {
		s = s[1:]
		for len(s) > 0 && s[0] != 'E' {
			part, rest, ok := readLengthPrefixed(s)
			if !ok {
				return name
			}
			parts = append(parts, part)
			s = rest
		}
		if len(s) == 0 {
			return name
		}
	} else {
		part, rest, ok := readLengthPrefixed(s)
		if !ok {
			return name
		}
		parts = append(parts, part)
		s = rest
	}

	if len(parts) == 0 {
		return name
	}
	return strings.Join(parts, "::")
}

// readLengthPrefixed reads a decimal length followed by that many bytes,
// Itanium's <source-name> production.
func readLengthPrefixed(s string) (value, rest string, ok bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", s, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil || n < 0 || i+n > len(s) {
		return "", s, false
	}
	return s[i : i+n], s[i+n:], true
}
