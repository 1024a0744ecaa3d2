// Package keys mints and verifies achievement keys.
//
// The signature scheme is an integrity check against casual edits and
// accidental corruption. The secret ships with every game page, so anyone
// who reads it can mint keys.
package keys

import (
	"strconv"
	"unicode/utf16"
)

// Hash is the platform's 32-bit string hash. It walks the UTF-16 code units
// of s computing h = h*31 + c with signed 32-bit wraparound, and renders the
// result in hex with a leading "n" in place of the minus sign.
func Hash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return formatHash(h)
}

func formatHash(h int32) string {
	if h < 0 {
		return "n" + strconv.FormatInt(-int64(h), 16)
	}
	return strconv.FormatInt(int64(h), 16)
}
