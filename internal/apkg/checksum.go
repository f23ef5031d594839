package apkg

import "unicode/utf16"

// Checksum is the sort-field checksum stored in notes.csum: a 32-bit rolling
// hash (h*31 + c) over the UTF-16 code units of s, wrapped to int32, then made
// non-negative. The minimum int32 maps to 2147483648.
func Checksum(s string) int64 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(u)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
