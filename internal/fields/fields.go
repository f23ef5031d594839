// Package fields encodes and decodes the note field blob stored in the
// notes.flds column of a collection.
package fields

import (
	"encoding/json"
	"strings"
)

// Separator is the unit separator placed between fields in the canonical format.
const Separator = "\x1f"

// decoder splits a raw blob into fields. ok is false when the decoder does
// not recognise the blob's format.
type decoder struct {
	name   string
	decode func(raw string) (parts []string, ok bool)
}

// decoders are tried in order; the first match wins.
var decoders = []decoder{
	{name: "unit-separator", decode: splitOn(Separator)},
	{name: "pipe", decode: splitOn("|")},
	{name: "json-array", decode: jsonArray},
}

// Decode splits raw into unescaped fields. It never fails: an unrecognised
// blob is returned as a single field and malformed fields become "".
func Decode(raw string) []string {
	parts, _ := decodeWith(raw)
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = Unescape(p)
	}
	return out
}

// Format reports which encoding Decode would use for raw.
func Format(raw string) string {
	_, name := decodeWith(raw)
	return name
}

func decodeWith(raw string) ([]string, string) {
	for _, d := range decoders {
		if parts, ok := d.decode(raw); ok {
			return parts, d.name
		}
	}
	return []string{raw}, "single"
}

// Encode joins front and back in the canonical format. No escaping is
// applied, so Decode(Encode(f, b)) loses quotes and backslash sequences that
// Unescape strips.
func Encode(front, back string) string {
	return front + Separator + back
}

// Unescape reverses the quoting found in older exports: one leading and one
// trailing single quote are dropped, doubled quotes collapse, and the \n, \t,
// \r and \\ escapes are expanded, in that order. The result is trimmed.
func Unescape(field string) string {
	if field == "" {
		return ""
	}
	s := strings.TrimPrefix(field, "'")
	s = strings.TrimSuffix(s, "'")
	s = strings.ReplaceAll(s, "''", "'")
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	s = strings.ReplaceAll(s, `\r`, "\r")
	s = strings.ReplaceAll(s, `\\`, `\`)
	return strings.TrimSpace(s)
}

func splitOn(sep string) func(string) ([]string, bool) {
	return func(raw string) ([]string, bool) {
		if !strings.Contains(raw, sep) {
			return nil, false
		}
		return strings.Split(raw, sep), true
	}
}

func jsonArray(raw string) ([]string, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil || elems == nil {
		return nil, false
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		var s string
		if err := json.Unmarshal(e, &s); err == nil {
			parts[i] = s
		}
	}
	return parts, true
}
