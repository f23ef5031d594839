// Package knol computes content fingerprints used to recognise the same card
// arriving from different imports.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/blonki/internal/domain"
)

// Normalize joins the card's front and back after cleaning each part.
// Each part is lowercased, trimmed and has CRLF line endings folded to LF.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	// Newline-joined so "ab"+"c" and "a"+"bc" stay distinct.
	return normalizePart(card.Front) + "\n" + normalizePart(card.Back)
}

// Fingerprint returns the SHA-256 of the normalized card as a hex string.
// Scheduling state, ids and deck membership do not contribute.
func Fingerprint(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", sum)
}
