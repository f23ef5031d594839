package domain

import "time"

// IDSequence hands out strictly increasing millisecond-epoch identifiers,
// the shape the external collection format uses for deck, note and card ids.
// It is not safe for concurrent use; each import owns its own sequence.
type IDSequence struct {
	last int64
}

// NewIDSequence returns a sequence whose first id is start's Unix millisecond.
func NewIDSequence(start time.Time) *IDSequence {
	return &IDSequence{last: start.UnixMilli() - 1}
}

// Next returns the next identifier.
func (s *IDSequence) Next() int64 {
	s.last++
	return s.last
}

// ResumeIDSequence returns a sequence whose first id is last+1.
func ResumeIDSequence(last int64) *IDSequence {
	return &IDSequence{last: last}
}
