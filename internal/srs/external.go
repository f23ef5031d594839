package srs

import (
	"math"
	"time"

	"github.com/conorfennell/blonki/internal/domain"
)

// State is the learning stage of a card, derived from its schedule.
type State int

// The values match the type and queue columns of the external cards table.
// Relearning (3) exists there but is never produced here.
const (
	StateNew      State = 0
	StateLearning State = 1
	StateReview   State = 2
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLearning:
		return "learning"
	case StateReview:
		return "review"
	default:
		return "unknown"
	}
}

// StateOf derives the learning stage of s.
func StateOf(s domain.Schedule) State {
	switch {
	case s.Repetitions == 0:
		return StateNew
	case s.Interval < 1:
		return StateLearning
	default:
		return StateReview
	}
}

// External is a card's schedule expressed in the columns of the external
// cards table.
type External struct {
	Type     int
	Queue    int
	Due      int64
	Interval int
	Factor   int // ease in permille
	Reps     int
	Lapses   int
}

// ExternalSchedule maps c's schedule onto the external columns as of now.
// Due is 0 for new cards, otherwise the days since the last review plus the
// interval, floored at 0. Cards never reviewed fall back to UpdatedAt.
func ExternalSchedule(c domain.Card, now time.Time) External {
	state := StateOf(c.Schedule)

	var due int64
	if state != StateNew {
		ref := c.UpdatedAt
		if c.LastReviewed != nil {
			ref = *c.LastReviewed
		}
		since := int64(math.Floor(float64(now.Sub(ref)) / float64(day)))
		due = max(0, since+int64(c.Interval))
	}

	return External{
		Type:     int(state),
		Queue:    int(state),
		Due:      due,
		Interval: max(1, c.Interval),
		Factor:   int(math.Round(c.EaseFactor * 1000)),
		Reps:     c.Repetitions,
		Lapses:   0,
	}
}
