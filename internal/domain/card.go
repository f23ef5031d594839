package domain

import "time"

// Card is a single front/back flashcard together with its scheduling state.
type Card struct {
	ID        int64     `json:"id"`
	DeckID    int64     `json:"deckId"`
	Front     string    `json:"front"`
	Back      string    `json:"back"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Schedule
}

// Schedule is the spaced-repetition state of a card.
// Repetitions is 0 exactly when the card has never been successfully reviewed.
type Schedule struct {
	Interval     int        `json:"interval"` // days
	Repetitions  int        `json:"repetitions"`
	EaseFactor   float64    `json:"easeFactor"`
	DueDate      time.Time  `json:"dueDate"`
	LastReviewed *time.Time `json:"lastReviewed,omitempty"`
}

// Outcome is the result of a single review.
type Outcome string

const (
	Correct   Outcome = "correct"
	Incorrect Outcome = "incorrect"
)

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	return o == Correct || o == Incorrect
}

// Review records a single review event for a card.
type Review struct {
	CardID       int64         `json:"cardId"`
	Outcome      Outcome       `json:"response"`
	ResponseTime time.Duration `json:"responseTime"`
	Timestamp    time.Time     `json:"timestamp"`
}
