// Package srs implements the spaced-repetition update rules applied to a
// card's schedule after each review.
package srs

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/blonki/internal/domain"
)

const (
	// MinEaseFactor is the floor every rule clamps the ease factor to.
	MinEaseFactor = 1.3
	// InitialEaseFactor is the ease given to a card that has never been reviewed.
	InitialEaseFactor = 2.5

	day                 = 24 * time.Hour
	idealResponseTime   = 10 * time.Second
	maxTimeFactor       = 2.0
	defaultEasyInterval = 6
)

// ErrMissingConfiguration is returned when the custom rule is requested without settings.
var ErrMissingConfiguration = errors.New("srs: settings required for custom algorithm")

// UnknownAlgorithmError is returned by New for an unrecognised algorithm name.
type UnknownAlgorithmError struct {
	Name string
}

func (e *UnknownAlgorithmError) Error() string {
	return fmt.Sprintf("srs: unknown algorithm: %q", e.Name)
}

// Algorithm computes the next schedule of a card from a review.
// Implementations are pure: the result depends only on the arguments.
type Algorithm interface {
	Name() string
	Next(s domain.Schedule, outcome domain.Outcome, responseTime time.Duration, now time.Time) domain.Schedule
}

// Settings holds the tunable bounds of the custom rule. Intervals are in days.
type Settings struct {
	Algorithm       string `koanf:"algorithm" json:"srsAlgorithm" validate:"omitempty,oneof=sm2 sm17 custom"`
	InitialInterval int    `koanf:"initial_interval" json:"sm2InitialInterval" validate:"min=1"`
	EasyInterval    int    `koanf:"easy_interval" json:"sm2EasyInterval" validate:"min=1"`
	MinInterval     int    `koanf:"min_interval" json:"sm2MinInterval" validate:"min=1"`
	MaxInterval     int    `koanf:"max_interval" json:"sm2MaxInterval" validate:"gtefield=MinInterval"`
}

// DefaultSettings returns the application's default scheduling settings.
func DefaultSettings() Settings {
	return Settings{
		Algorithm:       "sm2",
		InitialInterval: 1,
		EasyInterval:    4,
		MinInterval:     1,
		MaxInterval:     36500,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New returns the rule registered under name: "sm2", "sm17" or "custom".
// settings is only consulted, and then required, for "custom".
func New(name string, settings *Settings) (Algorithm, error) {
	switch name {
	case "sm2":
		return SM2{}, nil
	case "sm17":
		return SM17{}, nil
	case "custom":
		if settings == nil {
			return nil, ErrMissingConfiguration
		}
		return NewCustom(*settings)
	default:
		return nil, &UnknownAlgorithmError{Name: name}
	}
}

// FromSettings selects the rule named by settings.Algorithm.
func FromSettings(settings Settings) (Algorithm, error) {
	return New(settings.Algorithm, &settings)
}

// Initial returns the schedule of a card that has just been created or imported.
func Initial(now time.Time) domain.Schedule {
	return domain.Schedule{
		Interval:    1,
		Repetitions: 0,
		EaseFactor:  InitialEaseFactor,
		DueDate:     now,
	}
}

// SM2 is the classic SuperMemo-2 rule with response-time sensitive ease.
type SM2 struct{}

func (SM2) Name() string { return "SM-2" }

func (SM2) Next(s domain.Schedule, outcome domain.Outcome, responseTime time.Duration, now time.Time) domain.Schedule {
	return rules{initial: 1, easy: defaultEasyInterval, min: 1}.next(s, outcome, responseTime, now)
}

// SM17 is a simplified SuperMemo-17 rule. It differs from SM2 only in
// clamping the difficulty term at zero.
type SM17 struct{}

func (SM17) Name() string { return "SM-17" }

func (SM17) Next(s domain.Schedule, outcome domain.Outcome, responseTime time.Duration, now time.Time) domain.Schedule {
	return rules{initial: 1, easy: defaultEasyInterval, min: 1, clampDifficulty: true}.next(s, outcome, responseTime, now)
}

// Custom is the SM2 shape with every interval constant read from Settings and
// long intervals clamped to [MinInterval, MaxInterval].
type Custom struct {
	settings Settings
}

// NewCustom validates settings and returns the parameterised rule.
func NewCustom(settings Settings) (*Custom, error) {
	if err := validate.Struct(settings); err != nil {
		return nil, fmt.Errorf("srs: invalid custom settings: %w", err)
	}
	return &Custom{settings: settings}, nil
}

func (c *Custom) Name() string { return "Custom" }

func (c *Custom) Next(s domain.Schedule, outcome domain.Outcome, responseTime time.Duration, now time.Time) domain.Schedule {
	return rules{
		initial:       c.settings.InitialInterval,
		easy:          c.settings.EasyInterval,
		min:           c.settings.MinInterval,
		max:           c.settings.MaxInterval,
		clampInterval: true,
	}.next(s, outcome, responseTime, now)
}

// rules is the shared shape of all three algorithms.
type rules struct {
	initial, easy, min, max int
	clampInterval           bool
	clampDifficulty         bool
}

func (r rules) next(s domain.Schedule, outcome domain.Outcome, responseTime time.Duration, now time.Time) domain.Schedule {
	reviewed := now

	if outcome != domain.Correct {
		return domain.Schedule{
			Interval:     r.min,
			Repetitions:  0,
			EaseFactor:   math.Max(MinEaseFactor, s.EaseFactor-0.2),
			DueDate:      now.Add(time.Duration(r.min) * day),
			LastReviewed: &reviewed,
		}
	}

	reps := s.Repetitions + 1
	var interval int
	switch reps {
	case 1:
		interval = r.initial
	case 2:
		interval = r.easy
	default:
		interval = int(math.Round(float64(s.Interval) * s.EaseFactor))
		if r.clampInterval {
			interval = max(r.min, min(interval, r.max))
		}
	}

	timeFactor := math.Min(float64(responseTime)/float64(idealResponseTime), maxTimeFactor)
	difficulty := 5 - timeFactor
	if r.clampDifficulty {
		difficulty = math.Max(0, difficulty)
	}
	ease := math.Max(MinEaseFactor, s.EaseFactor+(0.1-difficulty*(0.08+difficulty*0.02)))

	return domain.Schedule{
		Interval:     interval,
		Repetitions:  reps,
		EaseFactor:   ease,
		DueDate:      now.Add(time.Duration(interval) * day),
		LastReviewed: &reviewed,
	}
}
