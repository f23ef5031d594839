package srs

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/blonki/internal/domain"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	t.Run("built-in names", func(t *testing.T) {
		for name, want := range map[string]string{"sm2": "SM-2", "sm17": "SM-17"} {
			alg, err := New(name, nil)
			require.NoError(t, err)
			assert.Equal(t, want, alg.Name())
		}
	})

	t.Run("custom requires settings", func(t *testing.T) {
		_, err := New("custom", nil)
		assert.ErrorIs(t, err, ErrMissingConfiguration)
	})

	t.Run("custom with settings", func(t *testing.T) {
		settings := DefaultSettings()
		alg, err := New("custom", &settings)
		require.NoError(t, err)
		assert.Equal(t, "Custom", alg.Name())
	})

	t.Run("custom rejects inverted bounds", func(t *testing.T) {
		settings := DefaultSettings()
		settings.MinInterval = 10
		settings.MaxInterval = 5
		_, err := New("custom", &settings)
		assert.Error(t, err)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := New("fsrs", nil)
		var unknown *UnknownAlgorithmError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "fsrs", unknown.Name)
	})
}

func TestSM2CorrectSequence(t *testing.T) {
	alg := SM2{}
	s := Initial(now)

	s = alg.Next(s, domain.Correct, 3*time.Second, now)
	assert.Equal(t, 1, s.Interval)
	assert.Equal(t, 1, s.Repetitions)

	s = alg.Next(s, domain.Correct, 3*time.Second, now)
	assert.Equal(t, 6, s.Interval)
	assert.Equal(t, 2, s.Repetitions)
	assert.Equal(t, now.Add(6*24*time.Hour), s.DueDate)
	require.NotNil(t, s.LastReviewed)
	assert.Equal(t, now, *s.LastReviewed)
}

func TestThirdCorrectUsesEase(t *testing.T) {
	s := domain.Schedule{Interval: 6, Repetitions: 2, EaseFactor: 2.5}

	next := SM2{}.Next(s, domain.Correct, 0, now)

	assert.Equal(t, 15, next.Interval)
	assert.Equal(t, 3, next.Repetitions)
}

func TestEaseFactorFormula(t *testing.T) {
	s := domain.Schedule{Interval: 6, Repetitions: 2, EaseFactor: 2.5}

	// timeFactor = 0.5, difficulty = 4.5: 2.5 + 0.1 - 4.5*(0.08+0.09) = 1.835
	next := SM2{}.Next(s, domain.Correct, 5*time.Second, now)
	assert.InDelta(t, 1.835, next.EaseFactor, 1e-9)

	// timeFactor caps at 2, difficulty = 3: 2.5 + 0.1 - 3*(0.14) = 2.18
	next = SM2{}.Next(s, domain.Correct, time.Minute, now)
	assert.InDelta(t, 2.18, next.EaseFactor, 1e-9)
}

func TestIncorrectResets(t *testing.T) {
	algorithms := []Algorithm{SM2{}, SM17{}, mustCustom(t, DefaultSettings())}
	rng := rand.New(rand.NewSource(7))

	for _, alg := range algorithms {
		t.Run(alg.Name(), func(t *testing.T) {
			for i := 0; i < 200; i++ {
				s := domain.Schedule{
					Interval:    rng.Intn(400),
					Repetitions: rng.Intn(30),
					EaseFactor:  1 + rng.Float64()*3,
				}
				next := alg.Next(s, domain.Incorrect, time.Duration(rng.Intn(60_000))*time.Millisecond, now)
				assert.Equal(t, 0, next.Repetitions)
				assert.GreaterOrEqual(t, next.EaseFactor, MinEaseFactor)
				assert.Equal(t, 1, next.Interval)
				assert.Equal(t, now.Add(24*time.Hour), next.DueDate)
			}
		})
	}
}

func TestCorrectKeepsEaseFloor(t *testing.T) {
	s := domain.Schedule{Interval: 10, Repetitions: 4, EaseFactor: MinEaseFactor}
	for _, alg := range []Algorithm{SM2{}, SM17{}} {
		next := alg.Next(s, domain.Correct, 0, now)
		assert.Equal(t, MinEaseFactor, next.EaseFactor, alg.Name())
	}
}

func TestCustomBounds(t *testing.T) {
	settings := Settings{Algorithm: "custom", InitialInterval: 2, EasyInterval: 4, MinInterval: 3, MaxInterval: 20}
	alg := mustCustom(t, settings)

	s := alg.Next(Initial(now), domain.Correct, 0, now)
	assert.Equal(t, 2, s.Interval)

	s = alg.Next(s, domain.Correct, 0, now)
	assert.Equal(t, 4, s.Interval)

	long := domain.Schedule{Interval: 15, Repetitions: 5, EaseFactor: 2.5}
	assert.Equal(t, 20, alg.Next(long, domain.Correct, 0, now).Interval)

	short := domain.Schedule{Interval: 1, Repetitions: 5, EaseFactor: 1.3}
	assert.Equal(t, 3, alg.Next(short, domain.Correct, 0, now).Interval)

	failed := alg.Next(long, domain.Incorrect, 0, now)
	assert.Equal(t, 3, failed.Interval)
	assert.Equal(t, now.Add(3*24*time.Hour), failed.DueDate)
}

func TestNextIsPure(t *testing.T) {
	s := domain.Schedule{Interval: 6, Repetitions: 2, EaseFactor: 2.5}
	a := SM17{}.Next(s, domain.Correct, 4*time.Second, now)
	b := SM17{}.Next(s, domain.Correct, 4*time.Second, now)
	assert.Equal(t, a, b)
	assert.Equal(t, 2, s.Repetitions)
}

func mustCustom(t *testing.T, settings Settings) *Custom {
	t.Helper()
	c, err := NewCustom(settings)
	require.NoError(t, err)
	return c
}
