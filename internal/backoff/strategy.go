// Package backoff computes retry delays.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Params bounds a delay computation.
type Params struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the fraction of the delay added at random, clamped to [0, 1].
	Jitter float64
}

// Strategy maps a zero-based attempt number to a delay.
type Strategy interface {
	Delay(attempt int, p Params) time.Duration
}

// Exponential grows the delay by Multiplier per attempt and adds uniform jitter.
type Exponential struct{}

func (Exponential) Delay(attempt int, p Params) time.Duration {
	attempt = clampAttempt(attempt, 30)

	delay := time.Duration(float64(p.Initial) * math.Pow(p.Multiplier, float64(attempt)))
	if delay < 0 || delay > p.Max {
		delay = p.Max
	}

	if jitter := clampJitter(p.Jitter); jitter > 0 {
		delay += time.Duration(float64(delay) * jitter * rand.Float64())
		if delay > p.Max {
			delay = p.Max
		}
	}
	return delay
}

// Decorrelated picks a delay uniformly between Initial and Initial*3^attempt,
// capped at Max. Multiplier and Jitter are ignored.
type Decorrelated struct{}

func (Decorrelated) Delay(attempt int, p Params) time.Duration {
	if attempt <= 0 {
		return p.Initial
	}
	attempt = clampAttempt(attempt, 10)

	base := float64(p.Initial)
	upper := base * math.Pow(3, float64(attempt))
	if upper > float64(p.Max) || upper < 0 {
		upper = float64(p.Max)
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > p.Max {
		delay = p.Max
	}
	return delay
}

// ByName returns the strategy called "exponential" or "decorrelated".
func ByName(name string) (Strategy, bool) {
	switch name {
	case "exponential", "":
		return Exponential{}, true
	case "decorrelated":
		return Decorrelated{}, true
	default:
		return nil, false
	}
}

func clampAttempt(attempt, limit int) int {
	if attempt < 0 {
		return 0
	}
	if attempt > limit {
		return limit
	}
	return attempt
}

func clampJitter(jitter float64) float64 {
	return math.Min(math.Max(jitter, 0), 1)
}
