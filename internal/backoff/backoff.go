// Package backoff provides retry delay strategies for failed jobs.
// Strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"time"
)

// Strategy computes the delay before retry attempt n (1-indexed; attempt 1
// is the first retry after the initial failure). The base delay comes from
// the handler's declared retry delay.
type Strategy interface {
	Delay(base time.Duration, attempt int) time.Duration
}

// Fixed waits the handler's retry delay on every attempt.
type Fixed struct{}

func (Fixed) Delay(base time.Duration, _ int) time.Duration {
	return base
}

// Exponential doubles the delay each attempt, capped at Max.
type Exponential struct {
	Max time.Duration
}

func (e Exponential) Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ForName maps a configured strategy name to its implementation.
// Unknown names fall back to Fixed.
func ForName(name string) Strategy {
	if name == "exponential" {
		return Exponential{Max: 1 * time.Hour}
	}
	return Fixed{}
}
