package util

import (
	"math/rand"
	"time"
)

// Backoff returns an exponential delay for the given attempt (1-based), capped at max,
// with up to 50% random jitter subtracted.
func Backoff(min, max time.Duration, attempt int) time.Duration {
	exp := ExpBackoff(min, max, attempt)
	if exp < 2 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(int64(exp)/2))
}

// ExpBackoff is Backoff without jitter.
func ExpBackoff(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := min
	for i := 1; i < attempt; i++ {
		exp *= 2
		if exp >= max || exp <= 0 {
			return max
		}
	}
	if exp > max {
		return max
	}
	return exp
}
