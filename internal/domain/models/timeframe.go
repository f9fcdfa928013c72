package models

import (
	"fmt"
	"sort"
	"time"
)

// Timeframe is a candle resolution such as "1m" or "1h".
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
)

// ParseTimeframe accepts any positive Go duration string ("30s", "1m", "4h"); "1d" is also accepted.
func ParseTimeframe(s string) (Timeframe, error) {
	if s == "1d" {
		return Timeframe(s), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return "", fmt.Errorf("invalid timeframe %q: %w", s, err)
	}
	if d < time.Second || d%time.Second != 0 {
		return "", fmt.Errorf("invalid timeframe %q: must be a whole number of seconds", s)
	}
	return Timeframe(s), nil
}

// ParseTimeframes parses a list and rejects duplicates.
func ParseTimeframes(in []string) ([]Timeframe, error) {
	out := make([]Timeframe, 0, len(in))
	seen := make(map[Timeframe]bool, len(in))
	for _, s := range in {
		tf, err := ParseTimeframe(s)
		if err != nil {
			return nil, err
		}
		if seen[tf] {
			return nil, fmt.Errorf("duplicate timeframe %q", s)
		}
		seen[tf] = true
		out = append(out, tf)
	}
	return out, nil
}

// Duration returns the bucket length. Unparseable values yield 0.
func (tf Timeframe) Duration() time.Duration {
	if tf == "1d" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(string(tf))
	if err != nil {
		return 0
	}
	return d
}

// Millis returns the bucket length in milliseconds.
func (tf Timeframe) Millis() int64 { return tf.Duration().Milliseconds() }

// SortLongestFirst returns a copy ordered from the longest to the shortest timeframe.
func SortLongestFirst(tfs []Timeframe) []Timeframe {
	out := append([]Timeframe(nil), tfs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Duration() > out[j].Duration() })
	return out
}

// NormalizeTimeframe parses s, falling back to def when s is empty or invalid.
func NormalizeTimeframe(s string, def Timeframe) Timeframe {
	tf, err := ParseTimeframe(s)
	if err != nil {
		return def
	}
	return tf
}
