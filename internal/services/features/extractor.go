package features

import "math"

// LogReturns computes r_t = ln(p_t / p_{t-1}).
// It returns a slice of length len(prices)-1, or nil if insufficient data.
// Non-positive prices contribute a zero return.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev is the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// RollingVolatility scales the stdev of log returns by sqrt(window).
func RollingVolatility(logReturns []float64, window int) float64 {
	if window <= 0 {
		return 0
	}
	return StdDev(logReturns) * math.Sqrt(float64(window))
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// Ring is a fixed-capacity FIFO buffer; the oldest value is evicted on overflow.
type Ring struct {
	buf   []float64
	start int
	n     int
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]float64, capacity)}
}

func (r *Ring) Push(v float64) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *Ring) Len() int { return r.n }

// Last returns the i-th most recent value (0 is the newest).
func (r *Ring) Last(i int) (float64, bool) {
	if i < 0 || i >= r.n {
		return 0, false
	}
	return r.buf[(r.start+r.n-1-i)%len(r.buf)], true
}

// Values returns the contents oldest first.
func (r *Ring) Values() []float64 {
	out := make([]float64, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
