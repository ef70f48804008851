package backoff

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

// Strategy names the growth curve of a Policy.
type Strategy string

const (
	Fixed          Strategy = "fixed"
	Linear         Strategy = "linear"
	Exponential    Strategy = "exponential"
	ExpEqualJitter Strategy = "exp_equal_jitter"
	ExpFullJitter  Strategy = "exp_full_jitter"
)

// ParseStrategy maps a config string to a Strategy; unknown values become Exponential.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case Fixed:
		return Fixed
	case Linear:
		return Linear
	case ExpEqualJitter:
		return ExpEqualJitter
	case ExpFullJitter:
		return ExpFullJitter
	default:
		return Exponential
	}
}

// Policy computes retry delays capped at Max.
type Policy struct {
	Strategy Strategy
	Base     time.Duration
	Max      time.Duration
	Rand     *rand.Rand
}

// Delay returns the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	ceiling := p.Max
	if ceiling <= 0 {
		ceiling = base
	}
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	switch p.Strategy {
	case Fixed:
		return minDuration(base, ceiling)
	case Linear:
		return minDuration(base*time.Duration(max(1, attempt)), ceiling)
	case ExpEqualJitter:
		d := exponential(base, ceiling, attempt)
		half := d / 2
		return half + time.Duration(rng.Int63n(int64(half)+1))
	case ExpFullJitter:
		d := exponential(base, ceiling, attempt)
		if d <= 0 {
			return 0
		}
		return time.Duration(rng.Int63n(int64(d) + 1))
	default:
		return exponential(base, ceiling, attempt)
	}
}

func exponential(base, ceiling time.Duration, attempt int) time.Duration {
	f := float64(base) * math.Pow(2, float64(attempt))
	if f >= float64(ceiling) || math.IsInf(f, 0) {
		return ceiling
	}
	return time.Duration(f)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
