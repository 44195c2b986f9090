package mqtt

import (
	"math/rand"
	"time"
)

// delayForAttempt is the pure backoff function: base doubled per failed
// attempt, capped at max. Attempt 0 is the first retry.
func delayForAttempt(attempt uint32, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := uint32(0); i < attempt; i++ {
		if d >= max {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

// withJitter adds up to 10% random jitter so a fleet of bridges sharing
// a broker does not reconnect in lockstep. The result never exceeds max.
func withJitter(d, max time.Duration, rng *rand.Rand) time.Duration {
	if d <= 0 {
		return d
	}
	j := d + time.Duration(rng.Int63n(int64(d)/10+1))
	if j > max {
		return max
	}
	return j
}
