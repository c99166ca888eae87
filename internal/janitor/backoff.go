package janitor

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoff returns the delay before retrying a task that failed attempt+1 times in a row.
// attempt=0 => base, attempt=1 => 2*base, capped at max, plus up to 250ms jitter.
func backoff(base, max time.Duration, attempt int) time.Duration {
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))

	if delay > max || delay <= 0 {
		delay = max
	}

	return delay + time.Duration(rand.IntN(250))*time.Millisecond
}
