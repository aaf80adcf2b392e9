package executor

import (
	"math/rand"
	"time"
)

// backoffDelay computes the bounded exponential delay for the given attempt
// (1-based), then applies half jitter so a crowd of tasks retrying against
// the same sale does not synchronize.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}
	half := int64(d) / 2
	if half <= 0 {
		return d
	}
	return time.Duration(half + rand.Int63n(half))
}
