package api

import (
	"time"

	"github.com/OneOfOne/cmap/stringcmap"
)

// rateLimiter counts requests per client address. Every cooldown tick the
// counts drop by the threshold, so a client averages threshold requests per
// cooldown while short bursts still pass.
type rateLimiter struct {
	threshold int
	counts    *stringcmap.CMap
}

func newRateLimiter(threshold int, cooldown time.Duration) *rateLimiter {
	limiter := &rateLimiter{
		threshold: threshold,
		counts:    stringcmap.New(),
	}

	go limiter.decay(cooldown)

	return limiter
}

func (limiter *rateLimiter) decay(cooldown time.Duration) {
	for range time.Tick(cooldown) {
		limiter.counts.ForEach(func(ip string, val interface{}) bool {
			i, ok := val.(int)

			if !ok {
				return true
			}

			i -= limiter.threshold

			if i <= 0 {
				limiter.counts.Delete(ip)
			} else {
				limiter.counts.Set(ip, i)
			}

			return true
		})
	}
}

// take registers a request from ip and reports whether it stays within the
// limit.
func (limiter *rateLimiter) take(ip string) bool {
	count := 1

	if item := limiter.counts.Get(ip); item != nil {
		if i, ok := item.(int); ok {
			count = i + 1
		}
	}

	limiter.counts.Set(ip, count)

	return count <= limiter.threshold
}
