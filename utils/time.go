package utils

import "time"

// HashRate returns attempts per second over elapsed, or 0 for an empty interval.
func HashRate(attempts uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(attempts) / elapsed.Seconds()
}
