package queuectl

import (
	"math"
	"time"
)

// BackoffFunc is a callback that returns the delay before a failed job
// becomes eligible again. It is configurable via the SetBackoffFunc
// option on the manager. The base is read from the backoff_base config
// key on every retry; attempt is the attempt count after the failure.
type BackoffFunc func(base float64, attempt int) time.Duration

// exponentialBackoff is the default backoff function. The delay grows
// as base^attempt seconds, with no jitter and no cap.
func exponentialBackoff(base float64, attempt int) time.Duration {
	if attempt <= 0 {
		return time.Duration(0)
	}
	return time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
}
