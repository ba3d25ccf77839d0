package clustersynth

import (
	"context"
	"strings"
	"time"
)

// retryDelays is the linear backoff schedule of §4.F step 3: 1s, 2s, 3s.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 3 * time.Second}

// withRetry runs fn, retrying up to len(retryDelays) times when fn's error
// looks like a "timeout" apiserver failure. Any other error aborts
// immediately (§4.F: "any other error aborts job creation with an
// internal-server error").
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for _, delay := range append([]time.Duration{0}, retryDelays...) {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !isTimeout(err) {
			return err
		}
	}
	return err
}

func isTimeout(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "timeout")
}
