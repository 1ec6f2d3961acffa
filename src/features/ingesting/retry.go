package ingesting

import (
	"context"
	"time"

	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/features/metrics"
	"github.com/wavecrate/wavecrate/src/music"
)

// attemptsFor maps an error kind to its attempt budget. Validation,
// not-found and consistency failures are deterministic and never retried.
func attemptsFor(policy config.Retry, kind music.ErrorKind) int {
	switch kind {
	case music.KindTransient:
		return policy.TransientAttempts
	case music.KindProcess:
		return policy.ProcessAttempts
	default:
		return 1
	}
}

// backoffDelay returns the exponential delay before the given retry,
// capped at the policy maximum.
func backoffDelay(policy config.Retry, attempt int) time.Duration {
	delay := policy.BaseDelay.Std() << attempt
	if max := policy.MaxDelay.Std(); delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

// withRetry runs fn under the configured retry policy. The attempt budget
// is re-evaluated from the kind of each failure, so an operation that
// flips from transient to validation stops immediately.
func withRetry(ctx context.Context, policy config.Retry, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		kind := music.KindOf(err)
		if attempt+1 >= attemptsFor(policy, kind) {
			return err
		}
		metrics.RetryAttempts.WithLabelValues(kind.String()).Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(policy, attempt)):
		}
	}
}

// withLinkRetry runs fn with the larger link attempt budget. It guards the
// album append that would otherwise orphan an already persisted track, so
// every retryable kind gets the full budget; only deterministic rejections
// stop early.
func withLinkRetry(ctx context.Context, policy config.Retry, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		kind := music.KindOf(err)
		if kind == music.KindValidation || kind == music.KindConsistency {
			return err
		}
		if attempt+1 >= policy.LinkAttempts {
			return err
		}
		metrics.RetryAttempts.WithLabelValues(kind.String()).Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(policy, attempt)):
		}
	}
}
