package txcmd

import (
	"context"

	"github.com/cenkalti/backoff/v5"
)

// RunWithRetry calls f until it succeeds, fails with an error that IsRetryable rejects or the policy gives up.
// Without a policy f is called once.
func RunWithRetry(ctx context.Context, logger ILogger, policy []backoff.RetryOption, f func() error) error {
	if len(policy) == 0 {
		return f()
	}

	if logger == nil {
		logger = NopLogger{}
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := f()
		if err == nil {
			return struct{}{}, nil
		}

		if IsRetryable(err) {
			logger.Warningf(ctx, "transaction attempt %d failed, retrying: %v", attempt, err)
			return struct{}{}, err
		}

		return struct{}{}, backoff.Permanent(err)
	}, policy...)

	return err
}
