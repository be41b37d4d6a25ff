package query

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// retry runs op until it succeeds, ShouldRetry rejects the error or the
// retries are used up. Delays follow RetryDelay * 2^n capped at MaxRetryDelay.
// It returns the number of failed attempts alongside the outcome.
func (c *Client) retry(ctx context.Context, key string, retries int, op func(context.Context) (any, error)) (any, int, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.opts.MaxRetryDelay
	b.MaxElapsedTime = 0
	b.Reset()

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(retries, 0))), ctx)

	var (
		data     any
		failures int
	)
	err := backoff.RetryNotify(func() error {
		v, err := op(ctx)
		if err != nil {
			failures++
			if !c.opts.ShouldRetry(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		data = v
		return nil
	}, policy, func(err error, wait time.Duration) {
		c.logger.Debug("retrying",
			zap.String("key", key),
			zap.Int("failures", failures),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	})
	return data, failures, err
}
