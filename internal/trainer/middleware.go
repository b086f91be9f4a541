package trainer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hyperband/internal/prom"
	"github.com/determined-ai/hyperband/pkg/model"
	"github.com/determined-ai/hyperband/pkg/searcher"
)

// RetryConfig configures WithRetry.
type RetryConfig struct {
	MaxRetries      uint64         `json:"max_retries"`
	InitialInterval model.Duration `json:"initial_interval"`
	MaxInterval     model.Duration `json:"max_interval"`
}

// DefaultRetryConfig returns a RetryConfig that never retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: model.Duration(time.Second),
		MaxInterval:     model.Duration(time.Minute),
	}
}

// WithRetry retries failed trainer calls with exponential backoff. Context errors are never
// retried. The last error is returned unchanged when retries run out.
func WithRetry(t searcher.Trainer, config RetryConfig) searcher.Trainer {
	if config.MaxRetries == 0 {
		return t
	}
	return searcher.TrainerFunc(func(
		ctx context.Context, req searcher.TrainRequest,
	) ([]searcher.TrainResult, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Duration(config.InitialInterval)
		b.MaxInterval = time.Duration(config.MaxInterval)
		b.MaxElapsedTime = 0

		var results []searcher.TrainResult
		op := func() error {
			var err error
			results, err = t.Train(ctx, req)
			if err != nil && ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		notify := func(err error, wait time.Duration) {
			log.WithError(err).WithField("iteration", req.Iteration).
				Warnf("trainer call failed, retrying in %s", wait)
		}
		err := backoff.RetryNotify(op,
			backoff.WithContext(backoff.WithMaxRetries(b, config.MaxRetries), ctx), notify)
		if err != nil {
			return nil, err
		}
		return results, nil
	})
}

// WithTimeout bounds every trainer call by timeout. A zero timeout disables the bound.
func WithTimeout(t searcher.Trainer, timeout time.Duration) searcher.Trainer {
	if timeout <= 0 {
		return t
	}
	return searcher.TrainerFunc(func(
		ctx context.Context, req searcher.TrainRequest,
	) ([]searcher.TrainResult, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		results, err := t.Train(ctx, req)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(err, "trainer call exceeded %s", timeout)
		}
		return results, err
	})
}

// WithMetrics records the duration and failures of every trainer call.
func WithMetrics(t searcher.Trainer) searcher.Trainer {
	return searcher.TrainerFunc(func(
		ctx context.Context, req searcher.TrainRequest,
	) (results []searcher.TrainResult, err error) {
		defer prom.Time(prom.TrainerSeconds)()
		defer prom.ErrCount(prom.TrainerErrors, &err)()
		return t.Train(ctx, req)
	})
}
