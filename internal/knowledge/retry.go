package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// UnclassifiedLabel is the placeholder returned when every attempt failed.
const UnclassifiedLabel = "Unclassified"

// RetryClassifier retries transient failures a fixed number of times with a
// fixed delay. On exhaustion it returns a degraded placeholder instead of an error.
type RetryClassifier struct {
	inner    Classifier
	attempts int
	delay    time.Duration
}

func NewRetryClassifier(inner Classifier, attempts int, delay time.Duration) *RetryClassifier {
	if attempts < 1 {
		attempts = 3
	}
	return &RetryClassifier{inner: inner, attempts: attempts, delay: delay}
}

func (r *RetryClassifier) ClassifyClass(ctx context.Context, class string) (Classification, error) {
	return r.do(ctx, class, func() (Classification, error) {
		return r.inner.ClassifyClass(ctx, class)
	})
}

func (r *RetryClassifier) ClassifyFunction(ctx context.Context, class, function, domain string) (Classification, error) {
	return r.do(ctx, class+"::"+function, func() (Classification, error) {
		return r.inner.ClassifyFunction(ctx, class, function, domain)
	})
}

func (r *RetryClassifier) do(ctx context.Context, subject string, fn func() (Classification, error)) (Classification, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		c, err := fn()
		if err == nil {
			return c, nil
		}
		if errors.Is(err, ErrCachePrecondition) || ctx.Err() != nil {
			return Classification{}, err
		}
		lastErr = err
		slog.Warn("classify.retry", "subject", subject, "attempt", attempt, "error", err)

		if attempt < r.attempts && r.delay > 0 {
			select {
			case <-ctx.Done():
				return Classification{}, ctx.Err()
			case <-time.After(r.delay):
			}
		}
	}

	err := fmt.Errorf("%w: %s after %d attempts: %v", ErrClassifierUnavailable, subject, r.attempts, lastErr)
	slog.Error("classify.degraded", "subject", subject, "error", err)
	return Classification{Label: UnclassifiedLabel, Description: err.Error(), Degraded: true}, nil
}
