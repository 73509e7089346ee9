package generation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// embedPlan is how a provider wants a long text list split into requests
// and how often a failed request may be repeated.
type embedPlan struct {
	batchSize int
	pause     time.Duration
	retries   int
	backoff   time.Duration
	retryable func(error) bool
}

// transientError marks a provider failure that is worth another attempt.
type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var t transientError
	return errors.As(err, &t)
}

type embedCall func(ctx context.Context, batch []string) ([][]float32, error)

// run embeds texts batch by batch and returns the vectors in input order.
func (p embedPlan) run(ctx context.Context, texts []string, call embedCall) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	size := p.batchSize
	if size <= 0 {
		size = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		if start > 0 && !waitOrCancel(ctx, p.pause) {
			return nil, ctx.Err()
		}
		batch := texts[start:min(start+size, len(texts))]
		got, err := p.attempt(ctx, batch, call)
		if err != nil {
			return nil, err
		}
		if len(got) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(got), len(batch))
		}
		vectors = append(vectors, got...)
	}
	return vectors, nil
}

func (p embedPlan) attempt(ctx context.Context, batch []string, call embedCall) ([][]float32, error) {
	for n := 0; ; n++ {
		got, err := call(ctx, batch)
		if err == nil {
			return got, nil
		}
		if n >= p.retries || p.retryable == nil || !p.retryable(err) {
			return nil, err
		}
		if !waitOrCancel(ctx, p.backoff) {
			return nil, ctx.Err()
		}
	}
}

func waitOrCancel(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
