package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultAttempts = 3
	defaultDelay    = 200 * time.Millisecond
	defaultMaxDelay = 2 * time.Second
)

type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MaxDelay: defaultMaxDelay,
	}
}

func (rc RetryConfig) toOptions(ctx context.Context) []retry.Option {
	attempts := rc.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(rc.Delay),
		retry.MaxDelay(rc.MaxDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	}
}

// RetryingProvider retries transient failures of the wrapped provider.
type RetryingProvider struct {
	next   EmbeddingProvider
	config RetryConfig
}

func WithRetry(next EmbeddingProvider, config RetryConfig) EmbeddingProvider {
	return &RetryingProvider{next: next, config: config}
}

func (p *RetryingProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	return retry.DoWithData(func() (*EmbeddingResponse, error) {
		return p.next.Generate(ctx, text, taskType)
	}, p.config.toOptions(ctx)...)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
