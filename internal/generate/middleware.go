package generate

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Middleware decorates a Generator with a cross-cutting concern.
type Middleware func(Generator) Generator

// Wrap applies middlewares left to right: Wrap(g, A, B) yields A(B(g)).
func Wrap(inner Generator, mws ...Middleware) Generator {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			out = mws[i](out)
		}
	}
	return out
}

// Retry retries transient failures up to maxAttempts with exponential backoff
// starting at baseDelay. Permanent failures and unclassified errors return
// immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return func(next Generator) Generator {
		return GeneratorFunc(func(ctx context.Context, content string, req Request) (string, error) {
			var last error
			for attempt := 0; attempt < maxAttempts; attempt++ {
				out, err := next.Generate(ctx, content, req)
				if err == nil {
					return out, nil
				}
				last = err
				if !IsTransient(err) || attempt == maxAttempts-1 {
					break
				}
				timer := time.NewTimer(baseDelay * time.Duration(1<<attempt))
				select {
				case <-ctx.Done():
					timer.Stop()
					return "", ctx.Err()
				case <-timer.C:
				}
			}
			return "", last
		})
	}
}

// RateLimit throttles calls to rps per second with the given burst. A shared
// limiter is created per decorated generator so every worker draws from the
// same bucket. rps <= 0 disables the limiter.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Generator) Generator {
		if rps <= 0 {
			return next
		}
		if burst <= 0 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		return GeneratorFunc(func(ctx context.Context, content string, req Request) (string, error) {
			if err := limiter.Wait(ctx); err != nil {
				return "", err
			}
			return next.Generate(ctx, content, req)
		})
	}
}

// Timeout bounds every call with d. d <= 0 disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Generator) Generator {
		if d <= 0 {
			return next
		}
		return GeneratorFunc(func(ctx context.Context, content string, req Request) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.Generate(ctx, content, req)
		})
	}
}

// Classify wraps any failure in a GenerationError naming the backend.
func Classify(backend string) Middleware {
	return func(next Generator) Generator {
		return GeneratorFunc(func(ctx context.Context, content string, req Request) (string, error) {
			out, err := next.Generate(ctx, content, req)
			if err != nil {
				return "", &GenerationError{Backend: backend, Stage: req.Stage, ID: req.ID, Err: err}
			}
			return out, nil
		})
	}
}

// Logging records every call at debug level and failures at warn level.
func Logging(logger *slog.Logger, backend string) Middleware {
	return func(next Generator) Generator {
		if logger == nil {
			return next
		}
		return GeneratorFunc(func(ctx context.Context, content string, req Request) (string, error) {
			start := time.Now()
			out, err := next.Generate(ctx, content, req)
			attrs := []any{
				"backend", backend,
				"stage", req.Stage,
				"id", req.ID,
				"input_bytes", len(content),
				"duration", time.Since(start),
			}
			if err != nil {
				logger.Warn("generation failed", append(attrs, "error", err)...)
				return "", err
			}
			logger.Debug("generation complete", append(attrs, "output_bytes", len(out))...)
			return out, nil
		})
	}
}
