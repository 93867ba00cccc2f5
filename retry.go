package volt

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// newRetryClient returns the retrying client for one logical request. The
// backoff state lives in the returned client, so it must not be shared
// between requests.
func (c *Client) newRetryClient() *retryablehttp.Client {
	logger := c.logger
	m := c.metrics
	return &retryablehttp.Client{
		HTTPClient:   c.httpClient,
		Logger:       retryLogger{s: logger.Sugar()},
		RetryWaitMin: c.retryWaitMin,
		RetryWaitMax: c.retryWaitMax,
		RetryMax:     c.maxRetries,
		CheckRetry:   checkRetry,
		Backoff:      monotoneBackoff(),
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
		RequestLogHook: func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt == 0 {
				return
			}
			m.retried(req.Method)
			logger.Debug("retrying request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("attempt", attempt+1))
		},
	}
}

// checkRetry retries transport failures, 429 and 5xx. Every other status is
// final after one attempt.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// backoff returns the wait before retry number attempt (0-based).
//
// The wait is drawn from [base*2^attempt, base*2^(attempt+1)] and then capped
// at max, so consecutive waits never decrease. A Retry-After header on a 429
// response raises the wait up to max; [monotoneBackoff] carries that raise
// into later attempts.
func backoff(base, max time.Duration, attempt int, resp *http.Response) time.Duration {
	if base <= 0 {
		base = time.Millisecond
	}
	wait := max
	if attempt < 32 {
		lo := base << attempt
		if lo > 0 && lo < max {
			wait = lo + rand.N(lo+1)
		}
	}
	if wait > max {
		wait = max
	}

	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if ra, ok := retryAfter(resp.Header.Get("Retry-After")); ok && ra > wait {
			wait = min(ra, max)
		}
	}
	return wait
}

// monotoneBackoff wraps backoff with a floor: once a Retry-After has raised a
// wait, later waits for the same request never drop below it.
func monotoneBackoff() retryablehttp.Backoff {
	var floor time.Duration
	return func(base, limit time.Duration, attempt int, resp *http.Response) time.Duration {
		wait := max(backoff(base, limit, attempt, resp), min(floor, limit))
		floor = wait
		return wait
	}
}

// retryAfter parses a Retry-After header in either delta-seconds or
// HTTP-date form.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// retryLogger adapts zap to retryablehttp.LeveledLogger. Failed attempts are
// reported at warn level since the transport may still succeed.
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}
