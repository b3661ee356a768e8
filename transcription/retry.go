package transcription

import (
	"context"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
}

type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return "unexpected status " + http.StatusText(e.StatusCode)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	backoff := time.Duration(float64(p.InitialBackoff) * math.Pow(p.BackoffFactor, float64(attempt-1)))
	if backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	if half := int64(backoff / 2); half > 0 {
		backoff += time.Duration(rand.Int63n(half))
	}
	return backoff
}

// do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are used up.
func (p RetryPolicy) do(ctx context.Context, url string, fn func() ([]byte, error)) ([]byte, error) {
	var (
		body []byte
		err  error
	)

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		body, err = fn()
		if err == nil || !isRetryable(err) {
			return body, err
		}

		logrus.WithFields(logrus.Fields{
			"attempt":     attempt,
			"maxAttempts": p.MaxAttempts,
			"url":         url,
			"error":       err,
		}).Warn("Caption request failed")

		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, errors.Wrapf(err, "giving up after %d attempts", p.MaxAttempts)
}
