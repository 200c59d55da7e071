package llm

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/openai/openai-go"
)

const maxRetries = 2

var backoffSchedule = [maxRetries]time.Duration{1 * time.Second, 2 * time.Second}

// transient reports whether an upstream failure is worth retrying: rate
// limits, provider 5xx and network-level errors. Context expiry and other
// 4xx are not.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 429 || apierr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Connection resets and similar transport failures arrive as plain
	// errors; treat unrecognized ones as transient so the schedule applies.
	return true
}

// badRequest reports a non-retryable provider rejection.
func badRequest(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode >= 400 && apierr.StatusCode < 500 && apierr.StatusCode != 429
	}
	return false
}

// sleepBackoff waits for the attempt's backoff slot unless the context ends
// first.
func sleepBackoff(ctx context.Context, attempt int) error {
	if attempt >= maxRetries {
		return ctx.Err()
	}
	timer := time.NewTimer(backoffSchedule[attempt])
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
