// Package resilience wraps calls to external services with a per-call timeout,
// bounded retry with exponential backoff, and an optional outbound rate limit.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrServiceTimeout is reported when a service call exceeds its deadline.
// It is joined with the calling stage's own error so both can be matched.
var ErrServiceTimeout = errors.New("service call timed out")

// Policy configures how a single logical service call is attempted.
type Policy struct {
	// Timeout bounds each attempt (0 = no per-attempt timeout)
	Timeout time.Duration

	// Attempts is the total number of tries, including the first one
	Attempts uint

	// Delay is the initial backoff between attempts
	Delay time.Duration

	// MaxDelay caps the backoff
	MaxDelay time.Duration

	// RequestsPerSecond throttles outbound calls (0 = unlimited)
	RequestsPerSecond float64
}

// DefaultPolicy returns the policy used when no service settings are configured.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:  30 * time.Second,
		Attempts: 3,
		Delay:    250 * time.Millisecond,
		MaxDelay: 5 * time.Second,
	}
}

// Caller applies a Policy to calls made against one named service.
// A Caller is safe for concurrent use.
type Caller struct {
	name    string
	policy  Policy
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCaller creates a Caller for the named service.
func NewCaller(name string, policy Policy, logger *zap.Logger) *Caller {
	if policy.Attempts == 0 {
		policy.Attempts = 1
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 5 * time.Second
	}

	limit := rate.Inf
	if policy.RequestsPerSecond > 0 {
		limit = rate.Limit(policy.RequestsPerSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Caller{
		name:    name,
		policy:  policy,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Do runs fn until it succeeds, returns a permanent error, or attempts run out.
// Deadline failures are reported wrapped in ErrServiceTimeout.
func (c *Caller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			callCtx := ctx
			if c.policy.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
				defer cancel()
			}

			err := fn(callCtx)
			if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
				// Some clients surface an expired deadline as a transport error
				err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.policy.Attempts),
		retry.Delay(c.policy.Delay),
		retry.MaxDelay(c.policy.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying service call",
				zap.String("service", c.name),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrServiceTimeout, c.name, err)
	}
	return err
}

// Permanent marks err as non-retryable (authentication and validation failures).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return retry.Unrecoverable(err)
}

// IsPermanentStatus reports whether an HTTP status from a service means the
// request itself is wrong (auth or validation), so retrying cannot help.
func IsPermanentStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// IsTimeout reports whether err came from an expired service deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrServiceTimeout)
}
