package orgconn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// Limits configures the rate-limiting and retry behavior wrapped around a
// Connection. Defaults are conservative: most CRM platforms cap bulk and
// query calls per-org per-minute, and transient network failures are common
// enough on long seed runs to warrant a short backoff rather than aborting
// the whole stage outright.
type Limits struct {
	RequestsPerSecond float64
	Burst             int
	MaxRetries        uint64
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
}

// DefaultLimits returns the Limits used when none are supplied.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerSecond: 10,
		Burst:             5,
		MaxRetries:        4,
		BaseBackoff:       200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
	}
}

// limited wraps a Connection with a token-bucket rate limiter and an
// exponential-backoff retry around every network-facing call. It never
// retries a call that returned successfully with per-record failures in the
// response body — only calls that errored at the transport/connection
// level, per spec.md §7's "uncaught exception...aborts the current stage"
// distinction.
type limited struct {
	inner Connection
	lim   *rate.Limiter
	opts  Limits
}

// WithLimits wraps inner so that every call is rate-limited and retried
// according to opts.
func WithLimits(inner Connection, opts Limits) Connection {
	return &limited{
		inner: inner,
		lim:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		opts:  opts,
	}
}

func (c *limited) backoff() retry.Backoff {
	b := retry.NewExponential(c.opts.BaseBackoff)
	b = retry.WithMaxDuration(c.opts.MaxBackoff, b)
	return retry.WithMaxRetries(c.opts.MaxRetries, b)
}

// call runs fn under the rate limiter and retry policy, retrying only on
// errors classified as transient (network errors; the inner Connection is
// expected to wrap remaining HTTP-layer errors similarly).
func (c *limited) call(ctx context.Context, fn func(context.Context) error) error {
	if err := c.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var transient interface{ Transient() bool }
	if errors.As(err, &transient) {
		return transient.Transient()
	}
	return false
}

func (c *limited) DescribeGlobal(ctx context.Context) ([]GlobalEntry, error) {
	var out []GlobalEntry
	err := c.call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.DescribeGlobal(ctx)
		return innerErr
	})
	return out, err
}

func (c *limited) Describe(ctx context.Context, objectName string) (*DescribeResult, error) {
	var out *DescribeResult
	err := c.call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.Describe(ctx, objectName)
		return innerErr
	})
	return out, err
}

func (c *limited) Query(ctx context.Context, soql string) (*QueryResult, error) {
	var out *QueryResult
	err := c.call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.Query(ctx, soql)
		return innerErr
	})
	return out, err
}

func (c *limited) QueryMore(ctx context.Context, nextRecordsURL string) (*QueryResult, error) {
	var out *QueryResult
	err := c.call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.QueryMore(ctx, nextRecordsURL)
		return innerErr
	})
	return out, err
}

func (c *limited) Create(ctx context.Context, objectName string, records []map[string]any) ([]WriteOutcome, error) {
	var out []WriteOutcome
	err := c.call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.Create(ctx, objectName, records)
		return innerErr
	})
	return out, err
}

func (c *limited) Update(ctx context.Context, objectName string, records []map[string]any) ([]WriteOutcome, error) {
	var out []WriteOutcome
	err := c.call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.Update(ctx, objectName, records)
		return innerErr
	})
	return out, err
}

func (c *limited) Upsert(ctx context.Context, objectName string, records []map[string]any, externalIDField string) ([]WriteOutcome, error) {
	var out []WriteOutcome
	err := c.call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.Upsert(ctx, objectName, records, externalIDField)
		return innerErr
	})
	return out, err
}

func (c *limited) InstanceURL() string  { return c.inner.InstanceURL() }
func (c *limited) AccessToken() string  { return c.inner.AccessToken() }
func (c *limited) APIVersion() string   { return c.inner.APIVersion() }

func (c *limited) DownloadFile(ctx context.Context, url string) ([]byte, error) {
	var out []byte
	err := c.call(ctx, func(ctx context.Context) error {
		var innerErr error
		out, innerErr = c.inner.DownloadFile(ctx, url)
		return innerErr
	})
	return out, err
}
