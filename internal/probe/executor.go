package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds the wait for response headers.
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent identifies probe traffic to the target.
	DefaultUserAgent = "AWS-Synthetics-Canary"
)

// Executor performs single, bounded HTTPS POST probes. It is safe for
// concurrent use; executions share only the underlying connection pool.
type Executor struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the per-probe timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(e *Executor) {
		if ua != "" {
			e.userAgent = ua
		}
	}
}

// WithTransport replaces the round tripper, e.g. to trust a test certificate.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Executor) {
		if rt != nil {
			e.client.Transport = rt
		}
	}
}

// NewExecutor returns an Executor with a 10s timeout and the default
// User-Agent unless overridden by opts.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		client: &http.Client{
			Transport: newTransport(),
			// A redirect is an outcome, not something to chase.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the configured per-probe timeout.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// newTransport carries no dial, TLS or header timeouts of its own: the
// request context deadline is the only timer.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2: true,
		MaxIdleConns:      100,
		IdleConnTimeout:   90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// Execute sends exactly one POST of r.Body to r.URL and classifies the
// result. Failures are returned as data; Execute never retries.
func (e *Executor) Execute(ctx context.Context, r Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return transportFailure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	req.ContentLength = int64(len(r.Body))

	// Do returns once, with whichever of response, transport error or
	// deadline came first; cancel above stops the timer on every path.
	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return timeoutFailure()
		}
		return transportFailure(err)
	}
	resp.Body.Close()

	return Classify(resp.StatusCode)
}
