// Package httpfetch retrieves archived logs over HTTP.
//
// Requests are throttled by a token bucket and bounded by a per-request
// timeout and a response size cap. Failures are reported as
// *domain.FetchError; timeouts, 429 and 5xx responses are marked
// temporary so the caller may retry them.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Ensure Fetcher implements the interface.
var _ driven.Fetcher = (*Fetcher)(nil)

const userAgent = "chatlogs-archive-fetcher"

// errTooLarge is wrapped when a body exceeds the size cap.
var errTooLarge = errors.New("response body exceeds size limit")

// Fetcher is an HTTP implementation of driven.Fetcher.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	maxBytes int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// New creates a fetcher from the fetch settings. A non-positive rate
// disables throttling.
func New(cfg domain.FetchSettings, opts ...Option) *Fetcher {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	f := &Fetcher{
		client:   &http.Client{},
		limiter:  rate.NewLimiter(limit, 1),
		timeout:  cfg.Timeout,
		maxBytes: cfg.MaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the body at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &domain.FetchError{URL: url, Err: err, Temporary: isTimeout(err)}
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: url, Err: err, Temporary: isTimeout(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Temporary:  isTemporaryStatus(resp.StatusCode),
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, &domain.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Temporary:  isTimeout(err),
			Err:        err,
		}
	}
	return body, nil
}

func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(resp.Body)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", errTooLarge, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", errTooLarge, f.maxBytes)
	}
	return body, nil
}

func isTemporaryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
