package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/uksgomel/uks_checker/internal/logger"
)

// Fetcher retrieves remote resources with a bounded timeout per call.
type Fetcher interface {
	Get(ctx context.Context, url string, timeout time.Duration) (*Response, error)
	Head(ctx context.Context, url string, timeout time.Duration) (int, error)
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
	URL         string
}

// Config controls request identity, retry and body limits.
type Config struct {
	UserAgent      string
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxBodyBytes   int64
}

// HTTPFetcher implements Fetcher on net/http with exponential backoff retries
// for transport errors, 429 and 5xx responses.
type HTTPFetcher struct {
	client *http.Client
	cfg    Config
}

// New builds an HTTPFetcher. A nil client falls back to a fresh http.Client;
// per-call timeouts are applied through the request context.
func New(client *http.Client, cfg Config) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &HTTPFetcher{client: client, cfg: cfg}
}

// Get issues a GET and returns the full body of a 2xx response.
// Non-2xx statuses come back as *StatusError, or as *TransientError when the
// status is 429/5xx and retries are exhausted.
func (f *HTTPFetcher) Get(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	var out *Response
	err := f.retry(ctx, url, func() error {
		resp, err := f.getOnce(ctx, url, timeout)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, f.classify(ctx, url, err)
	}
	return out, nil
}

// Head issues a HEAD and returns the final status code after redirects.
// Any HTTP status is a successful call; only transport failures are errors.
func (f *HTTPFetcher) Head(ctx context.Context, url string, timeout time.Duration) (int, error) {
	var status int
	err := f.retry(ctx, url, func() error {
		code, err := f.headOnce(ctx, url, timeout)
		if err != nil {
			return err
		}
		if retryableStatus(code) {
			status = code
			return &StatusError{URL: url, StatusCode: code}
		}
		status = code
		return nil
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return status, nil
		}
		return 0, f.classify(ctx, url, err)
	}
	return status, nil
}

func (f *HTTPFetcher) getOnce(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	f.decorate(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		se := &StatusError{URL: url, StatusCode: resp.StatusCode}
		if retryableStatus(resp.StatusCode) {
			return nil, se
		}
		return nil, backoff.Permanent(se)
	}

	limit := f.cfg.MaxBodyBytes
	if limit > 0 && resp.ContentLength > limit {
		return nil, backoff.Permanent(&BodyTooLargeError{URL: url, Limit: limit, Size: resp.ContentLength})
	}

	var rd io.Reader = resp.Body
	if limit > 0 {
		rd = io.LimitReader(resp.Body, limit+1)
	}
	body, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, backoff.Permanent(&BodyTooLargeError{URL: url, Limit: limit, Size: -1})
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		URL:         resp.Request.URL.String(),
	}, nil
}

func (f *HTTPFetcher) headOnce(ctx context.Context, url string, timeout time.Duration) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, nil)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	f.decorate(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (f *HTTPFetcher) decorate(req *http.Request) {
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
}

func (f *HTTPFetcher) retry(ctx context.Context, url string, op backoff.Operation) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.InitialBackoff
	b.MaxInterval = f.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	if b.InitialInterval <= 0 {
		b.InitialInterval = backoff.DefaultInitialInterval
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.cfg.MaxRetries)), ctx)
	return backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		logger.WithComponent("fetcher").Debugf("retrying %s in %v: %v", url, wait, err)
	})
}

// classify maps the last attempt's error onto the package error types.
func (f *HTTPFetcher) classify(ctx context.Context, url string, err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		if retryableStatus(se.StatusCode) {
			return &TransientError{URL: url, Err: se}
		}
		return se
	}
	var tooLarge *BodyTooLargeError
	if errors.As(err, &tooLarge) {
		return tooLarge
	}
	if ctx.Err() != nil {
		return &TransientError{URL: url, Err: ctx.Err()}
	}
	return &TransientError{URL: url, Err: err}
}
