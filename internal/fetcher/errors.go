package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// TransientError is a failure worth retrying on the next cycle: network errors,
// timeouts, and 429/5xx responses that outlived the retry budget.
type TransientError struct {
	URL string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient fetch error for %s: %v", e.URL, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// BodyTooLargeError means the response body exceeded the read ceiling.
// Size is the advertised Content-Length, or -1 when the server did not send one.
type BodyTooLargeError struct {
	URL   string
	Limit int64
	Size  int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("body of %s exceeds %d bytes", e.URL, e.Limit)
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsNotFound reports whether err carries a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
