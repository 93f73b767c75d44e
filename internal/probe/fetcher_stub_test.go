package probe

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/uksgomel/uks_checker/internal/fetcher"
)

// stubFetcher serves canned bodies and HEAD statuses keyed by URL.
type stubFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	heads    map[string]int
	headErrs map[string]error
	headLog  []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages:    map[string]string{},
		heads:    map[string]int{},
		headErrs: map[string]error{},
	}
}

func (s *stubFetcher) Get(_ context.Context, url string, _ time.Duration) (*fetcher.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.pages[url]
	if !ok {
		return nil, &fetcher.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return &fetcher.Response{StatusCode: http.StatusOK, Body: []byte(body), URL: url}, nil
}

func (s *stubFetcher) Head(_ context.Context, url string, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headLog = append(s.headLog, url)
	if err, ok := s.headErrs[url]; ok {
		return 0, err
	}
	if code, ok := s.heads[url]; ok {
		return code, nil
	}
	return http.StatusOK, nil
}

var errConnRefused = errors.New("connection refused")
