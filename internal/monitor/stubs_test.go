package monitor

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uksgomel/uks_checker/internal/cache"
	"github.com/uksgomel/uks_checker/internal/fetcher"
	"github.com/uksgomel/uks_checker/internal/probe"
	"github.com/uksgomel/uks_checker/internal/repository"
)

const (
	docURL  = "https://uks.example/f/free_flats_20230115.pdf"
	docName = "free_flats_20230115.pdf"
	pageURL = "https://uks.example/stranica-1"
)

type stubDocuments struct {
	mu      sync.Mutex
	c       probe.Candidate
	ok      bool
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *stubDocuments) Latest(ctx context.Context) (probe.Candidate, bool, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c, s.ok, s.err
}

type stubArticles struct {
	mu  sync.Mutex
	a   probe.Article
	ok  bool
	err error
}

func (s *stubArticles) Latest(context.Context) (probe.Article, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a, s.ok, s.err
}

func (s *stubArticles) set(title, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a, s.ok, s.err = probe.Article{Title: title, URL: url}, true, nil
}

type stubPage struct {
	mu   sync.Mutex
	hash string
	err  error
}

func (s *stubPage) Fingerprint(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hash, s.err
}

func (s *stubPage) URL() string { return pageURL }

// stubFetcher serves document downloads.
type stubFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	gets   int
}

func (s *stubFetcher) Get(_ context.Context, url string, _ time.Duration) (*fetcher.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	body, ok := s.bodies[url]
	if !ok {
		return nil, &fetcher.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return &fetcher.Response{StatusCode: http.StatusOK, Body: body, URL: url}, nil
}

func (s *stubFetcher) Head(context.Context, string, time.Duration) (int, error) {
	return http.StatusOK, nil
}

func (s *stubFetcher) serve(url string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[url] = body
}

type dispatched struct {
	kind  string
	name  string
	url   string
	size  int64
	limit int64
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []dispatched
	err  error
}

func (f *fakeDispatcher) record(d dispatched) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, d)
	return nil
}

func (f *fakeDispatcher) NewDocument(_ context.Context, name string, data []byte) error {
	return f.record(dispatched{kind: "document", name: name, size: int64(len(data))})
}

func (f *fakeDispatcher) DocumentOversize(_ context.Context, name, url string, size, limit int64) error {
	return f.record(dispatched{kind: "oversize", name: name, url: url, size: size, limit: limit})
}

func (f *fakeDispatcher) NewArticle(_ context.Context, title, url string) error {
	return f.record(dispatched{kind: "article", name: title, url: url})
}

func (f *fakeDispatcher) PageChanged(_ context.Context, url string) error {
	return f.record(dispatched{kind: "page", url: url})
}

func (f *fakeDispatcher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Notify(err error, _ string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

type harness struct {
	detector *Detector
	repo     repository.Repository
	store    *cache.Store
	docs     *stubDocuments
	articles *stubArticles
	page     *stubPage
	fetcher  *stubFetcher
	dispatch *fakeDispatcher
	reporter *recordingReporter
	dir      string
}

func newHarness(t *testing.T, maxAttachment int64) *harness {
	t.Helper()
	dir := t.TempDir()

	repo, err := repository.NewJSONRepository(filepath.Join(dir, "last.json"))
	require.NoError(t, err)
	store, err := cache.NewStore(repository.State{}, repo)
	require.NoError(t, err)

	h := &harness{
		repo:     repo,
		store:    store,
		docs:     &stubDocuments{c: probe.Candidate{Name: docName, URL: docURL}, ok: true},
		articles: &stubArticles{},
		page:     &stubPage{},
		fetcher:  &stubFetcher{bodies: map[string][]byte{}, errs: map[string]error{}},
		dispatch: &fakeDispatcher{},
		reporter: &recordingReporter{},
		dir:      dir,
	}
	h.detector, err = New(Deps{
		Store:      store,
		Documents:  h.docs,
		Articles:   h.articles,
		Page:       h.page,
		Fetcher:    h.fetcher,
		Dispatcher: h.dispatch,
		Reporter:   h.reporter,
	}, Options{
		DownloadTimeout:    time.Second,
		MaxAttachmentBytes: maxAttachment,
		DownloadsDir:       filepath.Join(dir, "downloads"),
	})
	require.NoError(t, err)
	return h
}

// persisted reads the state file straight from disk.
func (h *harness) persisted(t *testing.T) repository.State {
	t.Helper()
	st, err := h.repo.Load(context.Background())
	require.NoError(t, err)
	return *st
}

var errTransport = errors.New("telegram unavailable")
