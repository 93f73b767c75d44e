package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uksgomel/uks_checker/internal/cache"
	"github.com/uksgomel/uks_checker/internal/config"
	"github.com/uksgomel/uks_checker/internal/monitor"
	"github.com/uksgomel/uks_checker/internal/repository"
)

type nopDispatcher struct{}

func (nopDispatcher) NewDocument(context.Context, string, []byte) error { return nil }
func (nopDispatcher) DocumentOversize(context.Context, string, string, int64, int64) error {
	return nil
}
func (nopDispatcher) NewArticle(context.Context, string, string) error { return nil }
func (nopDispatcher) PageChanged(context.Context, string) error        { return nil }

func testConfig(site string, dir string) *config.Config {
	return &config.Config{
		Data: config.DataConfig{StateFile: filepath.Join(dir, "last.json")},
		Sources: config.SourcesConfig{
			BaseURL:         site,
			DocumentsURL:    site + "/centr-prodazh",
			DocumentPattern: `free_flats_(\d{8})_?\.pdf$`,
			ArticlesURL:     site + "/novosti",
			ArticlePattern:  `^/novosti/\d+`,
			PageURL:         site + "/stranica-1",
		},
		Fetch: config.FetchConfig{
			UserAgent:       "Mozilla/5.0",
			GetTimeout:      time.Second,
			HeadTimeout:     time.Second,
			DownloadTimeout: time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Notify: config.NotifyConfig{MaxAttachmentBytes: 50 << 20},
	}
}

func TestNewDetector_WiresProbesAgainstConfiguredSources(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stranica-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Квартиры</p></body></html>"))
	})
	site := httptest.NewServer(mux)
	defer site.Close()

	dir := t.TempDir()
	cfg := testConfig(site.URL, dir)
	repo, err := repository.NewJSONRepository(cfg.Data.StateFile)
	require.NoError(t, err)
	store, err := cache.NewStore(repository.State{}, repo)
	require.NoError(t, err)

	detector, err := newDetector(cfg, store, nopDispatcher{}, nil)
	require.NoError(t, err)

	out := detector.ProbeStaticPage(context.Background())
	require.NoError(t, out.Err)
	assert.Equal(t, monitor.StatusFirstSeen, out.Status)
	assert.NotNil(t, store.Snapshot().LastPageHash)
}

func TestNewDetector_InvalidPattern(t *testing.T) {
	cfg := testConfig("https://example.com", t.TempDir())
	cfg.Sources.DocumentPattern = "free_flats_("

	_, err := newDetector(cfg, nil, nopDispatcher{}, nil)
	assert.Error(t, err)
}

func TestCreateGraceHttpServer(t *testing.T) {
	srv := createGraceHttpServer(context.Background(), "test", config.ServerConfig{
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     time.Second,
		ShutDownTimeout: time.Second,
	}, gin.New())
	assert.NotNil(t, srv)
}
