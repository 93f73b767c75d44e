package main

import (
	"fmt"
	"net/http"

	"github.com/uksgomel/uks_checker/internal/cache"
	"github.com/uksgomel/uks_checker/internal/config"
	"github.com/uksgomel/uks_checker/internal/fetcher"
	"github.com/uksgomel/uks_checker/internal/monitor"
	"github.com/uksgomel/uks_checker/internal/probe"
)

// newDetector wires the fetcher and the three probes into a Detector.
// reporter may be nil.
func newDetector(cfg *config.Config, store cache.StateStore, dispatcher monitor.Dispatcher, reporter monitor.Reporter) (*monitor.Detector, error) {
	f := fetcher.New(&http.Client{}, fetcher.Config{
		UserAgent:      cfg.Fetch.UserAgent,
		MaxRetries:     cfg.Fetch.MaxRetries,
		InitialBackoff: cfg.Fetch.InitialBackoff,
		MaxBackoff:     cfg.Fetch.MaxBackoff,
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
	})

	documents, err := probe.NewDocumentProbe(f, probe.DocumentConfig{
		ListingURL:  cfg.Sources.DocumentsURL,
		BaseURL:     cfg.Sources.BaseURL,
		Pattern:     cfg.Sources.DocumentPattern,
		CheckLinks:  cfg.Sources.CheckDocumentLinks,
		GetTimeout:  cfg.Fetch.GetTimeout,
		HeadTimeout: cfg.Fetch.HeadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("document probe: %w", err)
	}

	articles, err := probe.NewArticleProbe(f, probe.ArticleConfig{
		ListingURL: cfg.Sources.ArticlesURL,
		BaseURL:    cfg.Sources.BaseURL,
		Pattern:    cfg.Sources.ArticlePattern,
		GetTimeout: cfg.Fetch.GetTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("article probe: %w", err)
	}

	page, err := probe.NewPageProbe(f, cfg.Sources.PageURL, cfg.Fetch.GetTimeout)
	if err != nil {
		return nil, fmt.Errorf("page probe: %w", err)
	}

	return monitor.New(monitor.Deps{
		Store:      store,
		Documents:  documents,
		Articles:   articles,
		Page:       page,
		Fetcher:    f,
		Dispatcher: dispatcher,
		Reporter:   reporter,
	}, monitor.Options{
		DownloadTimeout:    cfg.Fetch.DownloadTimeout,
		MaxAttachmentBytes: cfg.Notify.MaxAttachmentBytes,
		DownloadsDir:       cfg.Data.DownloadsDir,
	})
}
