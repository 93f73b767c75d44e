// Package probe extracts a single candidate or fingerprint from one monitored
// page. Probes are read-only: they never look at persisted state.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/uksgomel/uks_checker/internal/fetcher"
)

// Kind names a monitored resource.
type Kind string

const (
	KindDocuments Kind = "documents"
	KindArticles  Kind = "articles"
	KindPage      Kind = "page"
)

// ParseKind maps a textual kind onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDocuments, KindArticles, KindPage:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown probe kind %q", s)
	}
}

func fetchDocument(ctx context.Context, f fetcher.Fetcher, pageURL string, timeout time.Duration) (*goquery.Document, error) {
	resp, err := f.Get(ctx, pageURL, timeout)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	return parseDocument(pageURL, resp.Body)
}

func parseDocument(pageURL string, body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

func parseBase(raw string) (*url.URL, error) {
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", raw)
	}
	return base, nil
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
