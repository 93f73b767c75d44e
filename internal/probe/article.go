package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/uksgomel/uks_checker/internal/fetcher"
)

// Article is the first matching link on the article listing.
type Article struct {
	Title string
	URL   string
}

// ArticleConfig parameterizes an ArticleProbe.
type ArticleConfig struct {
	ListingURL string
	BaseURL    string
	Pattern    string
	GetTimeout time.Duration
}

// ArticleProbe returns the first article link in document order.
type ArticleProbe struct {
	fetcher fetcher.Fetcher
	cfg     ArticleConfig
	base    *url.URL
	pattern *regexp.Regexp
}

func NewArticleProbe(f fetcher.Fetcher, cfg ArticleConfig) (*ArticleProbe, error) {
	if f == nil {
		return nil, errors.New("fetcher is required")
	}
	base, err := parseBase(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	pattern, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compile article pattern: %w", err)
	}
	return &ArticleProbe{fetcher: f, cfg: cfg, base: base, pattern: pattern}, nil
}

// Latest returns the first link whose raw href matches the pattern.
// A page without a matching link yields ok == false and no error.
func (p *ArticleProbe) Latest(ctx context.Context) (Article, bool, error) {
	doc, err := fetchDocument(ctx, p.fetcher, p.cfg.ListingURL, p.cfg.GetTimeout)
	if err != nil {
		return Article{}, false, err
	}

	var (
		found      Article
		ok         bool
		resolveErr error
	)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !p.pattern.MatchString(href) {
			return true
		}
		abs, err := resolve(p.base, href)
		if err != nil {
			resolveErr = err
			return true
		}
		found = Article{Title: strings.TrimSpace(s.Text()), URL: abs}
		ok = true
		return false
	})
	if !ok && resolveErr != nil {
		return Article{}, false, fmt.Errorf("resolve article link: %w", resolveErr)
	}
	return found, ok, nil
}
