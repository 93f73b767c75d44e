package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/uksgomel/uks_checker/internal/fetcher"
	"github.com/uksgomel/uks_checker/internal/logger"
)

// Accepted layouts for the date embedded in a document filename, in order.
var dateLayouts = []string{"20060102", "02012006"}

var eightDigits = regexp.MustCompile(`\d{8}`)

// Candidate is one document link found on the listing page.
type Candidate struct {
	Name string
	Date time.Time
	URL  string
}

// DocumentConfig parameterizes a DocumentProbe.
type DocumentConfig struct {
	ListingURL  string
	BaseURL     string
	Pattern     string
	CheckLinks  bool
	GetTimeout  time.Duration
	HeadTimeout time.Duration
}

// DocumentProbe finds the newest document linked from a listing page.
type DocumentProbe struct {
	fetcher fetcher.Fetcher
	cfg     DocumentConfig
	base    *url.URL
	pattern *regexp.Regexp
}

// NewDocumentProbe compiles the filename pattern and validates the base URL.
// The whole pattern match is the filename; the first capture group, when
// present, holds the eight-digit date.
func NewDocumentProbe(f fetcher.Fetcher, cfg DocumentConfig) (*DocumentProbe, error) {
	if f == nil {
		return nil, errors.New("fetcher is required")
	}
	base, err := parseBase(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	pattern, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compile document pattern: %w", err)
	}
	return &DocumentProbe{fetcher: f, cfg: cfg, base: base, pattern: pattern}, nil
}

// Latest returns the candidate with the greatest date. Among candidates with
// the same date the first one in document order wins. ok is false when no
// candidate survives filtering.
func (p *DocumentProbe) Latest(ctx context.Context) (Candidate, bool, error) {
	doc, err := fetchDocument(ctx, p.fetcher, p.cfg.ListingURL, p.cfg.GetTimeout)
	if err != nil {
		return Candidate{}, false, err
	}

	var best Candidate
	found := false
	for _, c := range p.candidates(doc) {
		if p.cfg.CheckLinks && !p.alive(ctx, c) {
			continue
		}
		if !found || c.Date.After(best.Date) {
			best = c
			found = true
		}
	}
	return best, found, nil
}

// candidates returns every link whose filename matches and whose date parses.
func (p *DocumentProbe) candidates(doc *goquery.Document) []Candidate {
	log := logger.WithKind("probe", string(KindDocuments))

	var out []Candidate
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		m := p.pattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		name := m[0]
		raw := eightDigits.FindString(name)
		if len(m) > 1 {
			raw = m[1]
		}

		date, ok := parseDocumentDate(raw)
		if !ok {
			log.Debugf("discarding %s: unparseable date %q", name, raw)
			return
		}

		abs, err := resolve(p.base, href)
		if err != nil {
			log.Debugf("discarding %s: bad href: %v", name, err)
			return
		}
		out = append(out, Candidate{Name: name, Date: date, URL: abs})
	})
	return out
}

// alive issues a HEAD for the candidate. Only 200 keeps it; a failed HEAD is
// logged and drops the candidate without aborting the probe.
func (p *DocumentProbe) alive(ctx context.Context, c Candidate) bool {
	log := logger.WithKind("probe", string(KindDocuments))

	code, err := p.fetcher.Head(ctx, c.URL, p.cfg.HeadTimeout)
	if err != nil {
		log.Warnf("HEAD %s failed: %v", c.URL, err)
		return false
	}
	if code != http.StatusOK {
		log.Infof("candidate %s unavailable (HEAD %d)", c.Name, code)
		return false
	}
	return true
}

// parseDocumentDate tries each accepted layout in order; the first that
// parses wins.
func parseDocumentDate(raw string) (time.Time, bool) {
	if len(raw) != 8 {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
