package probe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/uksgomel/uks_checker/internal/fetcher"
)

// Elements whose text is not part of the visible body.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"template": true,
}

// PageProbe fingerprints the text of a page body.
type PageProbe struct {
	fetcher fetcher.Fetcher
	url     string
	timeout time.Duration
}

func NewPageProbe(f fetcher.Fetcher, pageURL string, timeout time.Duration) (*PageProbe, error) {
	if f == nil {
		return nil, errors.New("fetcher is required")
	}
	if pageURL == "" {
		return nil, errors.New("page url is required")
	}
	return &PageProbe{fetcher: f, url: pageURL, timeout: timeout}, nil
}

// URL is the monitored page address.
func (p *PageProbe) URL() string {
	return p.url
}

// Fingerprint returns the SHA-256 hex digest of the page body text.
// A page without a <body> tag hashes as the empty string, even when the
// parser would move stray text into an implied body.
func (p *PageProbe) Fingerprint(ctx context.Context) (string, error) {
	resp, err := p.fetcher.Get(ctx, p.url, p.timeout)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", p.url, err)
	}
	if !HasBodyTag(resp.Body) {
		return Hash(nil), nil
	}
	doc, err := parseDocument(p.url, resp.Body)
	if err != nil {
		return "", err
	}
	return Hash([]byte(BodyText(doc))), nil
}

// HasBodyTag reports whether the markup carries an explicit <body> start tag.
// Text inside script, style and title is never taken for markup.
func HasBodyTag(src []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(src))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "body" {
				return true
			}
		}
	}
}

// BodyText joins the trimmed, non-empty text nodes of <body> with newlines.
// A parsed document always has a body; callers check HasBodyTag on the raw
// markup first.
func BodyText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range body.Nodes {
		walk(n)
	}
	return strings.Join(parts, "\n")
}

// Hash returns the lowercase hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
