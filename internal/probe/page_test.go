package probe

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = "https://uks.example/stranica-1"

func parse(t *testing.T, src string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func TestBodyText(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "blocks joined with newlines",
			src:  "<html><body><h1> Title </h1><p>First\n</p><div>  <span>Second</span>  </div></body></html>",
			want: "Title\nFirst\nSecond",
		},
		{
			name: "head text excluded",
			src:  "<html><head><title>Ignored</title></head><body><p>Kept</p></body></html>",
			want: "Kept",
		},
		{
			name: "scripts styles and comments skipped",
			src:  "<html><body><script>var x = 1;</script><style>p{}</style><!-- note --><p>Visible</p></body></html>",
			want: "Visible",
		},
		{
			name: "inline text nodes stay separate",
			src:  "<html><body><p>a<b>b</b>c</p></body></html>",
			want: "a\nb\nc",
		},
		{
			name: "empty body",
			src:  "<html><head><title>Only head</title></head></html>",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BodyText(parse(t, tt.src)))
		})
	}
}

func TestHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash(nil))
	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", Hash([]byte("test")))
}

func TestPageProbe_Fingerprint(t *testing.T) {
	f := newStubFetcher()
	f.pages[testPage] = "<html><body><p>test</p></body></html>"

	p, err := NewPageProbe(f, testPage, time.Second)
	require.NoError(t, err)

	got, err := p.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Hash([]byte("test")), got)
	assert.Equal(t, testPage, p.URL())
}

func TestPageProbe_FingerprintIgnoresWhitespaceOnlyChanges(t *testing.T) {
	f := newStubFetcher()
	p, err := NewPageProbe(f, testPage, time.Second)
	require.NoError(t, err)

	f.pages[testPage] = "<html><body><p>Flats</p><p>Available</p></body></html>"
	first, err := p.Fingerprint(context.Background())
	require.NoError(t, err)

	f.pages[testPage] = "<html>\n<body>\n  <p>  Flats </p>\n\n<p>Available\n</p>\n</body></html>"
	second, err := p.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	f.pages[testPage] = "<html><body><p>Flats</p><p>Sold out</p></body></html>"
	third, err := p.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestPageProbe_NoBodyHashesEmptyString(t *testing.T) {
	f := newStubFetcher()
	f.pages[testPage] = "<html><head><title>t</title></head></html>"

	p, err := NewPageProbe(f, testPage, time.Second)
	require.NoError(t, err)

	got, err := p.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Hash([]byte("")), got)
}

func TestPageFingerprint_StrayTextWithoutBodyHashesEmptyString(t *testing.T) {
	f := newStubFetcher()
	f.pages[testPage] = "<html><head><title>t</title></head><div>Квартиры</div></html>"

	p, err := NewPageProbe(f, testPage, time.Second)
	require.NoError(t, err)

	got, err := p.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)
}

func TestHasBodyTag(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"explicit body", "<html><body><p>x</p></body></html>", true},
		{"body with attributes", `<html><BODY class="main">x</BODY></html>`, true},
		{"head only", "<html><head><title>t</title></head></html>", false},
		{"stray text", "<html><head></head><div>x</div></html>", false},
		{"body inside script", "<html><head><script>var s = '<body>';</script></head><div>x</div></html>", false},
		{"body inside comment", "<html><!-- <body> --><div>x</div></html>", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasBodyTag([]byte(tt.src)))
		})
	}
}

func TestPageProbe_FetchErrorPropagates(t *testing.T) {
	p, err := NewPageProbe(newStubFetcher(), testPage, time.Second)
	require.NoError(t, err)

	_, err = p.Fingerprint(context.Background())
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindDocuments, KindArticles, KindPage} {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("pdf")
	assert.Error(t, err)
}
