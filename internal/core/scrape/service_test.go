package scrape

import (
	"compress/gzip"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrapegate/internal/api"
	"scrapegate/internal/config"
)

func TestGetHeaderProfileEveryStrategy(t *testing.T) {
	for _, strategy := range GetAllStrategies() {
		p := GetHeaderProfile(strategy)
		assert.NotEmpty(t, p.UserAgent, "strategy %s must carry a user agent", strategy)
		assert.NotEmpty(t, p.Accept)
	}
}

func TestHeaderProfileApply(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	p := GetHeaderProfile(StrategyModernBrowser)
	p.Apply(req, "")
	assert.Equal(t, p.UserAgent, req.Header.Get("User-Agent"))
	assert.Equal(t, "1", req.Header.Get("Upgrade-Insecure-Requests"))

	p.Apply(req, "CustomAgent/2.0")
	assert.Equal(t, "CustomAgent/2.0", req.Header.Get("User-Agent"))
}

func TestApplyLeavesAcceptEncodingUnset(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	for _, strategy := range GetAllStrategies() {
		GetHeaderProfile(strategy).Apply(req, "")
		assert.Empty(t, req.Header.Get("Accept-Encoding"),
			"strategy %s must not pin Accept-Encoding, it disables transparent decompression", strategy)
	}
}

func TestFetchStaticDecompressesGzipBodies(t *testing.T) {
	const page = "<html><head><title>Compressed</title></head><body><p>served over gzip</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			_, _ = w.Write([]byte(page))
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/html")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(page))
		_ = gz.Close()
	}))
	defer srv.Close()

	s := NewScrapeService(nil, config.Config{})
	body, status, err := s.fetchStatic(context.Background(), srv.URL, PageOptions{}, StrategyModernBrowser)
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Contains(t, body, "<p>served over gzip</p>")
}

func TestFetchStaticSendsConfiguredLanguages(t *testing.T) {
	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	s := NewScrapeService(nil, config.Config{})
	_, _, err := s.fetchStatic(context.Background(), srv.URL, PageOptions{Languages: []string{"de-DE", "de"}}, StrategyBotFriendly)
	require.NoError(t, err)
	assert.Equal(t, "de-DE,de", gotLang)
}

func TestBotFriendlyProfilesSkipBrowserHints(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	GetHeaderProfile(StrategyBotFriendly).Apply(req, "")
	assert.Empty(t, req.Header.Get("Sec-Fetch-Dest"))
	assert.Empty(t, req.Header.Get("Sec-Ch-Ua"))
}

func TestExtractLinks(t *testing.T) {
	html := `<body>
		<a href="/docs">Docs</a>
		<a href="https://other.test/page">External</a>
		<a href="/docs">Dup</a>
		<a href="#section">Anchor</a>
		<a href="mailto:x@y.test">Mail</a>
		<a href="javascript:void(0)">JS</a>
	</body>`
	links := extractLinks(html, "https://example.com/start")

	assert.Equal(t, []string{"https://example.com/docs", "https://other.test/page"}, links)
}

func TestExtractMetadata(t *testing.T) {
	html := `<html lang="en"><head>
		<title> Widget Shop </title>
		<meta name="description" content="Widgets for everyone">
		<meta property="og:title" content="Widget Shop OG">
		<meta property="og:image" content="/img/cover.png">
		<link rel="canonical" href="https://example.com/widgets">
	</head><body></body></html>`

	meta := extractMetadata(html, "https://example.com/widgets?ref=1", 200)
	assert.Equal(t, "Widget Shop", meta.Title)
	assert.Equal(t, "en", meta.Language)
	assert.Equal(t, "Widgets for everyone", meta.Description)
	assert.Equal(t, "Widget Shop OG", meta.OgTitle)
	assert.Equal(t, "https://example.com/img/cover.png", meta.OgImage)
	assert.Equal(t, "https://example.com/widgets", meta.Canonical)
	assert.Equal(t, 200, meta.StatusCode)
	assert.Equal(t, "https://example.com/widgets?ref=1", meta.SourceURL)
}

func TestCacheKeyVariesByFormatAndHTML(t *testing.T) {
	base := cacheKey("https://example.com/a", PageOptions{Format: "markdown"})
	html := cacheKey("https://example.com/a", PageOptions{Format: "html"})
	withHTML := cacheKey("https://example.com/a", PageOptions{Format: "markdown", IncludeHTML: true})

	assert.NotEqual(t, base, html)
	assert.NotEqual(t, base, withHTML)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(fmt.Errorf("request failed with status 429")))
	assert.True(t, isRetryableError(fmt.Errorf("request failed with status 503")))
	assert.True(t, isRetryableError(fmt.Errorf("dial tcp: connection refused")))
	assert.True(t, isRetryableError(fmt.Errorf("context deadline exceeded (Client.Timeout)")))
	assert.False(t, isRetryableError(fmt.Errorf("request failed with status 404")))
	assert.False(t, isRetryableError(nil))
}

func TestIsValidResult(t *testing.T) {
	assert.False(t, isValidResult(nil))
	assert.False(t, isValidResult(&api.ScrapeResponse{Content: "hi", Metadata: api.PageMetadata{StatusCode: 404}}))
	assert.False(t, isValidResult(&api.ScrapeResponse{Content: "  x ", Metadata: api.PageMetadata{StatusCode: 200}}))
	assert.True(t, isValidResult(&api.ScrapeResponse{Content: "plenty of real content here", Metadata: api.PageMetadata{StatusCode: 200}}))
}

func TestIsCloudflareBlocked(t *testing.T) {
	assert.True(t, isCloudflareBlocked(&api.ScrapeResponse{
		Title:    "Just a moment...",
		Metadata: api.PageMetadata{StatusCode: 403},
	}))
	assert.True(t, isCloudflareBlocked(&api.ScrapeResponse{
		Content:  "Cloudflare Ray ID: abc123",
		Metadata: api.PageMetadata{StatusCode: 403},
	}))
	assert.False(t, isCloudflareBlocked(&api.ScrapeResponse{
		Title:    "Just a moment...",
		Metadata: api.PageMetadata{StatusCode: 200},
	}))
	assert.False(t, isCloudflareBlocked(nil))
}

func TestOptionsFromRequest(t *testing.T) {
	req := api.ScrapeRequest{
		Query:    "q",
		Formats:  []string{api.ContentTypeMarkdown, api.ContentTypeHTML},
		RenderJS: true,
		WaitFor:  500,
		Proxy:    "stealth",
		Location: &api.LocationSettings{Country: "DE", Languages: []string{"de-DE", "de"}},
	}
	req.ApplyDefaults()
	opts := OptionsFromRequest(req)

	assert.True(t, opts.RenderJS)
	assert.True(t, opts.IncludeHTML)
	assert.True(t, opts.OnlyMainContent)
	assert.Equal(t, 500, opts.WaitFor)
	assert.Equal(t, 30000, opts.Timeout)
	assert.Equal(t, "stealth", opts.Proxy)
	assert.True(t, opts.RetryWithStealth)
	assert.Equal(t, []string{"de-DE", "de"}, opts.Languages)
}

func TestCanRetryWithStealth(t *testing.T) {
	s := &Service{cfg: config.Config{StealthProxyURL: "http://stealth.proxy:8080"}}

	assert.True(t, s.canRetryWithStealth(PageOptions{RetryWithStealth: true}))
	assert.True(t, s.canRetryWithStealth(PageOptions{RetryWithStealth: true, Proxy: "basic"}))
	assert.False(t, s.canRetryWithStealth(PageOptions{RetryWithStealth: true, Proxy: "stealth"}))
	assert.False(t, s.canRetryWithStealth(PageOptions{RetryWithStealth: false}))

	unconfigured := &Service{}
	assert.False(t, unconfigured.canRetryWithStealth(PageOptions{RetryWithStealth: true}))
}

func TestIsCloudflareBlockedFalseWithoutIndicators(t *testing.T) {
	assert.False(t, isCloudflareBlocked(&api.ScrapeResponse{
		Title:    "Access denied",
		Metadata: api.PageMetadata{StatusCode: 403},
	}))
}
