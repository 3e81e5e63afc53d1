package scrape

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"

	"scrapegate/internal/api"
	"scrapegate/internal/config"
	"scrapegate/internal/core/scrape/robots"
	"scrapegate/internal/logger"
	rds "scrapegate/internal/platform/redis"
	"scrapegate/internal/utils/markdown"
)

const (
	botAgent     = "ScrapegateBot"
	maxBodyBytes = 10 << 20
	cacheTTL     = 900 // seconds
)

var (
	ErrRobotsDisallowed = fmt.Errorf("disallowed by robots.txt")
	ErrLowQuality       = fmt.Errorf("filtered out low-quality content")
)

// PageOptions controls how a single page is fetched and post-processed.
type PageOptions struct {
	Format           string // markdown, html, text
	RenderJS         bool
	IncludeHTML      bool
	OnlyMainContent  bool
	IncludeTags      []string
	ExcludeTags      []string
	UserAgent        string
	Languages        []string // Accept-Language preference
	WaitFor          int      // ms
	Timeout          int      // ms
	Actions          []api.PageAction
	Proxy            string // basic or stealth
	RetryWithStealth bool
	Fresh            bool
}

// OptionsFromRequest derives page options from an asynchronous job request.
func OptionsFromRequest(r api.ScrapeRequest) PageOptions {
	opts := PageOptions{
		Format:          api.ContentTypeMarkdown,
		RenderJS:        r.RenderJS,
		IncludeHTML:     r.WantsFormat(api.ContentTypeHTML),
		OnlyMainContent: true,
		IncludeTags:     r.IncludeTags,
		ExcludeTags:     r.ExcludeTags,
		WaitFor:         r.WaitFor,
		Actions:         r.Actions,
		Proxy:           r.Proxy,
	}
	if r.OnlyMainContent != nil {
		opts.OnlyMainContent = *r.OnlyMainContent
	}
	if r.Timeout != nil {
		opts.Timeout = *r.Timeout
	}
	if r.RetryWithStealth != nil {
		opts.RetryWithStealth = *r.RetryWithStealth
	}
	if r.Location != nil {
		opts.Languages = r.Location.Languages
	}
	return opts
}

type Service struct {
	log    *logger.Logger
	redis  *rds.Service
	robots *robots.Service
	cfg    config.Config
}

func NewScrapeService(redis *rds.Service, cfg config.Config) *Service {
	return &Service{log: logger.New("ScrapeService"), redis: redis, robots: robots.New(), cfg: cfg}
}

// ScrapeURL serves the synchronous scrape endpoint: cache, robots check,
// retries over header strategies, then post-processing into the requested
// format.
func (s *Service) ScrapeURL(ctx context.Context, params api.GetScrapeParams) (*api.ScrapeResponse, error) {
	opts := PageOptions{
		Format:          params.Format,
		RenderJS:        params.RenderJS,
		IncludeHTML:     params.IncludeHTML,
		OnlyMainContent: true,
		UserAgent:       params.UserAgent,
		WaitFor:         params.WaitFor,
		Timeout:         params.Timeout,
		Proxy:           params.Proxy,
		Fresh:           params.Fresh,
	}
	if params.OnlyMainContent != nil {
		opts.OnlyMainContent = *params.OnlyMainContent
	}
	if opts.Format == "" {
		opts.Format = api.ContentTypeMarkdown
	}
	return s.scrape(ctx, params.URL, opts)
}

// ScrapePage fetches one page for a crawl worker. Returns whether the result
// came from cache so workers can pace themselves.
func (s *Service) ScrapePage(ctx context.Context, pageURL string, opts PageOptions) (*api.ScrapeResponse, bool, error) {
	if opts.Format == "" {
		opts.Format = api.ContentTypeMarkdown
	}
	if !opts.Fresh {
		if cached := s.getCached(ctx, pageURL, opts); cached != nil {
			return cached, true, nil
		}
	}
	res, err := s.scrape(ctx, pageURL, opts)
	if err != nil {
		return nil, false, err
	}
	return res, false, nil
}

func (s *Service) scrape(ctx context.Context, pageURL string, opts PageOptions) (*api.ScrapeResponse, error) {
	s.log.Info().Str("url", pageURL).Str("format", opts.Format).Msg("scrape start")

	if !opts.Fresh {
		if cached := s.getCached(ctx, pageURL, opts); cached != nil {
			s.log.Info().Str("url", pageURL).Msg("cache hit")
			return cached, nil
		}
	}

	if !s.robots.IsAllowed(pageURL, botAgent) {
		s.log.Info().Str("url", pageURL).Msg("robots disallow")
		return nil, ErrRobotsDisallowed
	}

	result, err := s.fetchWithRetries(ctx, pageURL, opts)
	if err != nil && s.canRetryWithStealth(opts) {
		s.log.LogWarnf("retrying %s through stealth proxy after: %v", pageURL, err)
		stealthOpts := opts
		stealthOpts.Proxy = "stealth"
		result, err = s.fetchWithRetries(ctx, pageURL, stealthOpts)
	}
	if err != nil {
		s.log.Info().Str("url", pageURL).Str("error", err.Error()).Msg("scrape failed")
		return nil, err
	}
	if !isValidResult(result) {
		return nil, ErrLowQuality
	}

	s.cache(ctx, pageURL, opts, result)
	s.log.Info().Str("url", pageURL).Int("status", result.Metadata.StatusCode).Msg("scrape complete")
	return result, nil
}

// fetchWithRetries tries each header strategy in order, treating rate limits,
// gateway errors, and Cloudflare challenges as retryable.
func (s *Service) fetchWithRetries(ctx context.Context, pageURL string, opts PageOptions) (*api.ScrapeResponse, error) {
	strategies := GetAllStrategies()
	var lastErr error

	for i, strategy := range strategies {
		s.log.Info().Str("url", pageURL).Int("attempt", i+1).Str("strategy", string(strategy)).Msg("fetch attempt")

		result, err := s.fetchOnce(ctx, pageURL, opts, strategy)
		if err == nil && !isCloudflareBlocked(result) {
			return result, nil
		}

		if err != nil {
			lastErr = err
			if !isRetryableError(err) {
				return nil, err
			}
			s.log.Info().Str("url", pageURL).Str("strategy", string(strategy)).Str("error", err.Error()).Msg("fetch attempt failed")
		} else {
			lastErr = fmt.Errorf("cloudflare challenge detected")
			s.log.Info().Str("url", pageURL).Str("strategy", string(strategy)).Int("status", result.Metadata.StatusCode).Msg("cloudflare detected")
		}

		if i < len(strategies)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1000+rand.Intn(2000)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("all strategies exhausted: %w", lastErr)
}

func (s *Service) fetchOnce(ctx context.Context, pageURL string, opts PageOptions, strategy HeaderStrategy) (*api.ScrapeResponse, error) {
	needsBrowser := opts.RenderJS || len(opts.Actions) > 0 || opts.WaitFor > 0
	var (
		html   string
		status int
		err    error
	)
	if needsBrowser {
		html, status, err = s.fetchRendered(pageURL, opts, strategy)
	} else {
		html, status, err = s.fetchStatic(ctx, pageURL, opts, strategy)
	}
	if err != nil {
		return nil, err
	}
	return s.buildResponse(html, pageURL, status, opts), nil
}

// fetchStatic performs a plain HTTP fetch with the strategy's header profile.
func (s *Service) fetchStatic(ctx context.Context, pageURL string, opts PageOptions, strategy HeaderStrategy) (string, int, error) {
	timeout := time.Duration(opts.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy := s.proxyFor(opts); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return "", 0, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	client := &http.Client{Timeout: timeout, Transport: transport}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("invalid url: %w", err)
	}
	GetHeaderProfile(strategy).Apply(req, opts.UserAgent)
	if len(opts.Languages) > 0 {
		req.Header.Set("Accept-Language", strings.Join(opts.Languages, ","))
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusForbidden {
		// 403 bodies pass through for Cloudflare detection upstream.
		return "", resp.StatusCode, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return string(body), resp.StatusCode, nil
}

// fetchRendered drives a headless browser for pages that need JavaScript or
// scripted interactions before capture.
func (s *Service) fetchRendered(pageURL string, opts PageOptions, strategy HeaderStrategy) (string, int, error) {
	pw, err := playwright.Run()
	if err != nil {
		return "", 0, fmt.Errorf("playwright run: %w", err)
	}
	defer pw.Stop()

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--disable-default-apps",
			"--disable-extensions",
		},
	}
	if proxy := s.proxyFor(opts); proxy != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: proxy}
	}
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return "", 0, fmt.Errorf("launch: %w", err)
	}
	defer browser.Close()

	profile := GetHeaderProfile(strategy)
	userAgent := profile.UserAgent
	if opts.UserAgent != "" {
		userAgent = opts.UserAgent
	}
	headers := map[string]string{
		"Accept":                    profile.Accept,
		"Accept-Language":           profile.AcceptLanguage,
		"Upgrade-Insecure-Requests": "1",
	}
	if len(opts.Languages) > 0 {
		headers["Accept-Language"] = strings.Join(opts.Languages, ",")
	}
	if profile.SecFetchDest != "" {
		headers["Sec-Fetch-Dest"] = profile.SecFetchDest
		headers["Sec-Fetch-Mode"] = profile.SecFetchMode
		headers["Sec-Fetch-Site"] = profile.SecFetchSite
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(userAgent),
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		return "", 0, err
	}
	page, err := bctx.NewPage()
	if err != nil {
		return "", 0, err
	}

	gotoTimeout := float64(opts.Timeout)
	if gotoTimeout <= 0 {
		gotoTimeout = 30000
	}
	resp, navErr := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(gotoTimeout),
	})
	if navErr != nil {
		resp, navErr = page.Goto(pageURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   playwright.Float(gotoTimeout * 2),
		})
		if navErr != nil {
			return "", 0, fmt.Errorf("goto failed: %w", navErr)
		}
	}

	if opts.WaitFor > 0 {
		page.WaitForTimeout(float64(opts.WaitFor))
	}
	for _, action := range opts.Actions {
		if err := runPageAction(page, action); err != nil {
			s.log.LogWarnf("page action %s failed on %s: %v", action.Type, pageURL, err)
		}
	}

	content, err := page.Content()
	if err != nil {
		return "", 0, err
	}
	status := 200
	if resp != nil {
		status = resp.Status()
	}
	return content, status, nil
}

func runPageAction(page playwright.Page, action api.PageAction) error {
	switch action.Type {
	case "wait":
		ms := action.Milliseconds
		if ms <= 0 {
			ms = 1000
		}
		page.WaitForTimeout(float64(ms))
		return nil
	case "click":
		return page.Locator(action.Selector).Click()
	case "write":
		return page.Locator(action.Selector).Fill(action.Text)
	case "press":
		if action.Selector != "" {
			return page.Locator(action.Selector).Press(action.Key)
		}
		return page.Keyboard().Press(action.Key)
	case "scroll":
		_, err := page.Evaluate(`() => window.scrollBy(0, window.innerHeight)`)
		return err
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// buildResponse turns raw HTML into the wire response for the requested
// format.
func (s *Service) buildResponse(html, pageURL string, status int, opts PageOptions) *api.ScrapeResponse {
	filter := markdown.FilterOptions{
		MainContentOnly: opts.OnlyMainContent,
		IncludeTags:     opts.IncludeTags,
		ExcludeTags:     opts.ExcludeTags,
	}

	var content string
	switch opts.Format {
	case api.ContentTypeHTML:
		content = strings.TrimSpace(html)
	case api.ContentTypeText:
		content = markdown.ExtractText(html, filter)
	default:
		content = markdown.Convert(html, filter)
	}

	meta := extractMetadata(html, pageURL, status)
	links := extractLinks(html, pageURL)

	result := &api.ScrapeResponse{
		Success:    true,
		URL:        pageURL,
		Title:      meta.Title,
		Content:    content,
		Links:      links,
		Discovered: len(links),
		Metadata:   meta,
	}
	if opts.IncludeHTML && opts.Format != api.ContentTypeHTML {
		result.HTML = strings.TrimSpace(html)
	}
	return result
}

// extractLinks collects absolute http(s) anchors from the document, deduped
// in document order.
func extractLinks(html, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		link := abs.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}

// extractMetadata parses common page metadata.
func extractMetadata(html, pageURL string, status int) api.PageMetadata {
	meta := api.PageMetadata{StatusCode: status, SourceURL: pageURL}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return meta
	}

	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	meta.Language, _ = doc.Find("html").Attr("lang")

	findMeta := func(name string) string {
		sel := fmt.Sprintf(`meta[name=%q], meta[property=%q]`, name, name)
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			return strings.TrimSpace(v)
		}
		return ""
	}
	absolutize := func(raw string) string {
		if raw == "" {
			return ""
		}
		base, err := url.Parse(pageURL)
		if err != nil {
			return raw
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return raw
		}
		return base.ResolveReference(ref).String()
	}

	meta.Description = findMeta("description")
	meta.OgTitle = findMeta("og:title")
	meta.OgDescription = findMeta("og:description")
	meta.OgImage = absolutize(findMeta("og:image"))
	meta.OgSiteName = findMeta("og:site_name")
	meta.TwitterTitle = findMeta("twitter:title")
	meta.TwitterDescription = findMeta("twitter:description")
	meta.TwitterImage = absolutize(findMeta("twitter:image"))

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta.Canonical = absolutize(strings.TrimSpace(href))
	}
	if href, ok := doc.Find(`link[rel="icon"], link[rel="shortcut icon"]`).First().Attr("href"); ok {
		meta.Favicon = absolutize(strings.TrimSpace(href))
	}
	return meta
}

// canRetryWithStealth reports whether a failed fetch may go through the
// stealth proxy: only when one is configured and the first attempt was not
// already stealth.
func (s *Service) canRetryWithStealth(opts PageOptions) bool {
	return opts.RetryWithStealth && opts.Proxy != "stealth" && s.cfg.StealthProxyURL != ""
}

func (s *Service) proxyFor(opts PageOptions) string {
	switch opts.Proxy {
	case "stealth":
		return s.cfg.StealthProxyURL
	case "basic":
		return s.cfg.ProxyURL
	}
	return ""
}

// Cache helpers

func (s *Service) getCached(ctx context.Context, pageURL string, opts PageOptions) *api.ScrapeResponse {
	var res api.ScrapeResponse
	if err := s.redis.CacheGet(ctx, cacheKey(pageURL, opts), &res); err != nil {
		return nil
	}
	return &res
}

func (s *Service) cache(ctx context.Context, pageURL string, opts PageOptions, res *api.ScrapeResponse) {
	_ = s.redis.CacheSet(ctx, cacheKey(pageURL, opts), res, cacheTTL)
}

func cacheKey(pageURL string, opts PageOptions) string {
	safeURL := strings.NewReplacer(":", "_", "/", "_", "?", "_", "&", "_").Replace(pageURL)
	return fmt.Sprintf("scrape:%s:%s:%v", safeURL, opts.Format, opts.IncludeHTML)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	es := strings.ToLower(err.Error())
	if strings.Contains(es, "429") || strings.Contains(es, "too many requests") || strings.Contains(es, "rate limit") {
		return true
	}
	if strings.Contains(es, "502") || strings.Contains(es, "503") || strings.Contains(es, "504") ||
		strings.Contains(es, "bad gateway") || strings.Contains(es, "service unavailable") || strings.Contains(es, "gateway timeout") {
		return true
	}
	if strings.Contains(es, "connection reset") || strings.Contains(es, "connection refused") || strings.Contains(es, "timeout") {
		return true
	}
	return false
}

func isValidResult(res *api.ScrapeResponse) bool {
	if res == nil {
		return false
	}
	if res.Metadata.StatusCode == 404 {
		return false
	}
	return len(strings.TrimSpace(res.Content)) >= 10
}

// isCloudflareBlocked detects a Cloudflare challenge page.
func isCloudflareBlocked(res *api.ScrapeResponse) bool {
	if res == nil || res.Metadata.StatusCode != 403 {
		return false
	}
	if strings.Contains(res.Title, "Just a moment") ||
		strings.Contains(res.Title, "Checking your browser") ||
		strings.Contains(res.Title, "Attention Required") {
		return true
	}
	if strings.Contains(res.Content, "Cloudflare") && strings.Contains(res.Content, "Ray ID") {
		return true
	}
	return false
}
