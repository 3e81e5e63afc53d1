// Package mapper discovers the link graph of a site without scraping page
// content.
package mapper

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly"

	"scrapegate/internal/core/scrape/robots"
	"scrapegate/internal/logger"
)

const botAgent = "ScrapegateBot"

type Service struct {
	log    *logger.Logger
	robots *robots.Service
}

func NewMapService() *Service { return &Service{log: logger.New("MapService"), robots: robots.New()} }

type Request struct {
	URL               string
	Depth             int
	LinkLimit         int
	IncludeSubdomains bool
	Patterns          []string
	// Search keeps only links whose URL contains the term.
	Search string
}

type Result struct {
	Links []string `json:"links"`
}

// MapURL crawls the site breadth-first and returns the discovered links.
func (s *Service) MapURL(req Request) (*Result, error) {
	s.log.LogDebugf("Map start url=%s depth=%d limit=%d subdomains=%v", req.URL, req.Depth, req.LinkLimit, req.IncludeSubdomains)

	links := make(map[string]struct{})
	var mu sync.Mutex

	c := colly.NewCollector(colly.MaxDepth(maxInt(1, req.Depth)), colly.Async(true))
	cleaned := cleanURL(req.URL)
	dom := extractDomain(cleaned)

	c.OnRequest(func(r *colly.Request) {
		mu.Lock()
		reached := req.LinkLimit > 0 && len(links) >= maxInt(1, req.LinkLimit)
		mu.Unlock()
		if reached {
			r.Abort()
			return
		}
		if !s.robots.IsAllowed(r.URL.String(), botAgent) {
			r.Abort()
		}
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := normalize(e.Request.AbsoluteURL(e.Attr("href")))
		if !s.accepts(link, dom, req) {
			return
		}
		mu.Lock()
		_, exists := links[link]
		if !exists {
			links[link] = struct{}{}
		}
		reached := req.LinkLimit > 0 && len(links) >= maxInt(1, req.LinkLimit)
		mu.Unlock()
		if reached {
			return
		}
		if !exists && e.Request.Depth < maxInt(1, req.Depth) {
			_ = e.Request.Visit(link)
		}
	})

	c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 10, RandomDelay: 500 * time.Millisecond})

	if err := c.Visit(cleaned); err != nil {
		return nil, fmt.Errorf("visit: %w", err)
	}
	c.Wait()

	out := make([]string, 0, len(links))
	for l := range links {
		out = append(out, l)
	}
	s.log.LogSuccessf("Map ok url=%s discovered=%d", req.URL, len(out))
	return &Result{Links: out}, nil
}

// MapLinksStream streams discovered links as they are found. The caller owns
// the channel lifecycle.
func (s *Service) MapLinksStream(ctx context.Context, req Request, out chan<- string) error {
	s.log.LogDebugf("Map stream start url=%s depth=%d limit=%d", req.URL, req.Depth, req.LinkLimit)

	links := make(map[string]struct{})
	var mu sync.Mutex
	limitReached := false

	c := colly.NewCollector(colly.MaxDepth(maxInt(1, req.Depth)), colly.Async(true))
	cleaned := cleanURL(req.URL)
	dom := extractDomain(cleaned)

	c.OnError(func(r *colly.Response, err error) {
		s.log.LogWarnf("Map stream error %s %d: %v", r.Request.URL, r.StatusCode, err)
	})

	c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 10, RandomDelay: 500 * time.Millisecond})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		link := normalize(e.Request.AbsoluteURL(e.Attr("href")))
		if !s.accepts(link, dom, req) {
			return
		}

		mu.Lock()
		if limitReached {
			mu.Unlock()
			return
		}
		if _, exists := links[link]; exists {
			mu.Unlock()
			return
		}
		links[link] = struct{}{}
		shouldVisit := e.Request.Depth < maxInt(1, req.Depth)
		if req.LinkLimit > 0 && len(links) >= maxInt(1, req.LinkLimit) {
			limitReached = true
			shouldVisit = false
		}
		mu.Unlock()

		// Channel send outside the critical section
		select {
		case <-ctx.Done():
			return
		case out <- link:
		}

		if shouldVisit {
			_ = e.Request.Visit(link)
		}
	})

	c.OnRequest(func(r *colly.Request) {
		mu.Lock()
		reached := limitReached
		mu.Unlock()
		if reached {
			r.Abort()
			return
		}
		select {
		case <-ctx.Done():
			r.Abort()
			return
		default:
		}
		if !s.robots.IsAllowed(r.URL.String(), botAgent) {
			r.Abort()
		}
	})

	if err := c.Visit(cleaned); err != nil {
		return fmt.Errorf("failed to visit URL: %w", err)
	}
	c.Wait()

	mu.Lock()
	emitted := len(links)
	mu.Unlock()
	s.log.LogSuccessf("Map stream done url=%s emitted=%d", req.URL, emitted)
	return nil
}

// accepts applies the domain, robots, pattern, and search filters.
func (s *Service) accepts(link, dom string, req Request) bool {
	if link == "" {
		return false
	}
	if !domainsMatch(extractDomain(link), dom, req.IncludeSubdomains) {
		return false
	}
	if !s.robots.IsAllowed(link, botAgent) {
		return false
	}
	if !matchesPattern(link, req.Patterns) {
		return false
	}
	if req.Search != "" && !strings.Contains(strings.ToLower(link), strings.ToLower(req.Search)) {
		return false
	}
	return true
}

func cleanURL(u string) string {
	if !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	return u
}

func extractDomain(u string) string {
	p, _ := url.Parse(u)
	if p != nil {
		return p.Hostname()
	}
	return ""
}

func normalize(u string) string {
	p, _ := url.Parse(u)
	if p == nil {
		return u
	}
	p.Fragment = ""
	if p.Path == "/" {
		p.Path = ""
	}
	return p.String()
}

func domainsMatch(a, b string, includeSub bool) bool {
	if a == b {
		return true
	}
	a = strings.TrimPrefix(a, "www.")
	b = strings.TrimPrefix(b, "www.")
	if a == b {
		return true
	}
	if includeSub && (strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)) {
		return true
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// matchesPattern checks a URL path against glob-style patterns. No patterns
// means allow everything.
func matchesPattern(u string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, path); err == nil && matched {
			return true
		}
		// Prefix patterns like "/blog/*" also match "/blog" itself.
		if strings.HasSuffix(pattern, "*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if path == strings.TrimSuffix(prefix, "/") {
				return true
			}
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}
	return false
}
