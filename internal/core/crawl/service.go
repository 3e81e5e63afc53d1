// Package crawl orchestrates asynchronous scraping jobs: enqueueing,
// background execution over a worker pool, extraction, and completion
// callbacks.
package crawl

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"scrapegate/internal/api"
	"scrapegate/internal/config"
	"scrapegate/internal/core/extract"
	"scrapegate/internal/core/job"
	"scrapegate/internal/core/mapper"
	"scrapegate/internal/core/scrape"
	"scrapegate/internal/core/scratchpad"
	"scrapegate/internal/logger"
	"scrapegate/internal/platform/tasks"
)

type CrawlService struct {
	job        *job.JobService
	tasks      *tasks.Client
	mapper     *mapper.Service
	scrape     *scrape.Service
	extract    *extract.Service
	scratchpad *scratchpad.Service
	log        *logger.Logger
	config     config.Config
}

func NewCrawlService(jobs *job.JobService, taskc *tasks.Client, mapsvc *mapper.Service, scrapesvc *scrape.Service, extractsvc *extract.Service, pad *scratchpad.Service, cfg config.Config) *CrawlService {
	return &CrawlService{
		job:        jobs,
		tasks:      taskc,
		mapper:     mapsvc,
		scrape:     scrapesvc,
		extract:    extractsvc,
		scratchpad: pad,
		log:        logger.New("CrawlService"),
		config:     cfg,
	}
}

// ScrapeTaskPayload is the queued unit for a query-driven job.
type ScrapeTaskPayload struct {
	JobID   string            `json:"job_id"`
	APIKey  string            `json:"api_key"`
	Request api.ScrapeRequest `json:"request"`
}

// BatchTaskPayload is the queued unit for an explicit URL-list job.
type BatchTaskPayload struct {
	JobID   string                 `json:"job_id"`
	APIKey  string                 `json:"api_key"`
	Request api.BatchScrapeRequest `json:"request"`
}

// Enqueue charges credits, stores a pending job, and queues the work.
func (s *CrawlService) Enqueue(ctx context.Context, apiKey string, req api.ScrapeRequest) (*job.Job, error) {
	req.ApplyDefaults()

	if err := s.job.ConsumeCredits(ctx, apiKey, req.Credits(), s.config.UsageQuota); err != nil {
		return nil, err
	}

	options := map[string]interface{}{"formats": req.Formats, "limit": *req.Limit}
	j, err := s.job.Create(ctx, apiKey, req.Query, req.Domain, options)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(ScrapeTaskPayload{JobID: j.ID, APIKey: apiKey, Request: req})
	task := asynq.NewTask(tasks.TaskTypeScrape, payload)
	if err := s.tasks.Enqueue(task, "default", s.config.TaskMaxRetries); err != nil {
		return nil, err
	}
	s.log.LogInfof("enqueued scrape job %s query=%q domain=%q limit=%d", j.ID, req.Query, req.Domain, *req.Limit)
	return j, nil
}

// EnqueueBatch queues a job over an explicit URL list.
func (s *CrawlService) EnqueueBatch(ctx context.Context, apiKey string, req api.BatchScrapeRequest) (*job.Job, error) {
	req.ApplyDefaults()

	if err := s.job.ConsumeCredits(ctx, apiKey, req.Credits(), s.config.UsageQuota); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("batch of %d urls", len(req.URLs))
	options := map[string]interface{}{"urls": req.URLs, "formats": req.Formats}
	j, err := s.job.Create(ctx, apiKey, query, "", options)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(BatchTaskPayload{JobID: j.ID, APIKey: apiKey, Request: req})
	task := asynq.NewTask(tasks.TaskTypeBatch, payload)
	if err := s.tasks.Enqueue(task, "default", s.config.TaskMaxRetries); err != nil {
		return nil, err
	}
	s.log.LogInfof("enqueued batch job %s urls=%d", j.ID, len(req.URLs))
	return j, nil
}

// HandleScrapeTask executes a query-driven job.
func (s *CrawlService) HandleScrapeTask(ctx context.Context, task *asynq.Task) error {
	var p ScrapeTaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return err
	}
	s.log.LogInfof("processing scrape job %s query=%q", p.JobID, p.Request.Query)

	if err := s.job.MarkRunning(ctx, p.JobID); err != nil {
		return err
	}

	// A panicking task must still fail the job instead of leaving it running.
	defer func() {
		if r := recover(); r != nil {
			s.log.LogErrorf("scrape job %s panicked: %v", p.JobID, r)
			_ = s.job.Fail(ctx, p.JobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if p.Request.Agent != nil && s.extract.Enabled() {
		s.notePlan(ctx, p)
	}

	target, err := resolveTarget(p.Request)
	if err != nil {
		_ = s.job.Fail(ctx, p.JobID, err.Error())
		return nil
	}

	results := s.streamScrape(ctx, target, p)
	if len(results) == 0 {
		_ = s.job.Fail(ctx, p.JobID, fmt.Sprintf("no pages could be scraped from %s", target))
		s.notifyWebhook(ctx, p.JobID, string(job.StatusFailed), nil, p.Request.WebhookURL)
		return nil
	}

	if err := s.job.Complete(ctx, p.JobID, results); err != nil {
		return err
	}
	s.log.LogSuccessf("completed scrape job %s with %d results", p.JobID, len(results))
	s.notifyWebhook(ctx, p.JobID, string(job.StatusCompleted), results, p.Request.WebhookURL)
	return nil
}

// HandleBatchTask executes an explicit URL-list job.
func (s *CrawlService) HandleBatchTask(ctx context.Context, task *asynq.Task) error {
	var p BatchTaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return err
	}
	s.log.LogInfof("processing batch job %s urls=%d", p.JobID, len(p.Request.URLs))

	if err := s.job.MarkRunning(ctx, p.JobID); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.LogErrorf("batch job %s panicked: %v", p.JobID, r)
			_ = s.job.Fail(ctx, p.JobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	req := api.ScrapeRequest{
		Formats:          p.Request.Formats,
		ExtractSchema:    p.Request.ExtractSchema,
		ExtractPrompt:    p.Request.ExtractPrompt,
		Proxy:            p.Request.Proxy,
		RetryWithStealth: p.Request.RetryWithStealth,
	}
	req.ApplyDefaults()
	opts := scrape.OptionsFromRequest(req)

	var (
		mu      sync.Mutex
		results []api.ResultItem
		wg      sync.WaitGroup
		sem     = make(chan struct{}, 5)
	)
	for _, u := range p.Request.URLs {
		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			items := s.scrapeOne(ctx, pageURL, req, opts, p.JobID)
			mu.Lock()
			results = append(results, items...)
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	if len(results) == 0 {
		_ = s.job.Fail(ctx, p.JobID, "no pages could be scraped")
		s.notifyWebhook(ctx, p.JobID, string(job.StatusFailed), nil, p.Request.WebhookURL)
		return nil
	}
	if err := s.job.Complete(ctx, p.JobID, results); err != nil {
		return err
	}
	s.log.LogSuccessf("completed batch job %s with %d results", p.JobID, len(results))
	s.notifyWebhook(ctx, p.JobID, string(job.StatusCompleted), results, p.Request.WebhookURL)
	return nil
}

// notePlan asks the model for a crawl plan and records it in the scratchpad
// under the job's session. Planning is advisory; failures never fail the job.
func (s *CrawlService) notePlan(ctx context.Context, p ScrapeTaskPayload) {
	plan, err := s.extract.Plan(ctx, p.Request.Query, p.Request.Domain)
	if err != nil || plan == "" {
		if err != nil {
			s.log.LogWarnf("planning failed for job %s: %v", p.JobID, err)
		}
		return
	}
	_, err = s.scratchpad.Save(ctx, p.APIKey, scratchpad.SaveRequest{
		Key:       "plan:" + p.JobID,
		SessionID: p.JobID,
		Content:   plan,
		Source:    "planner",
		Metadata:  map[string]interface{}{"query": p.Request.Query, "domain": p.Request.Domain},
	})
	if err != nil {
		s.log.LogWarnf("failed to store plan for job %s: %v", p.JobID, err)
	}
}

// resolveTarget picks the crawl entry point: an explicit domain wins, else a
// URL-shaped query is treated as the target itself.
func resolveTarget(req api.ScrapeRequest) (string, error) {
	if req.Domain != "" {
		return cleanURL(req.Domain), nil
	}
	q := strings.TrimSpace(req.Query)
	if looksLikeURL(q) {
		return cleanURL(q), nil
	}
	return "", fmt.Errorf("no crawlable target: provide a domain or a URL-shaped query")
}

func looksLikeURL(q string) bool {
	if strings.ContainsAny(q, " \t") {
		return false
	}
	if strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://") {
		return true
	}
	host := q
	if i := strings.IndexByte(host, '/'); i > 0 {
		host = host[:i]
	}
	return strings.Contains(host, ".")
}

func cleanURL(u string) string {
	if !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	return u
}

// streamScrape maps the target site and scrapes pages concurrently until the
// requested number of pages succeeded.
func (s *CrawlService) streamScrape(ctx context.Context, target string, p ScrapeTaskPayload) []api.ResultItem {
	req := p.Request
	limit := *req.Limit
	opts := scrape.OptionsFromRequest(req)

	var (
		mu           sync.Mutex
		results      []api.ResultItem
		processed    = map[string]struct{}{}
		successCount int
	)

	// The start URL is scraped first so small sites return useful output
	// even when mapping finds nothing.
	if items := s.scrapeOne(ctx, target, req, opts, p.JobID); len(items) > 0 {
		results = append(results, items...)
		successCount = 1
	}
	processed[target] = struct{}{}

	linksCh := make(chan string, 256)
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer close(linksCh)
		_ = s.mapper.MapLinksStream(streamCtx, mapper.Request{
			URL:       target,
			Depth:     2,
			LinkLimit: limit * 2,
		}, linksCh)
	}()

	maxWorkers := 10
	if req.RenderJS || len(req.Actions) > 0 {
		maxWorkers = 2
	}

	// Reserved slots allow limited over-scheduling so failed pages do not
	// starve the limit.
	reservedSlots := 0
	accept := func(u string) bool {
		mu.Lock()
		defer mu.Unlock()
		if _, seen := processed[u]; seen {
			return false
		}
		if limit > 0 && successCount >= limit {
			return false
		}
		if limit > 0 && (successCount+reservedSlots) >= limit*2 {
			return false
		}
		processed[u] = struct{}{}
		reservedSlots++
		return true
	}

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for u := range linksCh {
			if !accept(u) {
				mu.Lock()
				reached := limit > 0 && successCount >= limit
				mu.Unlock()
				if reached {
					cancel()
					return
				}
				continue
			}

			items := s.scrapeOne(ctx, u, req, opts, p.JobID)
			mu.Lock()
			if len(items) == 0 {
				// Failed pages release their slot so another URL gets a try.
				delete(processed, u)
				reservedSlots--
				mu.Unlock()
				continue
			}
			results = append(results, items...)
			successCount++
			if limit > 0 && successCount >= limit {
				mu.Unlock()
				cancel()
				return
			}
			mu.Unlock()
		}
	}

	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go worker()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Minute):
		s.log.LogWarnf("stream scrape timeout for job %s (%s)", p.JobID, target)
		cancel()
		<-done
	}

	return results
}

// scrapeOne fetches a single page and renders it into result items in the
// requested formats, plus an extraction item when the job asked for one.
func (s *CrawlService) scrapeOne(ctx context.Context, pageURL string, req api.ScrapeRequest, opts scrape.PageOptions, jobID string) []api.ResultItem {
	res, cached, err := s.scrape.ScrapePage(ctx, pageURL, opts)
	if err != nil {
		s.log.LogWarnf("page scrape failed %s: %v", pageURL, err)
		return nil
	}
	if cached {
		s.log.LogDebugf("page cache hit %s", pageURL)
	}

	meta := res.Metadata.Map()
	var items []api.ResultItem

	if req.WantsFormat(api.ContentTypeMarkdown) || len(req.Formats) == 0 {
		items = append(items, api.ResultItem{
			URL:         res.URL,
			Title:       res.Title,
			Content:     res.Content,
			ContentType: api.ContentTypeMarkdown,
			Metadata:    meta,
		})
	}
	if req.WantsFormat(api.ContentTypeHTML) && res.HTML != "" {
		items = append(items, api.ResultItem{
			URL:         res.URL,
			Title:       res.Title,
			Content:     res.HTML,
			ContentType: api.ContentTypeHTML,
			Metadata:    meta,
		})
	}
	if req.WantsFormat(api.ContentTypeText) {
		items = append(items, api.ResultItem{
			URL:         res.URL,
			Title:       res.Title,
			Content:     res.Content,
			ContentType: api.ContentTypeText,
			Metadata:    meta,
		})
	}

	if req.WantsExtraction() && s.extract.Enabled() {
		if extracted, err := s.extract.Extract(ctx, res.Content, req.ExtractSchema, req.ExtractPrompt); err == nil {
			encoded, _ := json.Marshal(extracted)
			items = append(items, api.ResultItem{
				URL:         res.URL,
				Title:       res.Title,
				Content:     string(encoded),
				ContentType: api.ContentTypeJSON,
				Metadata:    meta,
			})
			s.noteFinding(ctx, pageURL, string(encoded), jobID)
		} else {
			s.log.LogWarnf("extraction failed for %s: %v", pageURL, err)
		}
	}

	return items
}

func (s *CrawlService) noteFinding(ctx context.Context, pageURL, content, jobID string) {
	if s.scratchpad == nil {
		return
	}
	j, err := s.job.Get(ctx, jobID)
	if err != nil {
		return
	}
	_, _ = s.scratchpad.Save(ctx, j.APIKey, scratchpad.SaveRequest{
		SessionID:   jobID,
		Content:     content,
		ContentType: api.ContentTypeJSON,
		Source:      "scraper",
		Metadata:    map[string]interface{}{"url": pageURL},
	})
}

// notifyWebhook posts the job outcome to the caller-provided URL, signed
// with the shared webhook secret when one is configured.
func (s *CrawlService) notifyWebhook(ctx context.Context, jobID, status string, results []api.ResultItem, webhookURL string) {
	if webhookURL == "" {
		return
	}
	s.log.LogInfof("sending webhook for job %s to %s", jobID, webhookURL)

	payload := map[string]interface{}{
		"job_id":  jobID,
		"status":  status,
		"results": results,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.LogErrorf("failed to marshal webhook payload for job %s: %v", jobID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBuffer(body))
	if err != nil {
		s.log.LogErrorf("failed to create webhook request for job %s: %v", jobID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Scrapegate/1.0")
	req.Header.Set("X-Scrapegate-Event", "job."+status)
	req.Header.Set("X-Scrapegate-Job-ID", jobID)

	if s.config.WebhookSecret != "" {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		req.Header.Set("X-Scrapegate-Timestamp", timestamp)
		req.Header.Set("X-Scrapegate-Signature", s.signWebhook(timestamp, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		s.log.LogWarnf("failed to send webhook for job %s to %s: %v", jobID, webhookURL, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.log.LogInfof("webhook delivered for job %s (status %d)", jobID, resp.StatusCode)
	} else {
		s.log.LogWarnf("webhook returned status %d for job %s", resp.StatusCode, jobID)
	}
}

func (s *CrawlService) signWebhook(timestamp string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	h.Write([]byte(timestamp))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
