// Package api holds the wire types shared by the HTTP handlers, the task
// payloads, and the Go client.
package api

// Result content types.
const (
	ContentTypeMarkdown = "markdown"
	ContentTypeHTML     = "html"
	ContentTypeJSON     = "json"
	ContentTypeText     = "text"
)

// Error is the envelope returned for every failed request.
type Error struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewError(msg string) Error { return Error{Success: false, Error: msg} }

// PageAction is a single browser interaction executed before capture.
type PageAction struct {
	Type         string `json:"type"` // wait, click, write, press, scroll
	Selector     string `json:"selector,omitempty"`
	Milliseconds int    `json:"milliseconds,omitempty"`
	Text         string `json:"text,omitempty"`
	Key          string `json:"key,omitempty"`
}

type LocationSettings struct {
	Country   string   `json:"country,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// AgentConfig enables LLM-assisted planning for a job.
type AgentConfig struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// ScrapeRequest starts a scraping job. Query is the only required field.
type ScrapeRequest struct {
	Query            string                 `json:"query"`
	Domain           string                 `json:"domain,omitempty"`
	Limit            *int                   `json:"limit,omitempty"`
	Formats          []string               `json:"formats,omitempty"`
	Actions          []PageAction           `json:"actions,omitempty"`
	Location         *LocationSettings      `json:"location,omitempty"`
	ExtractSchema    map[string]interface{} `json:"extract_schema,omitempty"`
	ExtractPrompt    string                 `json:"extract_prompt,omitempty"`
	Proxy            string                 `json:"proxy,omitempty"` // basic or stealth
	RetryWithStealth *bool                  `json:"retry_with_stealth,omitempty"`
	Agent            *AgentConfig           `json:"agent,omitempty"`
	OnlyMainContent  *bool                  `json:"only_main_content,omitempty"`
	IncludeTags      []string               `json:"include_tags,omitempty"`
	ExcludeTags      []string               `json:"exclude_tags,omitempty"`
	WaitFor          int                    `json:"wait_for,omitempty"` // ms
	Timeout          *int                   `json:"timeout,omitempty"`  // ms
	ParsePDF         *bool                  `json:"parse_pdf,omitempty"`
	RenderJS         bool                   `json:"render_js,omitempty"`
	WebhookURL       string                 `json:"webhook_url,omitempty"`
}

// ApplyDefaults fills the optional fields the same way the API documents
// them: 5 results, markdown+html output, main content only, 30s timeout.
func (r *ScrapeRequest) ApplyDefaults() {
	if r.Limit == nil {
		r.Limit = intPtr(5)
	}
	if len(r.Formats) == 0 {
		r.Formats = []string{ContentTypeMarkdown, ContentTypeHTML}
	}
	if r.RetryWithStealth == nil {
		r.RetryWithStealth = boolPtr(true)
	}
	if r.OnlyMainContent == nil {
		r.OnlyMainContent = boolPtr(true)
	}
	if r.Timeout == nil {
		r.Timeout = intPtr(30000)
	}
	if r.ParsePDF == nil {
		r.ParsePDF = boolPtr(true)
	}
}

// Credits returns the submission cost: stealth proxying costs 5x.
func (r *ScrapeRequest) Credits() int {
	if r.Proxy == "stealth" {
		return 5
	}
	return 1
}

// WantsFormat reports whether the request asked for the given output format.
func (r *ScrapeRequest) WantsFormat(format string) bool {
	for _, f := range r.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// WantsExtraction reports whether structured extraction was requested.
func (r *ScrapeRequest) WantsExtraction() bool {
	return len(r.ExtractSchema) > 0 || r.ExtractPrompt != ""
}

// BatchScrapeRequest scrapes an explicit list of URLs as one job.
type BatchScrapeRequest struct {
	URLs             []string               `json:"urls"`
	Formats          []string               `json:"formats,omitempty"`
	ExtractSchema    map[string]interface{} `json:"extract_schema,omitempty"`
	ExtractPrompt    string                 `json:"extract_prompt,omitempty"`
	Proxy            string                 `json:"proxy,omitempty"`
	RetryWithStealth *bool                  `json:"retry_with_stealth,omitempty"`
	WebhookURL       string                 `json:"webhook_url,omitempty"`
}

func (r *BatchScrapeRequest) ApplyDefaults() {
	if len(r.Formats) == 0 {
		r.Formats = []string{ContentTypeMarkdown, ContentTypeHTML}
	}
	if r.RetryWithStealth == nil {
		r.RetryWithStealth = boolPtr(true)
	}
}

// Credits returns the batch submission cost: per-URL, 5x under stealth.
func (r *BatchScrapeRequest) Credits() int {
	per := 1
	if r.Proxy == "stealth" {
		per = 5
	}
	return per * len(r.URLs)
}

// ScrapeAccepted acknowledges a submitted job.
type ScrapeAccepted struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// MapRequest discovers links on a site without scraping content.
type MapRequest struct {
	URL               string `json:"url" form:"url"`
	Search            string `json:"search,omitempty" form:"search"`
	Limit             int    `json:"limit,omitempty" form:"limit"`
	Depth             int    `json:"depth,omitempty" form:"depth"`
	IncludeSubdomains bool   `json:"include_subdomains,omitempty" form:"include_subdomains"`
}

// ApplyDefaults caps link discovery at 100 links unless the caller asked
// for more or fewer.
func (r *MapRequest) ApplyDefaults() {
	if r.Limit <= 0 {
		r.Limit = 100
	}
}

type MapResponse struct {
	Status string   `json:"status"`
	Links  []string `json:"links"`
}

// JobStatusResponse is the polling payload.
type JobStatusResponse struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type JobListItem struct {
	JobID     string `json:"job_id"`
	Query     string `json:"query"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type JobDetail struct {
	JobID        string `json:"job_id"`
	Query        string `json:"query"`
	Domain       string `json:"domain,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	ResultCount  int    `json:"result_count"`
}

// ResultItem is one unit of scraped output attached to a completed job.
type ResultItem struct {
	URL         string                 `json:"url"`
	Title       string                 `json:"title"`
	Content     string                 `json:"content"`
	ContentType string                 `json:"content_type"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type JobResultsResponse struct {
	JobID   string       `json:"job_id"`
	Query   string       `json:"query"`
	Domain  string       `json:"domain,omitempty"`
	Results []ResultItem `json:"results"`
}

type DeleteResponse struct {
	Message string `json:"message"`
}

// PageMetadata is extracted from the scraped document.
type PageMetadata struct {
	Title              string `json:"title,omitempty"`
	Description        string `json:"description,omitempty"`
	Language           string `json:"language,omitempty"`
	Canonical          string `json:"canonical,omitempty"`
	Favicon            string `json:"favicon,omitempty"`
	OgTitle            string `json:"og_title,omitempty"`
	OgDescription      string `json:"og_description,omitempty"`
	OgImage            string `json:"og_image,omitempty"`
	OgSiteName         string `json:"og_site_name,omitempty"`
	TwitterTitle       string `json:"twitter_title,omitempty"`
	TwitterDescription string `json:"twitter_description,omitempty"`
	TwitterImage       string `json:"twitter_image,omitempty"`
	StatusCode         int    `json:"status_code,omitempty"`
	SourceURL          string `json:"source_url,omitempty"`
}

// Map flattens the metadata for storage alongside a result item.
func (m PageMetadata) Map() map[string]interface{} {
	out := map[string]interface{}{}
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("title", m.Title)
	put("description", m.Description)
	put("language", m.Language)
	put("canonical", m.Canonical)
	put("favicon", m.Favicon)
	put("og:title", m.OgTitle)
	put("og:description", m.OgDescription)
	put("og:image", m.OgImage)
	put("og:site_name", m.OgSiteName)
	put("twitter:title", m.TwitterTitle)
	put("twitter:description", m.TwitterDescription)
	put("twitter:image", m.TwitterImage)
	if m.StatusCode != 0 {
		out["status_code"] = m.StatusCode
	}
	put("sourceURL", m.SourceURL)
	return out
}

// ScrapeResponse is the synchronous scrape payload (GET /v1/scrape).
type ScrapeResponse struct {
	Success    bool         `json:"success"`
	URL        string       `json:"url"`
	Title      string       `json:"title,omitempty"`
	Content    string       `json:"content,omitempty"`
	HTML       string       `json:"html,omitempty"`
	Links      []string     `json:"links,omitempty"`
	Discovered int          `json:"discovered,omitempty"`
	Metadata   PageMetadata `json:"metadata"`
}

// GetScrapeParams binds the synchronous scrape query string.
type GetScrapeParams struct {
	URL             string `form:"url"`
	Format          string `form:"format"` // markdown, html, links, text
	RenderJS        bool   `form:"render_js"`
	Fresh           bool   `form:"fresh"`
	IncludeHTML     bool   `form:"include_html"`
	OnlyMainContent *bool  `form:"only_main_content"`
	UserAgent       string `form:"user_agent"`
	WaitFor         int    `form:"wait_for"`
	Timeout         int    `form:"timeout"`
	Depth           int    `form:"depth"`
	MaxLinks        int    `form:"max_links"`
	Proxy           string `form:"proxy"`
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
