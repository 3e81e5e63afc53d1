package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	"scrapegate/internal/api"
	"scrapegate/internal/config"
	"scrapegate/internal/core/crawl"
	"scrapegate/internal/core/job"
	"scrapegate/internal/core/mapper"
	"scrapegate/internal/core/scrape"
	"scrapegate/internal/core/scratchpad"
	"scrapegate/internal/health"
	"scrapegate/internal/platform/redis"
	tasks "scrapegate/internal/platform/tasks"
)

type Dependencies struct {
	Config     config.Config
	Job        *job.JobService
	Crawl      *crawl.CrawlService
	Scrape     *scrape.Service
	Map        *mapper.Service
	Scratchpad *scratchpad.Service
	Tasks      *tasks.Client
	Redis      *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health stays outside auth so orchestrators can probe it.
	healthHandler := health.NewHealthHandler(d.Redis)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	v1 := app.Group("/v1", keyauth.New(keyauth.Config{
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !d.Config.IsAllowedKey(key) {
				return false, keyauth.ErrMissingOrMalformedAPIKey
			}
			c.Locals("api_key", key)
			return true, nil
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(api.NewError("invalid or missing API key"))
		},
	}))

	scrapeHandler := scrape.NewHandler(d.Scrape, d.Map)
	v1.Get("/scrape", scrapeHandler.HandleGetScrape)

	mapHandler := mapper.NewHandler(d.Map)
	v1.Get("/map", mapHandler.HandleMap)

	crawlHandler := crawl.NewHandler(d.Crawl)
	v1.Post("/scraper/scrape", crawlHandler.HandleScrape)
	v1.Post("/scraper/batch", crawlHandler.HandleBatch)

	jobHandler := job.NewHandler(d.Job)
	v1.Get("/scraper/jobs/:jobId", jobHandler.HandleStatus)
	v1.Get("/scraper/jobs/:jobId/results", jobHandler.HandleResults)
	v1.Get("/jobs", jobHandler.HandleList)
	v1.Get("/jobs/:jobId", jobHandler.HandleDetail)
	v1.Delete("/jobs/:jobId", jobHandler.HandleDelete)

	padHandler := scratchpad.NewHandler(d.Scratchpad)
	v1.Post("/scratchpad", padHandler.HandleSave)
	v1.Get("/scratchpad", padHandler.HandleListKeys)
	v1.Post("/scratchpad/search", padHandler.HandleSearch)
	v1.Get("/scratchpad/session", padHandler.HandleSession)
	v1.Get("/scratchpad/history", padHandler.HandleHistory)
	v1.Delete("/scratchpad/session/clear", padHandler.HandleClearSession)
	v1.Get("/scratchpad/source/:source", padHandler.HandleBySource)
	v1.Get("/scratchpad/:key", padHandler.HandleFetch)
	v1.Delete("/scratchpad/:key", padHandler.HandleDelete)

	return healthHandler
}
