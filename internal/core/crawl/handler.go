package crawl

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"scrapegate/internal/api"
	"scrapegate/internal/core/job"
)

type Handler struct {
	service *CrawlService
}

func NewHandler(service *CrawlService) *Handler { return &Handler{service: service} }

func apiKey(c *fiber.Ctx) string {
	if k, ok := c.Locals("api_key").(string); ok {
		return k
	}
	return ""
}

// HandleScrape accepts a scraping job. Validation happens before any job is
// created so rejected requests leave no trace.
func (h *Handler) HandleScrape(c *fiber.Ctx) error {
	var req api.ScrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("invalid request body"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("query is required"))
	}

	j, err := h.service.Enqueue(c.Context(), apiKey(c), req)
	if err != nil {
		if errors.Is(err, job.ErrQuotaExceeded) {
			return c.Status(fiber.StatusForbidden).JSON(api.NewError(err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	return c.JSON(api.ScrapeAccepted{JobID: j.ID, Status: string(j.Status)})
}

// HandleBatch accepts a job over an explicit URL list.
func (h *Handler) HandleBatch(c *fiber.Ctx) error {
	var req api.BatchScrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("invalid request body"))
	}
	if len(req.URLs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("urls is required"))
	}

	j, err := h.service.EnqueueBatch(c.Context(), apiKey(c), req)
	if err != nil {
		if errors.Is(err, job.ErrQuotaExceeded) {
			return c.Status(fiber.StatusForbidden).JSON(api.NewError(err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	return c.JSON(api.ScrapeAccepted{JobID: j.ID, Status: string(j.Status)})
}
