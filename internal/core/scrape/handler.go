package scrape

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"scrapegate/internal/api"
	"scrapegate/internal/core/mapper"
	"scrapegate/internal/utils/parser"
)

type Handler struct {
	service *Service
	mapper  *mapper.Service
}

func NewHandler(service *Service, mapper *mapper.Service) *Handler {
	return &Handler{service: service, mapper: mapper}
}

// HandleGetScrape serves the synchronous scrape endpoint. format=links is
// routed to the mapper instead of the page fetcher.
func (h *Handler) HandleGetScrape(c *fiber.Ctx) error {
	var p api.GetScrapeParams
	if err := parser.ParseQuery(c, &p); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("invalid query"))
	}
	if p.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("url is required"))
	}

	if p.Format == "links" {
		res, err := h.mapper.MapURL(mapper.Request{URL: p.URL, Depth: p.Depth, LinkLimit: p.MaxLinks})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
		}
		return c.JSON(api.ScrapeResponse{
			Success:    true,
			URL:        p.URL,
			Links:      res.Links,
			Discovered: len(res.Links),
		})
	}

	result, err := h.service.ScrapeURL(c.Context(), p)
	if err != nil {
		return c.Status(scrapeErrorStatus(err)).JSON(api.NewError(err.Error()))
	}
	return c.JSON(result)
}

// scrapeErrorStatus categorizes fetch failures into HTTP status codes.
func scrapeErrorStatus(err error) int {
	if errors.Is(err, ErrRobotsDisallowed) {
		return fiber.StatusForbidden
	}
	if errors.Is(err, ErrLowQuality) {
		return fiber.StatusUnprocessableEntity
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "invalid url") || strings.Contains(msg, "malformed"):
		return fiber.StatusBadRequest
	case strings.Contains(msg, "stopped after") && strings.Contains(msg, "redirects"):
		return fiber.StatusBadRequest
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return fiber.StatusRequestTimeout
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return fiber.StatusTooManyRequests
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
