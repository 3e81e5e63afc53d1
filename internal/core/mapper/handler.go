package mapper

import (
	"github.com/gofiber/fiber/v2"

	"scrapegate/internal/api"
	"scrapegate/internal/utils/parser"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler { return &Handler{service: service} }

// HandleMap serves GET /v1/map. Mapping is synchronous: link discovery is
// cheap enough that no job is created.
func (h *Handler) HandleMap(c *fiber.Ctx) error {
	var req api.MapRequest
	if err := parser.ParseQuery(c, &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("invalid query"))
	}
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("url is required"))
	}
	req.ApplyDefaults()

	res, err := h.service.MapURL(Request{
		URL:               req.URL,
		Depth:             req.Depth,
		LinkLimit:         req.Limit,
		IncludeSubdomains: req.IncludeSubdomains,
		Search:            req.Search,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	return c.JSON(api.MapResponse{Status: "completed", Links: res.Links})
}
