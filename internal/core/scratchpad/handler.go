package scratchpad

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"scrapegate/internal/api"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler { return &Handler{service: service} }

func apiKey(c *fiber.Ctx) string {
	if k, ok := c.Locals("api_key").(string); ok {
		return k
	}
	return ""
}

// sessionID reads the session from the query string, minting one when the
// caller did not supply it so the response tells the client which session
// its writes landed in.
func sessionID(c *fiber.Ctx) string {
	if sid := c.Query("session_id"); sid != "" {
		return sid
	}
	return uuid.New().String()
}

// HandleSave stores an entry.
func (h *Handler) HandleSave(c *fiber.Ctx) error {
	var req SaveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("invalid request body"))
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("content is required"))
	}
	if req.SessionID == "" {
		req.SessionID = sessionID(c)
	}
	entry, err := h.service.Save(c.Context(), apiKey(c), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// HandleFetch returns one entry by key.
func (h *Handler) HandleFetch(c *fiber.Ctx) error {
	entry, err := h.service.Fetch(c.Context(), apiKey(c), c.Params("key"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(api.NewError("Entry not found"))
	}
	return c.JSON(entry)
}

// HandleListKeys returns the caller's keys, newest first.
func (h *Handler) HandleListKeys(c *fiber.Ctx) error {
	keys, err := h.service.ListKeys(c.Context(), apiKey(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	return c.JSON(fiber.Map{"keys": keys})
}

// HandleSearch ranks entries against a text query.
func (h *Handler) HandleSearch(c *fiber.Ctx) error {
	var req SearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("invalid request body"))
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("query is required"))
	}
	hits, err := h.service.Search(c.Context(), apiKey(c), req.Query, req.Limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	if hits == nil {
		hits = []SearchHit{}
	}
	return c.JSON(fiber.Map{"results": hits})
}

// HandleBySource filters entries by who wrote them.
func (h *Handler) HandleBySource(c *fiber.Ctx) error {
	entries, err := h.service.FilterBySource(c.Context(), apiKey(c), c.Params("source"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// HandleSession returns the entries written during one session.
func (h *Handler) HandleSession(c *fiber.Ctx) error {
	sid := c.Query("session_id")
	if sid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("session_id is required"))
	}
	entries, err := h.service.SessionEntries(c.Context(), apiKey(c), sid)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return c.JSON(fiber.Map{"session_id": sid, "entries": entries})
}

// HandleHistory returns the session's write order, repeats included.
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	sid := c.Query("session_id")
	if sid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("session_id is required"))
	}
	keys, err := h.service.History(c.Context(), apiKey(c), sid)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(fiber.Map{"session_id": sid, "history": keys})
}

// HandleDelete removes one entry.
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	key := c.Params("key")
	if err := h.service.Delete(c.Context(), apiKey(c), key); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(api.NewError("Entry not found"))
	}
	return c.JSON(api.DeleteResponse{Message: fmt.Sprintf("Entry '%s' deleted successfully", key)})
}

// HandleClearSession wipes a session's entries and history.
func (h *Handler) HandleClearSession(c *fiber.Ctx) error {
	sid := c.Query("session_id")
	if sid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError("session_id is required"))
	}
	deleted, err := h.service.ClearSession(c.Context(), apiKey(c), sid)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	return c.JSON(fiber.Map{"session_id": sid, "deleted": deleted})
}
