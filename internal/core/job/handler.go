package job

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"scrapegate/internal/api"
)

type Handler struct {
	job *JobService
}

func NewHandler(job *JobService) *Handler { return &Handler{job: job} }

func apiKey(c *fiber.Ctx) string {
	if k, ok := c.Locals("api_key").(string); ok {
		return k
	}
	return ""
}

// HandleList returns the caller's jobs, newest first.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	jobs, err := h.job.List(c.Context(), apiKey(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(api.NewError(err.Error()))
	}
	items := make([]api.JobListItem, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, j.ListItem())
	}
	return c.JSON(items)
}

// HandleDetail returns full job information including result counts.
func (h *Handler) HandleDetail(c *fiber.Ctx) error {
	j, err := h.job.GetOwned(c.Context(), apiKey(c), c.Params("jobId"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(api.NewError("Job not found"))
	}
	return c.JSON(j.Detail())
}

// HandleStatus is the polling endpoint.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	j, err := h.job.GetOwned(c.Context(), apiKey(c), c.Params("jobId"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(api.NewError("Job not found"))
	}
	return c.JSON(j.StatusResponse())
}

// HandleResults returns results for a completed job only.
func (h *Handler) HandleResults(c *fiber.Ctx) error {
	j, err := h.job.GetOwned(c.Context(), apiKey(c), c.Params("jobId"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(api.NewError("Job not found"))
	}
	if j.Status != StatusCompleted {
		msg := fmt.Sprintf("Job is not completed yet. Current status: %s", j.Status)
		return c.Status(fiber.StatusBadRequest).JSON(api.NewError(msg))
	}
	results := j.Results
	if results == nil {
		results = []api.ResultItem{}
	}
	return c.JSON(api.JobResultsResponse{
		JobID:   j.ID,
		Query:   j.Query,
		Domain:  j.Domain,
		Results: results,
	})
}

// HandleDelete removes a job and its results.
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	id := c.Params("jobId")
	if err := h.job.Delete(c.Context(), apiKey(c), id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(api.NewError("Job not found"))
	}
	return c.JSON(api.DeleteResponse{Message: fmt.Sprintf("Job with ID '%s' deleted successfully", id)})
}
