package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/tokentap/pkg/llm"
	"github.com/papercomputeco/tokentap/pkg/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Error string `json:"error"`
}

// ListResponse is a page of records, newest first.
type ListResponse struct {
	Count   int            `json:"count"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	Records []*llm.Metrics `json:"records"`
}

// UsageResponse holds per backend and model totals plus their sum.
type UsageResponse struct {
	Totals           []storage.Totals `json:"totals"`
	Requests         int64            `json:"requests"`
	PromptTokens     uint64           `json:"prompt_tokens"`
	CompletionTokens uint64           `json:"completion_tokens"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListRecords returns stored records filtered by the model, backend
// and outcome query parameters.
func (s *Server) handleListRecords(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > maxListLimit || offset < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "limit must be 1-1000 and offset non-negative"})
	}

	q := storage.Query{
		Model:   c.Query("model"),
		Backend: c.Query("backend"),
		Outcome: llm.Outcome(c.Query("outcome")),
		Limit:   limit,
		Offset:  offset,
	}

	records, err := s.driver.List(c.Context(), q)
	if err != nil {
		s.logger.Error("failed to list records", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to list records"})
	}
	if records == nil {
		records = []*llm.Metrics{}
	}

	return c.JSON(ListResponse{
		Count:   len(records),
		Limit:   limit,
		Offset:  offset,
		Records: records,
	})
}

// handleGetRecord returns a single record by request ID.
func (s *Server) handleGetRecord(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "id parameter required"})
	}

	record, err := s.driver.Get(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "record not found"})
		}
		s.logger.Error("failed to get record", "request_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to get record"})
	}

	return c.JSON(record)
}

// handleUsage returns aggregate token usage.
func (s *Server) handleUsage(c *fiber.Ctx) error {
	totals, err := s.driver.Totals(c.Context())
	if err != nil {
		s.logger.Error("failed to aggregate usage", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to aggregate usage"})
	}

	resp := UsageResponse{Totals: totals}
	if resp.Totals == nil {
		resp.Totals = []storage.Totals{}
	}
	for _, t := range totals {
		resp.Requests += t.Requests
		resp.PromptTokens += t.PromptTokens
		resp.CompletionTokens += t.CompletionTokens
	}

	return c.JSON(resp)
}
