package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/meridianedu/leadmatch/internal/domain"
	"github.com/meridianedu/leadmatch/internal/port"
	"github.com/meridianedu/leadmatch/internal/service"
)

// MatchHandler exposes the matching pipeline over HTTP.
type MatchHandler struct {
	matches *service.MatchService
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(matches *service.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// Register sets up lead matching routes.
func (h *MatchHandler) Register(router fiber.Router) {
	leads := router.Group("/leads")
	leads.Post("/:id/matches", h.Match)
	leads.Get("/:id/matches", h.ListMatches)
	leads.Post("/:id/embedding", h.Reindex)
}

// Match runs the matching pipeline for a lead. The body is optional and
// may carry a result limit, clamped server-side to [1, 10].
func (h *MatchHandler) Match(c fiber.Ctx) error {
	start := time.Now()

	var body struct {
		Limit int `json:"limit"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return respondError(c, start, port.Validationf("invalid request body: %w", err))
		}
	}

	outcome, err := h.matches.Match(c.Context(), c.Params("id"), body.Limit)
	if err != nil {
		return respondError(c, start, err)
	}
	return respondOutcome(c, start, outcome)
}

// ListMatches returns the persisted match set for a lead.
func (h *MatchHandler) ListMatches(c fiber.Ctx) error {
	start := time.Now()

	id, err := service.SanitizeLeadID(c.Params("id"))
	if err != nil {
		return respondError(c, start, err)
	}

	records, err := h.matches.ListMatches(c.Context(), id)
	if err != nil {
		return respondError(c, start, err)
	}
	if records == nil {
		records = []domain.MatchRecord{}
	}
	return c.JSON(matchListResponse{
		LeadID:           id,
		Matches:          records,
		ProcessingTimeMs: elapsedMs(start),
	})
}

// Reindex recomputes and stores the lead's profile embedding.
func (h *MatchHandler) Reindex(c fiber.Ctx) error {
	start := time.Now()

	id, err := service.SanitizeLeadID(c.Params("id"))
	if err != nil {
		return respondError(c, start, err)
	}

	if err := h.matches.Reindex(c.Context(), id); err != nil {
		return respondError(c, start, err)
	}
	return c.JSON(messageResponse{
		LeadID:           id,
		Message:          "Lead embedding updated.",
		ProcessingTimeMs: elapsedMs(start),
	})
}
