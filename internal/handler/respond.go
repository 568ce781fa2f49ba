package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/meridianedu/leadmatch/internal/domain"
	"github.com/meridianedu/leadmatch/internal/port"
	"github.com/meridianedu/leadmatch/internal/service"
)

// matchResponse is the success body of a matching run. Short-circuit
// outcomes carry a message and an empty match list.
type matchResponse struct {
	LeadID           string               `json:"lead_id"`
	Message          string               `json:"message,omitempty"`
	Matches          []domain.RankedMatch `json:"matches"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
}

// matchListResponse is the body for reading back persisted matches.
type matchListResponse struct {
	LeadID           string               `json:"lead_id"`
	Matches          []domain.MatchRecord `json:"matches"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
}

// messageResponse is the body for operations with no payload to return.
type messageResponse struct {
	LeadID           string `json:"lead_id"`
	Message          string `json:"message"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// errorResponse is the uniform failure body. Error carries the category
// label, Details the wrapped lower-level message.
type errorResponse struct {
	Error            string `json:"error"`
	Details          string `json:"details"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// statusForKind maps the error taxonomy to HTTP statuses.
func statusForKind(kind port.ErrorKind) int {
	switch kind {
	case port.KindValidation:
		return fiber.StatusBadRequest
	case port.KindStorage:
		return fiber.StatusServiceUnavailable
	case port.KindExternal:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// labelForKind maps the error taxonomy to stable caller-facing labels.
func labelForKind(kind port.ErrorKind) string {
	switch kind {
	case port.KindValidation:
		return "Validation error"
	case port.KindStorage:
		return "Database error"
	case port.KindExternal:
		return "AI service error"
	default:
		return "Internal server error"
	}
}

func respondOutcome(c fiber.Ctx, start time.Time, o *service.Outcome) error {
	matches := o.Matches
	if matches == nil {
		matches = []domain.RankedMatch{}
	}
	return c.JSON(matchResponse{
		LeadID:           o.LeadID,
		Message:          o.Message,
		Matches:          matches,
		ProcessingTimeMs: elapsedMs(start),
	})
}

func respondError(c fiber.Ctx, start time.Time, err error) error {
	kind := port.KindOf(err)
	return c.Status(statusForKind(kind)).JSON(errorResponse{
		Error:            labelForKind(kind),
		Details:          err.Error(),
		ProcessingTimeMs: elapsedMs(start),
	})
}
