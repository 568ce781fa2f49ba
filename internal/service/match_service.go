package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meridianedu/leadmatch/internal/domain"
	"github.com/meridianedu/leadmatch/internal/port"
)

const (
	// MaxLeadIDLength bounds sanitized lead identifiers.
	MaxLeadIDLength = 100
	// MaxMatchLimit is the hard ceiling on requested matches.
	MaxMatchLimit = 10
	// DefaultMatchLimit applies when the caller sends no limit.
	DefaultMatchLimit = 10
)

// Outcome is the result of one matching run. Message is set only on the
// semantic short-circuits (no profile data, no candidates), which are
// success outcomes with an empty match list.
type Outcome struct {
	LeadID  string
	Message string
	Matches []domain.RankedMatch
}

// MatchService sequences the matching pipeline: validate, fetch, project,
// embed, search, rerank, persist. It owns the connection lifecycle and the
// step-level logging.
type MatchService struct {
	store          port.Store
	ai             port.AIProvider
	evaluator      *Evaluator
	candidateWidth int
	embeddingDim   int
}

// NewMatchService wires the pipeline's collaborators. embeddingDim is the
// vector length the embedding model is contracted to return.
func NewMatchService(store port.Store, ai port.AIProvider, evaluator *Evaluator, candidateWidth, embeddingDim int) *MatchService {
	return &MatchService{
		store:          store,
		ai:             ai,
		evaluator:      evaluator,
		candidateWidth: candidateWidth,
		embeddingDim:   embeddingDim,
	}
}

// embedProfile generates the profile embedding and enforces the model's
// fixed-dimension contract. A vector of the wrong length would store or
// query garbage, so it is rejected as an external-service failure.
func (s *MatchService) embedProfile(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.ai.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) != s.embeddingDim {
		return nil, port.Externalf("embedding dimension mismatch: got %d, want %d", len(vector), s.embeddingDim)
	}
	return vector, nil
}

// SanitizeLeadID trims the raw identifier, strips everything outside the
// conservative [A-Za-z0-9_-] allow-list, and enforces a length of 1-100.
func SanitizeLeadID(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	id := b.String()
	if id == "" {
		return "", port.Validationf("lead id is empty")
	}
	if len(id) > MaxLeadIDLength {
		return "", port.Validationf("lead id exceeds %d characters", MaxLeadIDLength)
	}
	return id, nil
}

// ClampLimit normalizes the requested match count to [1, MaxMatchLimit],
// defaulting when the caller sent nothing.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultMatchLimit
	}
	if limit > MaxMatchLimit {
		return MaxMatchLimit
	}
	return limit
}

// Match runs the full pipeline for one lead and persists the chosen
// matches idempotently. Invalid input fails before any connection is
// opened or external call is made.
func (s *MatchService) Match(ctx context.Context, rawID string, limit int) (*Outcome, error) {
	start := time.Now()

	id, err := SanitizeLeadID(rawID)
	if err != nil {
		return nil, s.fail(start, rawID, "validate lead id", err)
	}
	limit = ClampLimit(limit)

	repo, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, s.fail(start, rawID, "acquire connection", err)
	}
	defer s.release(repo, id)

	lead, err := repo.GetLead(ctx, id)
	if err != nil {
		if errors.Is(err, port.ErrLeadNotFound) {
			err = port.Validationf("lead %s not found", id)
		}
		return nil, s.fail(start, id, "fetch lead", err)
	}

	if !lead.HasProfileData() {
		slog.Info("lead has no meaningful profile data", "lead_id", id,
			"elapsed_ms", time.Since(start).Milliseconds())
		return &Outcome{
			LeadID:  id,
			Message: "Lead profile has no meaningful data to match on.",
			Matches: []domain.RankedMatch{},
		}, nil
	}

	text := lead.ProfileText()
	if text == "" {
		slog.Info("lead profile projected to empty text", "lead_id", id,
			"elapsed_ms", time.Since(start).Milliseconds())
		return &Outcome{
			LeadID:  id,
			Message: "No text could be generated from the lead profile.",
			Matches: []domain.RankedMatch{},
		}, nil
	}

	vector, err := s.embedProfile(ctx, text)
	if err != nil {
		return nil, s.fail(start, id, "embed profile", err)
	}

	candidates, err := repo.SearchNearest(ctx, id, vector, s.candidateWidth)
	if err != nil {
		return nil, s.fail(start, id, "search candidates", err)
	}

	if len(candidates) == 0 {
		slog.Info("no candidate leads available", "lead_id", id,
			"elapsed_ms", time.Since(start).Milliseconds())
		return &Outcome{
			LeadID:  id,
			Message: "No candidate leads available for matching.",
			Matches: []domain.RankedMatch{},
		}, nil
	}

	ranked, err := s.evaluator.Rerank(ctx, text, candidates, limit)
	if err != nil {
		return nil, s.fail(start, id, "rerank candidates", err)
	}

	if err := repo.ReplaceMatches(ctx, id, ranked); err != nil {
		return nil, s.fail(start, id, "persist matches", err)
	}

	slog.Info("lead matching complete", "lead_id", id,
		"candidates", len(candidates), "matches", len(ranked),
		"elapsed_ms", time.Since(start).Milliseconds())

	return &Outcome{LeadID: id, Matches: ranked}, nil
}

// Reindex projects and embeds a lead's profile, then stores the vector so
// the lead becomes searchable. A lead with no profile text cannot be
// indexed and is rejected as a validation failure.
func (s *MatchService) Reindex(ctx context.Context, rawID string) error {
	start := time.Now()

	id, err := SanitizeLeadID(rawID)
	if err != nil {
		return s.fail(start, rawID, "validate lead id", err)
	}

	repo, err := s.store.Acquire(ctx)
	if err != nil {
		return s.fail(start, rawID, "acquire connection", err)
	}
	defer s.release(repo, id)

	lead, err := repo.GetLead(ctx, id)
	if err != nil {
		if errors.Is(err, port.ErrLeadNotFound) {
			err = port.Validationf("lead %s not found", id)
		}
		return s.fail(start, id, "fetch lead", err)
	}

	text := lead.ProfileText()
	if text == "" {
		return s.fail(start, id, "project profile",
			port.Validationf("lead %s has no profile text to embed", id))
	}

	vector, err := s.embedProfile(ctx, text)
	if err != nil {
		return s.fail(start, id, "embed profile", err)
	}

	if err := repo.StoreLeadEmbedding(ctx, id, vector); err != nil {
		if errors.Is(err, port.ErrLeadNotFound) {
			err = port.Validationf("lead %s not found", id)
		}
		return s.fail(start, id, "store embedding", err)
	}

	slog.Info("lead embedding updated", "lead_id", id,
		"dimension", len(vector), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// ListMatches returns the persisted match set for a lead.
func (s *MatchService) ListMatches(ctx context.Context, rawID string) ([]domain.MatchRecord, error) {
	start := time.Now()

	id, err := SanitizeLeadID(rawID)
	if err != nil {
		return nil, s.fail(start, rawID, "validate lead id", err)
	}

	repo, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, s.fail(start, rawID, "acquire connection", err)
	}
	defer s.release(repo, id)

	records, err := repo.ListMatches(ctx, id)
	if err != nil {
		return nil, s.fail(start, id, "list matches", err)
	}
	return records, nil
}

func (s *MatchService) release(repo port.LeadRepository, leadID string) {
	if err := repo.Close(); err != nil {
		slog.Warn("release connection failed", "lead_id", leadID, "error", err)
	}
}

func (s *MatchService) fail(start time.Time, leadID, step string, err error) error {
	slog.Error("lead matching failed", "lead_id", leadID, "step", step,
		"elapsed_ms", time.Since(start).Milliseconds(), "error", err)
	return fmt.Errorf("%s: %w", step, err)
}
