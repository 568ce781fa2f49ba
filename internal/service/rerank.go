package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/meridianedu/leadmatch/internal/domain"
	"github.com/meridianedu/leadmatch/internal/port"
)

// Evaluator narrows similarity candidates to a curated match set using the
// generative model, and validates the model's structured output strictly
// before anything downstream sees it.
type Evaluator struct {
	ai port.AIProvider
}

// NewEvaluator creates an evaluator backed by the given AI provider.
func NewEvaluator(ai port.AIProvider) *Evaluator {
	return &Evaluator{ai: ai}
}

// rerankResponse is the exact document the model is instructed to return.
// Matches is a pointer so an absent field can be told apart from an empty
// list: the former is a contract violation, the latter a valid "no strong
// matches" answer.
type rerankResponse struct {
	Matches *[]rerankItem `json:"matches"`
}

type rerankItem struct {
	LeadID string `json:"lead_id"`
	Reason string `json:"reason"`
}

// Rerank selects at most limit matches from candidates. Identifiers the
// model returns that are not in the candidate set are dropped with a
// warning rather than trusted; any structural violation of the response
// contract fails as an external-service error.
func (e *Evaluator) Rerank(ctx context.Context, profileText string, candidates []domain.Candidate, limit int) ([]domain.RankedMatch, error) {
	prompt := buildRerankPrompt(profileText, candidates, limit)

	raw, err := e.ai.CompleteJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rerank completion: %w", err)
	}

	var resp rerankResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, port.Externalf("parse rerank response: %w (content: %s)", err, truncate(raw, 300))
	}
	if resp.Matches == nil {
		return nil, port.Externalf("rerank response has no matches field (content: %s)", truncate(raw, 300))
	}

	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.LeadID] = struct{}{}
	}

	ranked := make([]domain.RankedMatch, 0, len(*resp.Matches))
	for _, item := range *resp.Matches {
		if item.LeadID == "" || item.Reason == "" {
			return nil, port.Externalf("rerank response contains an incomplete match entry")
		}
		if _, ok := known[item.LeadID]; !ok {
			slog.Warn("rerank returned a lead outside the candidate set, dropping",
				"lead_id", item.LeadID, "model", e.ai.ChatModel())
			continue
		}
		ranked = append(ranked, domain.RankedMatch{LeadID: item.LeadID, Reason: item.Reason})
	}

	if len(ranked) > limit {
		slog.Warn("rerank returned more matches than requested, truncating",
			"returned", len(ranked), "limit", limit)
		ranked = ranked[:limit]
	}

	return ranked, nil
}

// buildRerankPrompt enumerates every candidate with its id, distance, and
// profile, and spells out the selection contract for the model.
func buildRerankPrompt(profileText string, candidates []domain.Candidate, limit int) string {
	var b strings.Builder

	b.WriteString("You are an experienced study-abroad admissions consultant. A new student lead needs to be matched against existing leads with similar profiles.\n\n")
	b.WriteString("New lead profile:\n")
	b.WriteString(profileText)
	b.WriteString("\n\nCandidate leads, ordered by vector distance (smaller = more similar):\n")

	for i, c := range candidates {
		fmt.Fprintf(&b, "\n%d. lead_id: %s (distance: %.4f)\n%s\n", i+1, c.LeadID, c.Distance, c.Profile)
	}

	fmt.Fprintf(&b, `
Select the candidates that genuinely resemble the new lead.

Rules:
- Return at most %d matches. If %d or more candidates are strong matches, return exactly %d; otherwise return all strong matches, which may be none.
- Only use lead_id values from the candidate list above. Never invent an id.
- For each match, give one short reason in English followed by its Chinese translation.
- Respond with strict JSON only, no prose and no markdown, in this exact shape:
{"matches": [{"lead_id": "...", "reason": "..."}]}
- If no candidate is a strong match, respond with {"matches": []}.
`, limit, limit, limit)

	return b.String()
}

// truncate shortens s to at most maxLen bytes, backing up so the cut never
// lands inside a multi-byte rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
