package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/meridianedu/leadmatch/internal/domain"
	"github.com/meridianedu/leadmatch/internal/port"
	"github.com/meridianedu/leadmatch/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAI struct {
	embedErr error
	response string
}

func (s *stubAI) EmbedModel() string { return "stub-embed" }
func (s *stubAI) ChatModel() string  { return "stub-chat" }

func (s *stubAI) EmbedText(_ context.Context, _ string) ([]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return []float32{0.1, 0.2}, nil
}

func (s *stubAI) CompleteJSON(_ context.Context, _ string) (string, error) {
	if s.response == "" {
		return `{"matches": []}`, nil
	}
	return s.response, nil
}

type stubRepo struct {
	leads      map[string]*domain.Lead
	candidates []domain.Candidate
	stored     map[string][]domain.RankedMatch
	records    []domain.MatchRecord
}

func (s *stubRepo) GetLead(_ context.Context, id string) (*domain.Lead, error) {
	lead, ok := s.leads[id]
	if !ok {
		return nil, port.ErrLeadNotFound
	}
	return lead, nil
}

func (s *stubRepo) SearchNearest(_ context.Context, _ string, _ []float32, _ int) ([]domain.Candidate, error) {
	return s.candidates, nil
}

func (s *stubRepo) ReplaceMatches(_ context.Context, leadID string, matches []domain.RankedMatch) error {
	if s.stored == nil {
		s.stored = map[string][]domain.RankedMatch{}
	}
	s.stored[leadID] = matches
	return nil
}

func (s *stubRepo) ListMatches(_ context.Context, _ string) ([]domain.MatchRecord, error) {
	return s.records, nil
}

func (s *stubRepo) StoreLeadEmbedding(_ context.Context, _ string, _ []float32) error {
	return nil
}

func (s *stubRepo) Close() error { return nil }

type stubStore struct {
	repo port.LeadRepository
}

func (s *stubStore) Acquire(_ context.Context) (port.LeadRepository, error) {
	return s.repo, nil
}

func newTestApp(repo *stubRepo, ai *stubAI) *fiber.App {
	app := fiber.New()
	svc := service.NewMatchService(&stubStore{repo: repo}, ai, service.NewEvaluator(ai), 40, 2)
	NewMatchHandler(svc).Register(app.Group("/api/v1"))
	return app
}

func matchableLead(id string) *domain.Lead {
	return &domain.Lead{
		ID:               id,
		BachelorSchool:   "Fudan University",
		IntendedPrograms: "MSc Computer Science",
	}
}

func TestMatchEndpointSuccess(t *testing.T) {
	repo := &stubRepo{
		leads: map[string]*domain.Lead{"lead-1": matchableLead("lead-1")},
		candidates: []domain.Candidate{
			{LeadID: "alice", Profile: "Bachelor school: NUS", Distance: 0.12},
		},
	}
	ai := &stubAI{response: `{"matches": [{"lead_id": "alice", "reason": "Similar programs. 项目相似。"}]}`}
	app := newTestApp(repo, ai)

	req := httptest.NewRequest("POST", "/api/v1/leads/lead-1/matches", strings.NewReader(`{"limit": 5}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		LeadID           string               `json:"lead_id"`
		Matches          []domain.RankedMatch `json:"matches"`
		ProcessingTimeMs *int64               `json:"processing_time_ms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "lead-1", body.LeadID)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "alice", body.Matches[0].LeadID)
	require.NotNil(t, body.ProcessingTimeMs)
	assert.Equal(t, []domain.RankedMatch{{LeadID: "alice", Reason: "Similar programs. 项目相似。"}}, repo.stored["lead-1"])
}

func TestMatchEndpointEmptyProfileShortCircuit(t *testing.T) {
	repo := &stubRepo{
		leads: map[string]*domain.Lead{
			"lead-1": {ID: "lead-1", BachelorSchool: domain.Unset, IntendedPrograms: domain.Unset},
		},
	}
	app := newTestApp(repo, &stubAI{})

	req := httptest.NewRequest("POST", "/api/v1/leads/lead-1/matches", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Message string               `json:"message"`
		Matches []domain.RankedMatch `json:"matches"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Message)
	assert.NotNil(t, body.Matches)
	assert.Empty(t, body.Matches)
}

func TestMatchEndpointUnknownLeadIs400(t *testing.T) {
	app := newTestApp(&stubRepo{leads: map[string]*domain.Lead{}}, &stubAI{})

	req := httptest.NewRequest("POST", "/api/v1/leads/nope/matches", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Validation error", body.Error)
	assert.Contains(t, body.Details, "not found")
}

func TestMatchEndpointAIFailureIs502(t *testing.T) {
	repo := &stubRepo{leads: map[string]*domain.Lead{"lead-1": matchableLead("lead-1")}}
	ai := &stubAI{embedErr: port.Externalf("embeddings request: timeout")}
	app := newTestApp(repo, ai)

	req := httptest.NewRequest("POST", "/api/v1/leads/lead-1/matches", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "AI service error", body.Error)
}

func TestListMatchesEndpoint(t *testing.T) {
	repo := &stubRepo{
		records: []domain.MatchRecord{
			{LeadID: "lead-1", MatchedLeadID: "alice", Reason: "r. 理由。"},
		},
	}
	app := newTestApp(repo, &stubAI{})

	req := httptest.NewRequest("GET", "/api/v1/leads/lead-1/matches", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		LeadID  string               `json:"lead_id"`
		Matches []domain.MatchRecord `json:"matches"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "lead-1", body.LeadID)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "alice", body.Matches[0].MatchedLeadID)
}

func TestReindexEndpoint(t *testing.T) {
	repo := &stubRepo{leads: map[string]*domain.Lead{"lead-1": matchableLead("lead-1")}}
	app := newTestApp(repo, &stubAI{})

	req := httptest.NewRequest("POST", "/api/v1/leads/lead-1/embedding", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, fiber.StatusBadRequest, statusForKind(port.KindValidation))
	assert.Equal(t, fiber.StatusServiceUnavailable, statusForKind(port.KindStorage))
	assert.Equal(t, fiber.StatusBadGateway, statusForKind(port.KindExternal))
	assert.Equal(t, fiber.StatusInternalServerError, statusForKind(port.KindUnclassified))
}

func TestLabelForKind(t *testing.T) {
	assert.Equal(t, "Validation error", labelForKind(port.KindValidation))
	assert.Equal(t, "Database error", labelForKind(port.KindStorage))
	assert.Equal(t, "AI service error", labelForKind(port.KindExternal))
	assert.Equal(t, "Internal server error", labelForKind(port.KindUnclassified))
}
