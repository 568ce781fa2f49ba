package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridianedu/leadmatch/internal/domain"
	"github.com/meridianedu/leadmatch/internal/port"
)

// searchNearestQuery orders candidates by ascending cosine distance. The
// distance column and the ORDER BY must use the same operator (<=>), and it
// must match the metric of the stored embeddings: a mismatch silently
// breaks the non-decreasing distance ordering of the candidate sequence.
const searchNearestQuery = `SELECT id,
	       COALESCE(bachelor_school, ''), COALESCE(bachelor_major, ''),
	       COALESCE(gpa, ''), COALESCE(language_test, ''),
	       COALESCE(intended_degree, ''), COALESCE(intended_programs, ''),
	       COALESCE(intended_countries, ''), COALESCE(target_term, ''),
	       COALESCE(work_experience, ''),
	       embedding <=> $1::vector AS distance
	FROM leads
	WHERE embedding IS NOT NULL AND id <> $2
	ORDER BY embedding <=> $1::vector
	LIMIT $3`

// SearchNearest runs an ascending cosine-distance search over the leads
// table, excluding the queried lead itself and rows with no embedding.
func (r *LeadRepository) SearchNearest(ctx context.Context, id string, vector []float32, width int) ([]domain.Candidate, error) {
	if len(vector) == 0 {
		return nil, port.Validationf("query vector is empty")
	}

	rows, err := r.conn.QueryContext(ctx, searchNearestQuery, vectorToString(vector), id, width)
	if err != nil {
		return nil, port.Storagef("search nearest: %w", err)
	}
	defer rows.Close()

	var candidates []domain.Candidate
	for rows.Next() {
		var l domain.Lead
		var distance float64
		if err := rows.Scan(
			&l.ID, &l.BachelorSchool, &l.BachelorMajor,
			&l.GPA, &l.LanguageTest,
			&l.IntendedDegree, &l.IntendedPrograms,
			&l.IntendedCountries, &l.TargetTerm,
			&l.WorkExperience,
			&distance,
		); err != nil {
			return nil, port.Storagef("scan candidate: %w", err)
		}
		candidates = append(candidates, domain.Candidate{
			LeadID:   l.ID,
			Profile:  l.ProfileText(),
			Distance: distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, port.Storagef("iterate candidates: %w", err)
	}
	return candidates, nil
}

// StoreLeadEmbedding writes the lead's embedding column.
func (r *LeadRepository) StoreLeadEmbedding(ctx context.Context, leadID string, vector []float32) error {
	if len(vector) == 0 {
		return port.Validationf("embedding vector is empty")
	}

	res, err := r.conn.ExecContext(ctx,
		`UPDATE leads SET embedding = $1::vector, updated_at = NOW() WHERE id = $2`,
		vectorToString(vector), leadID,
	)
	if err != nil {
		return port.Storagef("store embedding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return port.ErrLeadNotFound
	}
	return nil
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
