package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridianedu/leadmatch/internal/domain"
	"github.com/meridianedu/leadmatch/internal/port"
)

// PostgresStore owns the database handle and hands out per-invocation
// repositories bound to a dedicated connection.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and verifies it with a ping.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Acquire checks out a dedicated connection for one pipeline invocation.
// The caller must Close the returned repository on every exit path.
func (s *PostgresStore) Acquire(ctx context.Context) (port.LeadRepository, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, port.Storagef("acquire connection: %w", err)
	}
	return &LeadRepository{conn: conn}, nil
}

// LeadRepository implements port.LeadRepository over a single connection.
type LeadRepository struct {
	conn *sql.Conn
}

// Close releases the dedicated connection back to the pool.
func (r *LeadRepository) Close() error {
	return r.conn.Close()
}

// GetLead fetches a lead by primary key.
func (r *LeadRepository) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	query := `SELECT id,
	                 COALESCE(bachelor_school, ''), COALESCE(bachelor_major, ''),
	                 COALESCE(gpa, ''), COALESCE(language_test, ''),
	                 COALESCE(intended_degree, ''), COALESCE(intended_programs, ''),
	                 COALESCE(intended_countries, ''), COALESCE(target_term, ''),
	                 COALESCE(work_experience, ''),
	                 created_at, updated_at
	          FROM leads WHERE id = $1`

	l, err := scanLead(r.conn.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrLeadNotFound
	}
	if err != nil {
		return nil, port.Storagef("get lead: %w", err)
	}
	return l, nil
}

// scanLead reads one lead row. The timestamp columns are nullable in older
// rows, so they go through sql.NullTime instead of failing the scan.
func scanLead(scan func(dest ...any) error) (*domain.Lead, error) {
	var l domain.Lead
	var created, updated sql.NullTime
	if err := scan(
		&l.ID, &l.BachelorSchool, &l.BachelorMajor,
		&l.GPA, &l.LanguageTest,
		&l.IntendedDegree, &l.IntendedPrograms,
		&l.IntendedCountries, &l.TargetTerm,
		&l.WorkExperience,
		&created, &updated,
	); err != nil {
		return nil, err
	}
	l.CreatedAt = created.Time
	l.UpdatedAt = updated.Time
	return &l, nil
}

// ReplaceMatches supersedes all stored matches for a lead. The delete is
// best-effort: a failure there is logged and the insert still runs, so
// stale rows never block a fresh result set. Insert failure is fatal.
func (r *LeadRepository) ReplaceMatches(ctx context.Context, leadID string, matches []domain.RankedMatch) error {
	if len(matches) == 0 {
		return nil
	}

	if _, err := r.conn.ExecContext(ctx, `DELETE FROM lead_matches WHERE lead_id = $1`, leadID); err != nil {
		slog.Warn("delete previous matches failed", "lead_id", leadID, "error", err)
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return port.Storagef("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO lead_matches (lead_id, matched_lead_id, reason)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (lead_id, matched_lead_id) DO NOTHING`)
	if err != nil {
		return port.Storagef("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range matches {
		if _, err := stmt.ExecContext(ctx, leadID, m.LeadID, m.Reason); err != nil {
			return port.Storagef("insert match: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return port.Storagef("commit matches: %w", err)
	}
	return nil
}

// ListMatches returns the persisted match set for a lead.
func (r *LeadRepository) ListMatches(ctx context.Context, leadID string) ([]domain.MatchRecord, error) {
	query := `SELECT lead_id, matched_lead_id, reason, created_at
	          FROM lead_matches
	          WHERE lead_id = $1
	          ORDER BY created_at, matched_lead_id`

	rows, err := r.conn.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, port.Storagef("list matches: %w", err)
	}
	defer rows.Close()

	var records []domain.MatchRecord
	for rows.Next() {
		var m domain.MatchRecord
		if err := rows.Scan(&m.LeadID, &m.MatchedLeadID, &m.Reason, &m.CreatedAt); err != nil {
			return nil, port.Storagef("scan match: %w", err)
		}
		records = append(records, m)
	}
	if err := rows.Err(); err != nil {
		return nil, port.Storagef("iterate matches: %w", err)
	}
	return records, nil
}
