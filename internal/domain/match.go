package domain

import "time"

// Candidate is one row returned by the nearest-neighbor search: a lead id,
// its projected profile text, and its cosine distance to the query vector.
// Smaller distance means more similar; results are ordered ascending.
type Candidate struct {
	LeadID   string  `json:"lead_id"`
	Profile  string  `json:"profile"`
	Distance float64 `json:"distance"`
}

// RankedMatch is one match selected by the re-ranking model, with a short
// bilingual justification. Its LeadID is always drawn from the candidate
// set that was passed to the evaluator.
type RankedMatch struct {
	LeadID string `json:"lead_id"`
	Reason string `json:"reason"`
}

// MatchRecord is a persisted match row, unique per (lead_id,
// matched_lead_id). Each matching run replaces the full set for a lead.
type MatchRecord struct {
	LeadID        string    `json:"lead_id"         db:"lead_id"`
	MatchedLeadID string    `json:"matched_lead_id" db:"matched_lead_id"`
	Reason        string    `json:"reason"          db:"reason"`
	CreatedAt     time.Time `json:"created_at"      db:"created_at"`
}
