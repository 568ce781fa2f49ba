package domain

import (
	"strings"
	"time"
)

// Unset is the sentinel used by the intake forms for attributes the lead
// never filled in. It is treated the same as an absent value everywhere.
const Unset = "-"

// Lead represents a student lead as stored in the leads table. Profile
// attributes are sparse: any of them may be empty or the Unset sentinel.
type Lead struct {
	ID                string    `json:"id"                 db:"id"`
	BachelorSchool    string    `json:"bachelor_school"    db:"bachelor_school"`
	BachelorMajor     string    `json:"bachelor_major"     db:"bachelor_major"`
	GPA               string    `json:"gpa"                db:"gpa"`
	LanguageTest      string    `json:"language_test"      db:"language_test"`
	IntendedDegree    string    `json:"intended_degree"    db:"intended_degree"`
	IntendedPrograms  string    `json:"intended_programs"  db:"intended_programs"`
	IntendedCountries string    `json:"intended_countries" db:"intended_countries"`
	TargetTerm        string    `json:"target_term"        db:"target_term"`
	WorkExperience    string    `json:"work_experience"    db:"work_experience"`
	CreatedAt         time.Time `json:"created_at"         db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"         db:"updated_at"`
}

// profileFields fixes the order and labels of the profile projection.
// Changing this order changes every generated embedding, so treat it as
// part of the stored-data contract.
var profileFields = []struct {
	label string
	value func(*Lead) string
}{
	{"Bachelor school", func(l *Lead) string { return l.BachelorSchool }},
	{"Bachelor major", func(l *Lead) string { return l.BachelorMajor }},
	{"GPA", func(l *Lead) string { return l.GPA }},
	{"Language test", func(l *Lead) string { return l.LanguageTest }},
	{"Intended degree", func(l *Lead) string { return l.IntendedDegree }},
	{"Intended programs", func(l *Lead) string { return l.IntendedPrograms }},
	{"Intended countries", func(l *Lead) string { return l.IntendedCountries }},
	{"Target term", func(l *Lead) string { return l.TargetTerm }},
	{"Work experience", func(l *Lead) string { return l.WorkExperience }},
}

// ProfileText projects the lead into the text blob used for embedding:
// one "Label: value" line per present attribute, in the fixed field order.
// Absent, empty, and Unset attributes are skipped. The result may be empty.
func (l *Lead) ProfileText() string {
	var lines []string
	for _, f := range profileFields {
		v := strings.TrimSpace(f.value(l))
		if v == "" || v == Unset {
			continue
		}
		lines = append(lines, f.label+": "+v)
	}
	return strings.Join(lines, "\n")
}

// HasProfileData reports whether at least one profile attribute carries a
// real value, i.e. whether there is anything to match on.
func (l *Lead) HasProfileData() bool {
	for _, f := range profileFields {
		v := strings.TrimSpace(f.value(l))
		if v != "" && v != Unset {
			return true
		}
	}
	return false
}
