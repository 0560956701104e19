package models

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryGuideline  Category = "guideline"
	CategoryRegulation Category = "regulation"
)

// ParseCategory accepts "guideline" or "regulation" in any case.
func ParseCategory(raw string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryGuideline:
		return CategoryGuideline, nil
	case CategoryRegulation:
		return CategoryRegulation, nil
	default:
		return "", fmt.Errorf("unsupported category %q", raw)
	}
}

const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusRejected = "rejected"
)

// Segment is a trimmed slice of normalized text. Start and End are half-open
// rune offsets into the text it was cut from.
type Segment struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type GuidelineSection struct {
	ID         int64  `json:"id" db:"id"`
	ExternalID string `json:"external_id" db:"external_id"`
	Title      string `json:"title" db:"title"`
	Body       string `json:"body" db:"body"`
	Language   string `json:"language" db:"language"`
}

type RegulationSection struct {
	ID             int64  `json:"id" db:"id"`
	ExternalID     string `json:"external_id" db:"external_id"`
	Title          string `json:"title" db:"title"`
	Body           string `json:"body" db:"body"`
	Region         string `json:"region" db:"region"`
	RegulationType string `json:"regulation_type" db:"regulation_type"`
	Language       string `json:"language" db:"language"`
}

type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Match struct {
	ID                int64     `json:"id"`
	GuidelineID       int64     `json:"guideline_id"`
	RegulationID      int64     `json:"regulation_id"`
	Score             float64   `json:"score"`
	Confidence        float64   `json:"confidence"`
	Rationale         string    `json:"rationale"`
	GuidelineExcerpt  *string   `json:"guideline_excerpt,omitempty"`
	RegulationExcerpt *string   `json:"regulation_excerpt,omitempty"`
	GuidelineSpan     *Span     `json:"guideline_span,omitempty"`
	RegulationSpan    *Span     `json:"regulation_span,omitempty"`
	Status            string    `json:"status"`
	Reviewer          *string   `json:"reviewer,omitempty"`
	ReviewerNotes     *string   `json:"reviewer_notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MatchUpdate carries the review fields a reviewer may change. Nil fields are left as they are.
type MatchUpdate struct {
	Status        *string `json:"status,omitempty"`
	Reviewer      *string `json:"reviewer,omitempty"`
	ReviewerNotes *string `json:"reviewer_notes,omitempty"`
}

type UploadSummary struct {
	SectionsCreated int `json:"sections_created"`
	MatchesCreated  int `json:"matches_created"`
}

type GuidelineFilter struct {
	Language string
}

type RegulationFilter struct {
	Region         string
	RegulationType string
}

type BatchRun struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	MatchCount int       `json:"match_count"`
	ReportPath string    `json:"report_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
