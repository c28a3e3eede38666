package models

import (
	"encoding/json"
	"time"
)

type Report struct {
	ReportID     string          `json:"report_id"`
	Source       string          `json:"source"`
	SHA256       string          `json:"sha256"`
	Kinds        []string        `json:"kinds"`
	PageCount    int             `json:"page_count"`
	ErrorCount   int             `json:"error_count"`
	WarningCount int             `json:"warning_count"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	Errors       json.RawMessage `json:"errors,omitempty"`
	Warnings     json.RawMessage `json:"warnings,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ReportPage is one decoded page stored as its JSON record.
type ReportPage struct {
	ReportID string          `json:"report_id"`
	Kind     string          `json:"kind"`
	PageID   int             `json:"page_id"`
	Position int             `json:"position"`
	Record   json.RawMessage `json:"record"`
}

type ConvergenceStep struct {
	SweepID   string    `json:"sweep_id"`
	CaseName  string    `json:"case_name"`
	Iteration int       `json:"iteration"`
	Parameter float64   `json:"parameter"`
	Value     float64   `json:"value"`
	RelError  float64   `json:"rel_error"`
	Continue  bool      `json:"continue"`
	ReportID  string    `json:"report_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
