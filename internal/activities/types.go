package activities

import (
	"phitsreport/internal/plan"
	"phitsreport/internal/report"
)

type PrepareRunInput struct {
	SweepID   string    `json:"sweep_id"`
	Template  string    `json:"template"`
	Case      plan.Case `json:"case"`
	Grow      plan.Grow `json:"grow"`
	Value     float64   `json:"value"`
	Iteration int       `json:"iteration"`
}

type PrepareRunOutput struct {
	RunDir    string `json:"run_dir"`
	InputPath string `json:"input_path"`
}

type RunSimulationInput struct {
	RunDir string `json:"run_dir"`
}

type RunSimulationOutput struct {
	ExitCode   int   `json:"exit_code"`
	DurationMS int64 `json:"duration_ms"`
}

type ParseReportInput struct {
	Path      string          `json:"path"`
	Kinds     []string        `json:"kinds"`
	SweepID   string          `json:"sweep_id,omitempty"`
	CaseName  string          `json:"case_name,omitempty"`
	Iteration int             `json:"iteration,omitempty"`
	Parameter float64         `json:"parameter,omitempty"`
	Criterion *plan.Criterion `json:"criterion,omitempty"`
}

type ParseReportOutput struct {
	ReportID     string               `json:"report_id"`
	ArtifactPath string               `json:"artifact_path"`
	PageCount    int                  `json:"page_count"`
	Errors       []report.ErrorDetail `json:"errors"`
	Warnings     int                  `json:"warnings"`
	Probe        *plan.Probe          `json:"probe,omitempty"`
}

type WriteSweepSummaryInput struct {
	SweepID string         `json:"sweep_id"`
	Summary map[string]any `json:"summary"`
}

type WriteSweepSummaryOutput struct {
	Path string `json:"path"`
}
