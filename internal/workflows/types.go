package workflows

import "phitsreport/internal/plan"

type SweepInput struct {
	SweepID               string    `json:"sweep_id"`
	Plan                  plan.Plan `json:"plan"`
	MaxConcurrentChildren int       `json:"max_concurrent_children"`
	RunTimeoutSecs        int       `json:"run_timeout_seconds"`
}

type ConvergenceInput struct {
	SweepID        string         `json:"sweep_id"`
	Template       string         `json:"template"`
	Report         string         `json:"report"`
	Kinds          []string       `json:"kinds"`
	Case           plan.Case      `json:"case"`
	Grow           plan.Grow      `json:"grow"`
	Criterion      plan.Criterion `json:"criterion"`
	RunTimeoutSecs int            `json:"run_timeout_seconds"`
}

const (
	StatusRunning      = "running"
	StatusConverged    = "converged"
	StatusLimitReached = "limit_reached"
	StatusFailed       = "failed"
)

type IterationResult struct {
	Iteration   int        `json:"iteration"`
	Parameter   float64    `json:"parameter"`
	RunDir      string     `json:"run_dir"`
	ReportID    string     `json:"report_id"`
	ParseErrors int        `json:"parse_errors"`
	Probe       plan.Probe `json:"probe"`
}

type ConvergenceResult struct {
	Case           string            `json:"case"`
	Status         string            `json:"status"`
	FinalParameter float64           `json:"final_parameter"`
	FailReason     string            `json:"fail_reason,omitempty"`
	Iterations     []IterationResult `json:"iterations"`
}

type CaseStatus struct {
	Case        string            `json:"case"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	Parameter   float64           `json:"parameter"`
	Iteration   int               `json:"iteration"`
	Steps       map[string]string `json:"steps"`
}

type SweepProgress struct {
	SweepID       string            `json:"sweep_id"`
	Total         int               `json:"total"`
	Done          int               `json:"done"`
	Failed        int               `json:"failed"`
	PerCase       map[string]string `json:"per_case_status"`
	ChildWorkflow map[string]string `json:"child_workflow_ids,omitempty"`
}

type SweepResult struct {
	SweepID     string              `json:"sweep_id"`
	Status      string              `json:"status"`
	SummaryPath string              `json:"summary_path,omitempty"`
	Cases       []ConvergenceResult `json:"cases"`
}
