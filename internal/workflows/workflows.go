package workflows

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"phitsreport/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetCaseStatus    = "GetCaseStatus"
	QueryGetSweepProgress = "GetSweepProgress"
)

// SweepWorkflow runs one ConvergenceWorkflow per plan case, at most
// MaxConcurrentChildren at a time, and writes a summary artifact.
func SweepWorkflow(ctx workflow.Context, input SweepInput) (SweepResult, error) {
	cases := input.Plan.Expand()
	progress := SweepProgress{
		SweepID:       input.SweepID,
		Total:         len(cases),
		PerCase:       map[string]string{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetSweepProgress, func() (SweepProgress, error) {
		return progress, nil
	}); err != nil {
		return SweepResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}

	result := SweepResult{SweepID: input.SweepID, Status: "completed"}
	for i := 0; i < len(cases); i += maxChildren {
		end := min(i+maxChildren, len(cases))
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		for _, c := range cases[i:end] {
			progress.PerCase[c.Name] = StatusRunning
			workflowID := "case-" + sanitizeID(input.SweepID) + "-" + sanitizeID(c.Name)
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: workflowID})
			f := workflow.ExecuteChildWorkflow(childCtx, ConvergenceWorkflow, ConvergenceInput{
				SweepID:        input.SweepID,
				Template:       input.Plan.Template,
				Report:         input.Plan.Report,
				Kinds:          input.Plan.Kinds,
				Case:           c,
				Grow:           input.Plan.Grow,
				Criterion:      input.Plan.Criterion,
				RunTimeoutSecs: input.RunTimeoutSecs,
			})
			futures = append(futures, f)
			progress.ChildWorkflow[c.Name] = workflowID
		}

		for idx, f := range futures {
			name := cases[i+idx].Name
			var child ConvergenceResult
			if err := f.Get(ctx, &child); err != nil {
				child = ConvergenceResult{Case: name, Status: StatusFailed, FailReason: err.Error()}
			}
			if child.Status == StatusFailed {
				progress.Failed++
			}
			progress.Done++
			progress.PerCase[name] = child.Status
			result.Cases = append(result.Cases, child)
		}
	}

	var summaryOut activities.WriteSweepSummaryOutput
	err := workflow.ExecuteActivity(ctx, "WriteSweepSummaryActivity", activities.WriteSweepSummaryInput{
		SweepID: input.SweepID,
		Summary: map[string]any{
			"sweep_id":        input.SweepID,
			"plan":            input.Plan.Name,
			"total":           progress.Total,
			"done":            progress.Done,
			"failed":          progress.Failed,
			"per_case_status": progress.PerCase,
			"cases":           result.Cases,
			"generated_at":    workflow.Now(ctx),
		},
	}).Get(ctx, &summaryOut)
	if err == nil {
		result.SummaryPath = summaryOut.Path
	}
	return result, nil
}

// ConvergenceWorkflow grows one deck parameter until the criterion says
// stop or the parameter range is exhausted.
func ConvergenceWorkflow(ctx workflow.Context, input ConvergenceInput) (ConvergenceResult, error) {
	status := CaseStatus{Case: input.Case.Name, CurrentStep: "init", Status: StatusRunning, Steps: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetCaseStatus, func() (CaseStatus, error) {
		return status, nil
	}); err != nil {
		return ConvergenceResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	runCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: durationOrDefault(input.RunTimeoutSecs, 3600) + time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	result := ConvergenceResult{Case: input.Case.Name, Status: StatusLimitReached}
	fail := func(step string, err error) (ConvergenceResult, error) {
		status.Steps[step] = StatusFailed
		status.Status = StatusFailed
		result.Status = StatusFailed
		result.FailReason = step + ": " + err.Error()
		return result, nil
	}

	for i, value := range input.Grow.Values() {
		iter := i + 1
		status.Iteration = iter
		status.Parameter = value
		key := "iteration-" + strconv.Itoa(iter)

		status.CurrentStep = key + "/prepare"
		var prep activities.PrepareRunOutput
		if err := workflow.ExecuteActivity(ctx, "PrepareRunActivity", activities.PrepareRunInput{
			SweepID:   input.SweepID,
			Template:  input.Template,
			Case:      input.Case,
			Grow:      input.Grow,
			Value:     value,
			Iteration: iter,
		}).Get(ctx, &prep); err != nil {
			return fail(status.CurrentStep, err)
		}

		status.CurrentStep = key + "/run"
		if err := workflow.ExecuteActivity(runCtx, "RunSimulationActivity", activities.RunSimulationInput{RunDir: prep.RunDir}).Get(ctx, nil); err != nil {
			return fail(status.CurrentStep, err)
		}

		status.CurrentStep = key + "/parse"
		crit := input.Criterion
		var parsed activities.ParseReportOutput
		if err := workflow.ExecuteActivity(ctx, "ParseReportActivity", activities.ParseReportInput{
			Path:      filepath.Join(prep.RunDir, input.Report),
			Kinds:     input.Kinds,
			SweepID:   input.SweepID,
			CaseName:  input.Case.Name,
			Iteration: iter,
			Parameter: value,
			Criterion: &crit,
		}).Get(ctx, &parsed); err != nil {
			return fail(status.CurrentStep, err)
		}
		status.Steps[key] = "done"

		it := IterationResult{
			Iteration:   iter,
			Parameter:   value,
			RunDir:      prep.RunDir,
			ReportID:    parsed.ReportID,
			ParseErrors: len(parsed.Errors),
		}
		if parsed.Probe != nil {
			it.Probe = *parsed.Probe
		}
		result.Iterations = append(result.Iterations, it)
		result.FinalParameter = value
		if !it.Probe.Continue {
			result.Status = StatusConverged
			break
		}
	}
	status.CurrentStep = "done"
	status.Status = result.Status
	return result, nil
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
