package workflows

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"phitsreport/internal/activities"
	"phitsreport/internal/plan"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func registerRunActivities(env *testsuite.TestWorkflowEnvironment) {
	registerActivityName(env, "PrepareRunActivity", func(context.Context, activities.PrepareRunInput) (activities.PrepareRunOutput, error) {
		return activities.PrepareRunOutput{}, nil
	})
	registerActivityName(env, "RunSimulationActivity", func(context.Context, activities.RunSimulationInput) (activities.RunSimulationOutput, error) {
		return activities.RunSimulationOutput{}, nil
	})
	registerActivityName(env, "ParseReportActivity", func(context.Context, activities.ParseReportInput) (activities.ParseReportOutput, error) {
		return activities.ParseReportOutput{}, nil
	})
	registerActivityName(env, "WriteSweepSummaryActivity", func(context.Context, activities.WriteSweepSummaryInput) (activities.WriteSweepSummaryOutput, error) {
		return activities.WriteSweepSummaryOutput{}, nil
	})
}

func convergenceInput() ConvergenceInput {
	return ConvergenceInput{
		SweepID:  "sw1",
		Template: "/plans/target.inp",
		Report:   "cross.out",
		Kinds:    []string{"current-energy"},
		Case:     plan.Case{Name: "w"},
		Grow:     plan.Grow{Section: "surface", Key: "40", Field: 2, Start: 5, Step: 5, Max: 15},
	}
}

func mockPrepare(env *testsuite.TestWorkflowEnvironment) {
	env.OnActivity("PrepareRunActivity", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.PrepareRunInput) (activities.PrepareRunOutput, error) {
			dir := "/runs/p" + strconv.FormatFloat(in.Value, 'f', -1, 64)
			return activities.PrepareRunOutput{RunDir: dir, InputPath: dir + "/phits.in"}, nil
		})
}

func TestConvergenceWorkflowStopsWhenCriterionMet(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ConvergenceWorkflow)
	registerRunActivities(env)

	mockPrepare(env)
	env.OnActivity("RunSimulationActivity", mock.Anything, mock.Anything).Return(activities.RunSimulationOutput{}, nil)
	var parsedPaths []string
	env.OnActivity("ParseReportActivity", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.ParseReportInput) (activities.ParseReportOutput, error) {
			parsedPaths = append(parsedPaths, in.Path)
			return activities.ParseReportOutput{
				ReportID: "r" + strconv.Itoa(in.Iteration),
				Probe:    &plan.Probe{Value: 1, Continue: in.Parameter < 10},
			}, nil
		})

	env.ExecuteWorkflow(ConvergenceWorkflow, convergenceInput())
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out ConvergenceResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusConverged, out.Status)
	require.Equal(t, 10.0, out.FinalParameter)
	require.Len(t, out.Iterations, 2)
	require.Equal(t, "r2", out.Iterations[1].ReportID)
	require.Equal(t, []string{"/runs/p5/cross.out", "/runs/p10/cross.out"}, parsedPaths)

	val, err := env.QueryWorkflow(QueryGetCaseStatus)
	require.NoError(t, err)
	var st CaseStatus
	require.NoError(t, val.Get(&st))
	require.Equal(t, StatusConverged, st.Status)
	require.Equal(t, 2, st.Iteration)
}

func TestConvergenceWorkflowLimitReached(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ConvergenceWorkflow)
	registerRunActivities(env)

	mockPrepare(env)
	env.OnActivity("RunSimulationActivity", mock.Anything, mock.Anything).Return(activities.RunSimulationOutput{}, nil)
	env.OnActivity("ParseReportActivity", mock.Anything, mock.Anything).Return(
		activities.ParseReportOutput{Probe: &plan.Probe{Value: 1, Continue: true}}, nil)

	env.ExecuteWorkflow(ConvergenceWorkflow, convergenceInput())
	require.NoError(t, env.GetWorkflowError())

	var out ConvergenceResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusLimitReached, out.Status)
	require.Equal(t, 15.0, out.FinalParameter)
	require.Len(t, out.Iterations, 3)
}

func TestConvergenceWorkflowRunFailureFailsGracefully(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ConvergenceWorkflow)
	registerRunActivities(env)

	mockPrepare(env)
	env.OnActivity("RunSimulationActivity", mock.Anything, mock.Anything).Return(
		activities.RunSimulationOutput{}, temporal.NewNonRetryableApplicationError("exit status 1", "SimulationFailed", errors.New("exit status 1")))

	env.ExecuteWorkflow(ConvergenceWorkflow, convergenceInput())
	require.NoError(t, env.GetWorkflowError())

	var out ConvergenceResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, StatusFailed, out.Status)
	require.Contains(t, out.FailReason, "iteration-1/run")
	require.Empty(t, out.Iterations)
}

func TestSweepWorkflowFansOutCases(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(SweepWorkflow)
	env.RegisterWorkflow(ConvergenceWorkflow)
	registerRunActivities(env)

	env.OnWorkflow(ConvergenceWorkflow, mock.Anything, mock.Anything).Return(
		func(_ workflow.Context, in ConvergenceInput) (ConvergenceResult, error) {
			if in.Case.Name == "lead" {
				return ConvergenceResult{}, errors.New("boom")
			}
			return ConvergenceResult{Case: in.Case.Name, Status: StatusConverged, FinalParameter: 10}, nil
		})
	var summary activities.WriteSweepSummaryInput
	env.OnActivity("WriteSweepSummaryActivity", mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.WriteSweepSummaryInput) (activities.WriteSweepSummaryOutput, error) {
			summary = in
			return activities.WriteSweepSummaryOutput{Path: "/out/sweeps/sw1/summary.json"}, nil
		})

	p := plan.Plan{
		Name:     "targets",
		Template: "/plans/target.inp",
		Report:   "cross.out",
		Grow:     plan.Grow{Section: "surface", Key: "40", Field: 2, Start: 5, Step: 5, Max: 15},
		Cases:    []plan.Case{{Name: "water"}, {Name: "lead"}, {Name: "iron"}},
	}
	env.ExecuteWorkflow(SweepWorkflow, SweepInput{SweepID: "sw1", Plan: p, MaxConcurrentChildren: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out SweepResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "completed", out.Status)
	require.Equal(t, "/out/sweeps/sw1/summary.json", out.SummaryPath)
	require.Len(t, out.Cases, 3)
	require.Equal(t, "water", out.Cases[0].Case)
	require.Equal(t, StatusFailed, out.Cases[1].Status)
	require.Equal(t, "sw1", summary.SweepID)

	val, err := env.QueryWorkflow(QueryGetSweepProgress)
	require.NoError(t, err)
	var progress SweepProgress
	require.NoError(t, val.Get(&progress))
	require.Equal(t, 3, progress.Total)
	require.Equal(t, 3, progress.Done)
	require.Equal(t, 1, progress.Failed)
	require.Equal(t, StatusConverged, progress.PerCase["iron"])
	require.Equal(t, "case-sw1-lead", progress.ChildWorkflow["lead"])
}
