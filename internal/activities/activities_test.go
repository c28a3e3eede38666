package activities

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"phitsreport/internal/config"
	"phitsreport/internal/metrics"
	"phitsreport/internal/models"
	"phitsreport/internal/plan"
	"phitsreport/internal/report"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

type fakeReports struct {
	saved []*report.ParsedReport
}

func (f *fakeReports) SaveParsed(_ context.Context, rep *report.ParsedReport, sha string) (string, error) {
	f.saved = append(f.saved, rep)
	return "rep-" + sha[:8], nil
}

type fakeSteps struct {
	steps []models.ConvergenceStep
}

func (f *fakeSteps) RecordStep(_ context.Context, s models.ConvergenceStep) error {
	f.steps = append(f.steps, s)
	return nil
}

const crossReport = `#newpage:
#  no. = 1   tally = T-Cross
#  e-lower  e-upper  proton  r.err  neutron  r.err
  0.0000E+00  2.5000E+03  1.0000E-04  0.2000  3.0000E-03  0.0400
#   sum over
'
  space
    Current on target face
    area &=& 1.0E+00 \\
e:
`

const template = `[ S o u r c e ]
        e0 = 2000.      # energy of beam [MeV/u]
[ S u r f a c e ]
    40     pz     25.
`

func newTestActivities(t *testing.T) (*Activities, *fakeReports, *fakeSteps, *metrics.Metrics) {
	t.Helper()
	cfg := config.Config{DataOutRoot: t.TempDir(), PhitsCommand: "cat", StepTolerance: 0.01}
	reports, steps := &fakeReports{}, &fakeSteps{}
	m := metrics.New(prometheus.NewRegistry())
	a, err := newActivities(cfg, reports, steps, zerolog.Nop(), m)
	require.NoError(t, err)
	return a, reports, steps, m
}

func TestPrepareAndRun(t *testing.T) {
	a, _, _, m := newTestActivities(t)
	tmplPath := filepath.Join(t.TempDir(), "phits.in")
	require.NoError(t, os.WriteFile(tmplPath, []byte(template), 0o644))

	prep, err := a.PrepareRunActivity(context.Background(), PrepareRunInput{
		SweepID:  "sw-1",
		Template: tmplPath,
		Case:     plan.Case{Name: "Au/1MeV", Set: []plan.Assignment{{Section: "source", Key: "e0", Value: "1.0"}}},
		Grow:     plan.Grow{Section: "surface", Key: "40", Field: 2, Start: 5, Step: 5, Max: 20},
		Value:    10,
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(a.cfg.DataOutRoot, "sweeps", "sw-1", "Au", "1MeV", "p10"), prep.RunDir)

	b, err := os.ReadFile(prep.InputPath)
	require.NoError(t, err)
	require.Contains(t, string(b), "e0 = 1.0      # energy of beam")
	require.Contains(t, string(b), "40     pz     10")

	run, err := a.RunSimulationActivity(context.Background(), RunSimulationInput{RunDir: prep.RunDir})
	require.NoError(t, err)
	require.Equal(t, 0, run.ExitCode)
	require.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
}

func TestPrepareRunRejectsUnknownKey(t *testing.T) {
	a, _, _, _ := newTestActivities(t)
	tmplPath := filepath.Join(t.TempDir(), "phits.in")
	require.NoError(t, os.WriteFile(tmplPath, []byte(template), 0o644))

	_, err := a.PrepareRunActivity(context.Background(), PrepareRunInput{
		SweepID:  "sw",
		Template: tmplPath,
		Case:     plan.Case{Name: "x"},
		Grow:     plan.Grow{Section: "surface", Key: "99", Start: 1, Step: 1, Max: 1},
		Value:    1,
	})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.True(t, appErr.NonRetryable())
}

func TestParseReportActivity(t *testing.T) {
	a, reports, steps, m := newTestActivities(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cross_rz.out")
	require.NoError(t, os.WriteFile(path, []byte(crossReport), 0o644))

	crit := plan.Criterion{Kind: "cross-region", Page: plan.PageRef(1), Column: "neutron", ErrorColumn: "nErr", ScaleField: "area", MinValue: 0.001, MaxRelError: 0.1}
	out, err := a.ParseReportActivity(context.Background(), ParseReportInput{
		Path:      path,
		Kinds:     []string{"cross-region", "summary"},
		SweepID:   "sw-1",
		CaseName:  "Au/1MeV",
		Iteration: 2,
		Parameter: 10,
		Criterion: &crit,
	})
	require.NoError(t, err)
	require.Len(t, reports.saved, 1)
	require.Equal(t, 1, out.PageCount)
	require.Len(t, out.Errors, 1)
	require.Equal(t, "missing_section", out.Errors[0].Code)
	require.NotNil(t, out.Probe)
	require.True(t, out.Probe.Continue)

	require.Len(t, steps.steps, 1)
	require.Equal(t, out.ReportID, steps.steps[0].ReportID)
	require.Equal(t, 2, steps.steps[0].Iteration)
	require.InDelta(t, 0.003, steps.steps[0].Value, 1e-12)

	b, err := os.ReadFile(out.ArtifactPath)
	require.NoError(t, err)
	var artifact map[string]any
	require.NoError(t, json.Unmarshal(b, &artifact))
	require.Equal(t, path, artifact["source"])
	require.Equal(t, 1.0, testutil.ToFloat64(m.PagesParsed.WithLabelValues("cross-region")))
}

func TestParseReportActivityMissingFile(t *testing.T) {
	a, reports, _, _ := newTestActivities(t)
	_, err := a.ParseReportActivity(context.Background(), ParseReportInput{
		Path:  filepath.Join(t.TempDir(), "nope.out"),
		Kinds: []string{"cross-region"},
	})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.True(t, appErr.NonRetryable())
	require.ErrorIs(t, err, report.ErrFileNotFound)
	require.Empty(t, reports.saved)
}

func TestWriteSweepSummaryActivity(t *testing.T) {
	a, _, _, _ := newTestActivities(t)
	out, err := a.WriteSweepSummaryActivity(context.Background(), WriteSweepSummaryInput{
		SweepID: "sw-1",
		Summary: map[string]any{"total": 2},
	})
	require.NoError(t, err)
	b, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.JSONEq(t, `{"total": 2}`, string(b))
}

func TestRunDirSanitizes(t *testing.T) {
	require.Equal(t, filepath.Join("/out", "sweeps", "a_b", "Pb", "_", "p2.5"), RunDir("/out", "a b", "Pb/..", 2.5))
}
