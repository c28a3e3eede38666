package activities

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"phitsreport/internal/config"
	"phitsreport/internal/deck"
	"phitsreport/internal/logging"
	"phitsreport/internal/metrics"
	"phitsreport/internal/models"
	"phitsreport/internal/plan"
	"phitsreport/internal/report"
	"phitsreport/internal/runner"
	"phitsreport/internal/storage"
	"phitsreport/internal/util"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/temporal"
)

const ParsedArtifact = "parsed.json"

type ReportStore interface {
	SaveParsed(ctx context.Context, rep *report.ParsedReport, sha string) (string, error)
}

type StepStore interface {
	RecordStep(ctx context.Context, s models.ConvergenceStep) error
}

type Activities struct {
	cfg     config.Config
	log     zerolog.Logger
	parser  *report.Parser
	runner  *runner.Runner
	reports ReportStore
	steps   StepStore
	metrics *metrics.Metrics
}

func New(cfg config.Config, db *storage.DB, log zerolog.Logger, m *metrics.Metrics) (*Activities, error) {
	return newActivities(cfg, storage.NewReportRepo(db), storage.NewStepRepo(db), log, m)
}

func newActivities(cfg config.Config, reports ReportStore, steps StepStore, log zerolog.Logger, m *metrics.Metrics) (*Activities, error) {
	r, err := runner.New(cfg.PhitsCommand, logging.Component(log, "runner"))
	if err != nil {
		return nil, err
	}
	opts := []report.Option{
		report.WithLogger(logging.Component(log, "parser")),
		report.WithStepTolerance(cfg.StepTolerance),
		report.WithParallel(cfg.ParallelParse),
		report.WithEncoding(cfg.ReportEncoding),
	}
	if m != nil {
		opts = append(opts, report.WithObserver(m))
	}
	return &Activities{
		cfg:     cfg,
		log:     log,
		parser:  report.NewParser(opts...),
		runner:  r,
		reports: reports,
		steps:   steps,
		metrics: m,
	}, nil
}

// RunDir is where one convergence iteration of a case runs.
func RunDir(root, sweepID, caseName string, value float64) string {
	parts := []string{root, "sweeps", sanitizeID(sweepID)}
	for _, p := range strings.Split(caseName, "/") {
		parts = append(parts, sanitizeID(p))
	}
	parts = append(parts, "p"+strconv.FormatFloat(value, 'f', -1, 64))
	return filepath.Join(parts...)
}

func (a *Activities) PrepareRunActivity(ctx context.Context, in PrepareRunInput) (PrepareRunOutput, error) {
	_ = ctx
	tmpl, err := deck.Load(in.Template)
	if err != nil {
		return PrepareRunOutput{}, temporal.NewNonRetryableApplicationError("load deck template", "DeckTemplate", err)
	}
	d, err := plan.Render(tmpl, in.Case, in.Grow, in.Value)
	if err != nil {
		return PrepareRunOutput{}, temporal.NewNonRetryableApplicationError("render deck", "DeckRender", err)
	}
	dir := RunDir(a.cfg.DataOutRoot, in.SweepID, in.Case.Name, in.Value)
	path := filepath.Join(dir, runner.InputFile)
	if err := d.WriteFile(path); err != nil {
		return PrepareRunOutput{}, err
	}
	return PrepareRunOutput{RunDir: dir, InputPath: path}, nil
}

func (a *Activities) RunSimulationActivity(ctx context.Context, in RunSimulationInput) (RunSimulationOutput, error) {
	if a.cfg.RunTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.RunTimeoutSecs)*time.Second)
		defer cancel()
	}
	res, err := a.runner.Run(ctx, in.RunDir)
	if a.metrics != nil {
		a.metrics.RunFinished(res.Duration, err)
	}
	out := RunSimulationOutput{ExitCode: res.ExitCode, DurationMS: res.Duration.Milliseconds()}
	if err != nil {
		return out, err
	}
	return out, nil
}

func (a *Activities) ParseReportActivity(ctx context.Context, in ParseReportInput) (ParseReportOutput, error) {
	kinds := make([]report.Kind, 0, len(in.Kinds))
	for _, k := range in.Kinds {
		kinds = append(kinds, report.Kind(k))
	}
	rep, err := a.parser.ParseFile(in.Path, kinds)
	if err != nil {
		var uk *report.UnknownKindError
		if errors.Is(err, report.ErrFileNotFound) || errors.As(err, &uk) {
			return ParseReportOutput{}, temporal.NewNonRetryableApplicationError("parse report", "ReportUnreadable", err)
		}
		return ParseReportOutput{}, err
	}
	sha, err := util.SHA256File(in.Path)
	if err != nil {
		return ParseReportOutput{}, err
	}

	out := ParseReportOutput{
		PageCount: rep.PageCount(),
		Errors:    rep.Details(),
		Warnings:  len(rep.Warnings),
	}
	if out.ReportID, err = a.reports.SaveParsed(ctx, rep, sha); err != nil {
		return ParseReportOutput{}, err
	}
	out.ArtifactPath = filepath.Join(filepath.Dir(in.Path), ParsedArtifact)
	if err := util.WriteJSONAtomic(out.ArtifactPath, rep); err != nil {
		return ParseReportOutput{}, err
	}

	if in.Criterion != nil {
		probe, err := in.Criterion.Evaluate(rep)
		if err != nil {
			return ParseReportOutput{}, temporal.NewNonRetryableApplicationError("evaluate criterion", "CriterionUnavailable", err)
		}
		out.Probe = &probe
		if in.SweepID != "" {
			if err := a.steps.RecordStep(ctx, models.ConvergenceStep{
				SweepID:   in.SweepID,
				CaseName:  in.CaseName,
				Iteration: in.Iteration,
				Parameter: in.Parameter,
				Value:     probe.Value * probe.Scale,
				RelError:  probe.RelError,
				Continue:  probe.Continue,
				ReportID:  out.ReportID,
			}); err != nil {
				return ParseReportOutput{}, err
			}
		}
	}
	a.log.Info().
		Str("report_id", out.ReportID).
		Str("path", in.Path).
		Int("pages", out.PageCount).
		Int("errors", len(out.Errors)).
		Msg("report stored")
	return out, nil
}

func (a *Activities) WriteSweepSummaryActivity(ctx context.Context, in WriteSweepSummaryInput) (WriteSweepSummaryOutput, error) {
	_ = ctx
	path := filepath.Join(a.cfg.DataOutRoot, "sweeps", sanitizeID(in.SweepID), "summary.json")
	if err := util.WriteJSONAtomic(path, in.Summary); err != nil {
		return WriteSweepSummaryOutput{}, fmt.Errorf("write sweep summary: %w", err)
	}
	return WriteSweepSummaryOutput{Path: path}, nil
}

func sanitizeID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unnamed"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "." || out == ".." {
		return "_"
	}
	return out
}
