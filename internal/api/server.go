package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"phitsreport/internal/config"
	"phitsreport/internal/logging"
	"phitsreport/internal/metrics"
	"phitsreport/internal/models"
	"phitsreport/internal/plan"
	"phitsreport/internal/report"
	"phitsreport/internal/storage"
	"phitsreport/internal/util"
	"phitsreport/internal/workflows"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

const maxReportBytes = 256 << 20

type ReportStore interface {
	SaveParsed(ctx context.Context, rep *report.ParsedReport, sha string) (string, error)
	GetReport(ctx context.Context, reportID string) (models.Report, error)
	ListPages(ctx context.Context, reportID, kind string) ([]models.ReportPage, error)
}

type StepStore interface {
	ListSteps(ctx context.Context, sweepID string) ([]models.ConvergenceStep, error)
}

// WorkflowClient is the part of the Temporal client the API uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow any, args ...any) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...any) (converter.EncodedValue, error)
}

type Deps struct {
	Reports  ReportStore
	Steps    StepStore
	Temporal WorkflowClient
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

type Server struct {
	cfg      config.Config
	reports  ReportStore
	steps    StepStore
	temporal WorkflowClient
	gatherer prometheus.Gatherer
	parser   *report.Parser
	log      zerolog.Logger
}

func NewServer(cfg config.Config, d Deps) *Server {
	opts := []report.Option{
		report.WithLogger(logging.Component(d.Log, "parser")),
		report.WithStepTolerance(cfg.StepTolerance),
		report.WithParallel(cfg.ParallelParse),
	}
	if d.Metrics != nil {
		opts = append(opts, report.WithObserver(d.Metrics))
	}
	g := d.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		reports:  d.Reports,
		steps:    d.Steps,
		temporal: d.Temporal,
		gatherer: g,
		parser:   report.NewParser(opts...),
		log:      logging.Component(d.Log, "api"),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/kinds", s.handleKinds)
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/reports/", s.handleReportsScoped)
	mux.HandleFunc("/sweeps", s.handleSweeps)
	mux.HandleFunc("/sweeps/", s.handleSweepsScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kinds": report.Kinds()})
}

// handleReports parses the request body as report text. Kinds come from
// repeated ?kind= parameters.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	q := r.URL.Query()
	var kinds []report.Kind
	for _, k := range q["kind"] {
		for _, part := range strings.Split(k, ",") {
			if part = strings.TrimSpace(part); part != "" {
				kinds = append(kinds, report.Kind(part))
			}
		}
	}
	if len(kinds) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("at least one kind is required"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReportBytes))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	source := strings.TrimSpace(q.Get("source"))
	if source == "" {
		source = "upload"
	}
	rep, err := s.parser.Parse(report.NewDocument(source, string(body)), kinds)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sha, err := util.SHA256HexFromReader(bytes.NewReader(body))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	id, err := s.reports.SaveParsed(r.Context(), rep, sha)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info().Str("report_id", id).Str("source", source).Int("pages", rep.PageCount()).Msg("report parsed")
	writeJSON(w, http.StatusCreated, map[string]any{"report_id": id, "report": rep})
}

func (s *Server) handleReportsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/reports/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	reportID := parts[0]
	kind := r.URL.Query().Get("kind")

	switch {
	case len(parts) == 1:
		rep, err := s.reports.GetReport(r.Context(), reportID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		pages, err := s.reports.ListPages(r.Context(), reportID, kind)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": rep, "pages": pages})
	case len(parts) == 2 && parts[1] == "pages":
		pages, err := s.reports.ListPages(r.Context(), reportID, kind)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

// handleSweeps starts a SweepWorkflow from a YAML plan body.
func (s *Server) handleSweeps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	p, err := plan.Parse(body)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}

	sweepID := uuid.NewString()
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "sweep-" + sweepID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.SweepWorkflow, workflows.SweepInput{
		SweepID:               sweepID,
		Plan:                  p,
		MaxConcurrentChildren: s.cfg.SweepMaxChildren,
		RunTimeoutSecs:        s.cfg.RunTimeoutSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	s.log.Info().Str("sweep_id", sweepID).Str("plan", p.Name).Int("cases", len(p.Expand())).Msg("sweep started")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"sweep_id":    sweepID,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

func (s *Server) handleSweepsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/sweeps/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	sweepID := parts[0]

	switch parts[1] {
	case "progress":
		var prog workflows.SweepProgress
		resp, err := s.temporal.QueryWorkflow(r.Context(), "sweep-"+sweepID, "", workflows.QueryGetSweepProgress)
		if err != nil {
			// Without a queryable workflow, rebuild progress from recorded steps.
			steps, sErr := s.steps.ListSteps(r.Context(), sweepID)
			if sErr != nil {
				writeErr(w, http.StatusInternalServerError, sErr)
				return
			}
			writeJSON(w, http.StatusOK, progressFromSteps(sweepID, steps))
			return
		}
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
	case "steps":
		steps, err := s.steps.ListSteps(r.Context(), sweepID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"steps": steps})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

// progressFromSteps reports a case as converged once its latest recorded
// step stopped the loop. Steps arrive ordered by case then iteration.
func progressFromSteps(sweepID string, steps []models.ConvergenceStep) workflows.SweepProgress {
	per := map[string]string{}
	for _, st := range steps {
		if st.Continue {
			per[st.CaseName] = workflows.StatusRunning
		} else {
			per[st.CaseName] = workflows.StatusConverged
		}
	}
	done := 0
	for _, v := range per {
		if v == workflows.StatusConverged {
			done++
		}
	}
	return workflows.SweepProgress{SweepID: sweepID, Total: len(per), Done: done, PerCase: per}
}

func statusFor(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PR-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "PR-DB-5001",
				Message: "Database schema is not initialized. Start the worker once and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "PR-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "PR-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "PR-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PR-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "PR-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "PR-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		var uk *report.UnknownKindError
		switch {
		case errors.As(err, &uk):
			msg = fmt.Sprintf("Unknown report kind %q.", string(uk.Kind))
		case errors.Is(err, plan.ErrInvalidPlan):
			msg = err.Error()
		case strings.Contains(raw, "at least one kind is required"):
			msg = "At least one report kind is required."
		case strings.Contains(raw, "request body too large"):
			msg = "Request body is too large."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
