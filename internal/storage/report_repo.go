package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"phitsreport/internal/models"
	"phitsreport/internal/report"
	"phitsreport/internal/util"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ReportRepo struct {
	db *DB
}

func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// NewReportRows converts a parsed report into the rows SaveReport writes.
// Pages keep their document position within each kind.
func NewReportRows(reportID, sha string, rep *report.ParsedReport) (models.Report, []models.ReportPage, error) {
	row := models.Report{
		ReportID:     reportID,
		Source:       util.SanitizeText(rep.Source),
		SHA256:       sha,
		PageCount:    rep.PageCount(),
		ErrorCount:   len(rep.Errors),
		WarningCount: len(rep.Warnings),
	}
	for _, k := range rep.Requested {
		row.Kinds = append(row.Kinds, string(k))
	}
	var err error
	if rep.Summary != nil {
		if row.Summary, err = json.Marshal(rep.Summary); err != nil {
			return models.Report{}, nil, fmt.Errorf("encode summary: %w", err)
		}
	}
	if row.Errors, err = json.Marshal(rep.Details()); err != nil {
		return models.Report{}, nil, fmt.Errorf("encode errors: %w", err)
	}
	warnings := rep.Warnings
	if warnings == nil {
		warnings = []report.Warning{}
	}
	if row.Warnings, err = json.Marshal(warnings); err != nil {
		return models.Report{}, nil, fmt.Errorf("encode warnings: %w", err)
	}

	var pages []models.ReportPage
	for _, k := range rep.Requested {
		m, ok := rep.Model(k)
		if !ok {
			continue
		}
		for pos, p := range m.Pages() {
			rec, err := json.Marshal(p)
			if err != nil {
				return models.Report{}, nil, fmt.Errorf("encode %s page %d: %w", k, p.ID, err)
			}
			pages = append(pages, models.ReportPage{
				ReportID: reportID,
				Kind:     string(k),
				PageID:   p.ID,
				Position: pos,
				Record:   rec,
			})
		}
	}
	return row, pages, nil
}

func (r *ReportRepo) SaveReport(ctx context.Context, rep models.Report, pages []models.ReportPage) error {
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO reports (report_id, source, sha256, kinds, page_count, error_count, warning_count, summary, errors, warnings)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (report_id)
DO UPDATE SET
  source = EXCLUDED.source,
  sha256 = EXCLUDED.sha256,
  kinds = EXCLUDED.kinds,
  page_count = EXCLUDED.page_count,
  error_count = EXCLUDED.error_count,
  warning_count = EXCLUDED.warning_count,
  summary = EXCLUDED.summary,
  errors = EXCLUDED.errors,
  warnings = EXCLUDED.warnings`,
			rep.ReportID, rep.Source, rep.SHA256, rep.Kinds, rep.PageCount, rep.ErrorCount, rep.WarningCount,
			nullJSON(rep.Summary), rep.Errors, rep.Warnings,
		)
		if err != nil {
			return fmt.Errorf("upsert report: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM report_pages WHERE report_id=$1`, rep.ReportID); err != nil {
			return fmt.Errorf("clear report pages: %w", err)
		}
		if len(pages) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, p := range pages {
			batch.Queue(`INSERT INTO report_pages (report_id, kind, page_id, position, record) VALUES ($1, $2, $3, $4, $5)`,
				p.ReportID, p.Kind, p.PageID, p.Position, p.Record)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert report pages: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// SaveParsed stores rep under a new report id and returns the id.
func (r *ReportRepo) SaveParsed(ctx context.Context, rep *report.ParsedReport, sha string) (string, error) {
	id := uuid.NewString()
	row, pages, err := NewReportRows(id, sha, rep)
	if err != nil {
		return "", err
	}
	if err := r.SaveReport(ctx, row, pages); err != nil {
		return "", err
	}
	return id, nil
}

func (r *ReportRepo) GetReport(ctx context.Context, reportID string) (models.Report, error) {
	var rep models.Report
	err := r.db.Pool.QueryRow(ctx, `
SELECT report_id::text, source, sha256, kinds, page_count, error_count, warning_count,
       summary, errors, warnings, created_at
FROM reports
WHERE report_id=$1`, reportID).
		Scan(&rep.ReportID, &rep.Source, &rep.SHA256, &rep.Kinds, &rep.PageCount, &rep.ErrorCount, &rep.WarningCount,
			&rep.Summary, &rep.Errors, &rep.Warnings, &rep.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Report{}, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("get report: %w", err)
	}
	return rep, nil
}

// ListPages returns the pages of one report, optionally limited to kind,
// in requested-kind then document order.
func (r *ReportRepo) ListPages(ctx context.Context, reportID, kind string) ([]models.ReportPage, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT p.report_id::text, p.kind, p.page_id, p.position, p.record
FROM report_pages p
JOIN reports r ON r.report_id = p.report_id
WHERE p.report_id=$1 AND ($2 = '' OR p.kind = $2)
ORDER BY array_position(r.kinds, p.kind), p.position`, reportID, kind)
	if err != nil {
		return nil, fmt.Errorf("list report pages: %w", err)
	}
	defer rows.Close()

	out := make([]models.ReportPage, 0)
	for rows.Next() {
		var p models.ReportPage
		if err := rows.Scan(&p.ReportID, &p.Kind, &p.PageID, &p.Position, &p.Record); err != nil {
			return nil, fmt.Errorf("scan report page: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report pages: %w", err)
	}
	return out, nil
}

func nullJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
