package storage

import (
	"context"
	"fmt"

	"phitsreport/internal/models"
)

type StepRepo struct {
	db *DB
}

func NewStepRepo(db *DB) *StepRepo {
	return &StepRepo{db: db}
}

func (r *StepRepo) RecordStep(ctx context.Context, s models.ConvergenceStep) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO convergence_steps (sweep_id, case_name, iteration, parameter, value, rel_error, continue, report_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,'')::uuid)
ON CONFLICT (sweep_id, case_name, iteration)
DO UPDATE SET
  parameter = EXCLUDED.parameter,
  value = EXCLUDED.value,
  rel_error = EXCLUDED.rel_error,
  continue = EXCLUDED.continue,
  report_id = EXCLUDED.report_id`,
		s.SweepID, s.CaseName, s.Iteration, s.Parameter, s.Value, s.RelError, s.Continue, s.ReportID,
	)
	if err != nil {
		return fmt.Errorf("record convergence step: %w", err)
	}
	return nil
}

func (r *StepRepo) ListSteps(ctx context.Context, sweepID string) ([]models.ConvergenceStep, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT sweep_id, case_name, iteration, parameter, value, rel_error, continue, COALESCE(report_id::text,''), created_at
FROM convergence_steps
WHERE sweep_id=$1
ORDER BY case_name, iteration`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("list convergence steps: %w", err)
	}
	defer rows.Close()
	out := make([]models.ConvergenceStep, 0)
	for rows.Next() {
		var s models.ConvergenceStep
		if err := rows.Scan(&s.SweepID, &s.CaseName, &s.Iteration, &s.Parameter, &s.Value, &s.RelError, &s.Continue, &s.ReportID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan convergence step: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
