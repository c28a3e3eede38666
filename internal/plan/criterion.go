package plan

import (
	"errors"
	"fmt"

	"phitsreport/internal/report"
)

const (
	DefaultMinValue    = 0.001
	DefaultMaxRelError = 0.1
)

// Criterion decides whether a convergence loop keeps growing: it continues
// while Column[Row]*Scale > MinValue and ErrorColumn[Row] < MaxRelError.
// Scale is read from the page metadata field ScaleField, or 1 when empty.
// Page is nil until defaulted so an explicit page 0 survives.
type Criterion struct {
	Kind        string  `yaml:"kind" json:"kind"`
	Page        *int    `yaml:"page" json:"page"`
	Row         int     `yaml:"row" json:"row"`
	Column      string  `yaml:"column" json:"column"`
	ErrorColumn string  `yaml:"error_column" json:"error_column"`
	ScaleField  string  `yaml:"scale_field,omitempty" json:"scale_field,omitempty"`
	MinValue    float64 `yaml:"min_value,omitempty" json:"min_value"`
	MaxRelError float64 `yaml:"max_rel_error,omitempty" json:"max_rel_error"`
}

func PageRef(id int) *int { return &id }

// PageID is the probed page, 1 when unset.
func (c Criterion) PageID() int {
	if c.Page == nil {
		return 1
	}
	return *c.Page
}

type Probe struct {
	Value    float64 `json:"value"`
	Scale    float64 `json:"scale"`
	RelError float64 `json:"rel_error"`
	Continue bool    `json:"continue"`
}

func (c Criterion) withDefaults() Criterion {
	if c.Kind == "" {
		c.Kind = string(report.KindCurrentEnergy)
	}
	if c.Page == nil {
		c.Page = PageRef(1)
	}
	if c.Column == "" {
		c.Column = "neutron"
	}
	if c.ErrorColumn == "" {
		c.ErrorColumn = "nErr"
	}
	if c.MinValue == 0 {
		c.MinValue = DefaultMinValue
	}
	if c.MaxRelError == 0 {
		c.MaxRelError = DefaultMaxRelError
	}
	return c
}

func (c Criterion) validate() error {
	if _, ok := report.LayoutFor(report.Kind(c.Kind)); !ok {
		return fmt.Errorf("criterion kind %q is unknown", c.Kind)
	}
	if c.Page != nil && *c.Page < 0 {
		return errors.New("criterion page must not be negative")
	}
	if c.Row < 0 {
		return errors.New("criterion row must not be negative")
	}
	return nil
}

// Evaluate reads the probed cell from a parsed report.
func (c Criterion) Evaluate(rep *report.ParsedReport) (Probe, error) {
	kind := report.Kind(c.Kind)
	m, ok := rep.Model(kind)
	if !ok {
		if errs := rep.ErrorsFor(kind); len(errs) > 0 {
			return Probe{}, fmt.Errorf("criterion: %w", errs[0])
		}
		return Probe{}, fmt.Errorf("criterion: kind %s not parsed", kind)
	}
	id := c.PageID()
	page, ok := m.Page(id)
	if !ok {
		return Probe{}, fmt.Errorf("criterion: %s page %d not found", kind, id)
	}
	if page.Table == nil {
		return Probe{}, fmt.Errorf("criterion: %s page %d has no table", kind, id)
	}
	value, err := page.Table.Cell(c.Row, c.Column)
	if err != nil {
		return Probe{}, fmt.Errorf("criterion value: %w", err)
	}
	relErr, err := page.Table.Cell(c.Row, c.ErrorColumn)
	if err != nil {
		return Probe{}, fmt.Errorf("criterion error: %w", err)
	}
	scale := 1.0
	if c.ScaleField != "" {
		if scale, err = page.Metadata.Float(c.ScaleField); err != nil {
			return Probe{}, fmt.Errorf("criterion scale: %w", err)
		}
	}
	p := Probe{Value: value.Num, Scale: scale, RelError: relErr.Num}
	p.Continue = p.Value*p.Scale > c.MinValue && p.RelError < c.MaxRelError
	return p, nil
}
