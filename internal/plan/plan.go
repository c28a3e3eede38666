// Package plan describes parameter sweeps over a PHITS input deck.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"phitsreport/internal/deck"
	"phitsreport/internal/report"

	"gopkg.in/yaml.v3"
)

var ErrInvalidPlan = errors.New("invalid plan")

// Assignment edits one deck value. Field selects a single whitespace field
// of the value (1-based); zero replaces the whole value.
type Assignment struct {
	Section string `yaml:"section" json:"section"`
	Key     string `yaml:"key" json:"key"`
	Field   int    `yaml:"field,omitempty" json:"field,omitempty"`
	Value   string `yaml:"value" json:"value"`
}

func (a Assignment) Apply(d *deck.Deck) error {
	if a.Field > 0 {
		return d.SetField(a.Section, a.Key, a.Field, a.Value)
	}
	return d.Set(a.Section, a.Key, a.Value)
}

type Case struct {
	Name string       `yaml:"name" json:"name"`
	Set  []Assignment `yaml:"set" json:"set"`
}

// Axis is one matrix dimension; cases are the cartesian product of all
// axes in declaration order.
type Axis struct {
	Name   string `yaml:"name" json:"name"`
	Values []Case `yaml:"values" json:"values"`
}

// Grow is the parameter increased between convergence iterations.
type Grow struct {
	Section string  `yaml:"section" json:"section"`
	Key     string  `yaml:"key" json:"key"`
	Field   int     `yaml:"field,omitempty" json:"field,omitempty"`
	Start   float64 `yaml:"start" json:"start"`
	Step    float64 `yaml:"step" json:"step"`
	Max     float64 `yaml:"max" json:"max"`
}

func (g Grow) Assignment(v float64) Assignment {
	return Assignment{Section: g.Section, Key: g.Key, Field: g.Field, Value: strconv.FormatFloat(v, 'f', -1, 64)}
}

// Values lists every parameter the loop may visit.
func (g Grow) Values() []float64 {
	var out []float64
	for i := 0; ; i++ {
		v := g.Start + float64(i)*g.Step
		if v > g.Max+g.Step*1e-9 {
			return out
		}
		out = append(out, v)
	}
}

type Plan struct {
	Name      string    `yaml:"name" json:"name"`
	Template  string    `yaml:"template" json:"template"`
	Report    string    `yaml:"report" json:"report"`
	Kinds     []string  `yaml:"kinds,omitempty" json:"kinds,omitempty"`
	Grow      Grow      `yaml:"grow" json:"grow"`
	Criterion Criterion `yaml:"criterion" json:"criterion"`
	Cases     []Case    `yaml:"cases,omitempty" json:"cases,omitempty"`
	Matrix    []Axis    `yaml:"matrix,omitempty" json:"matrix,omitempty"`
}

func Load(path string) (Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}
	p, err := Parse(b)
	if err != nil {
		return Plan{}, err
	}
	if p.Template != "" && !filepath.IsAbs(p.Template) {
		p.Template = filepath.Join(filepath.Dir(path), p.Template)
	}
	return p, nil
}

func Parse(b []byte) (Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	p.Criterion = p.Criterion.withDefaults()
	if len(p.Kinds) == 0 {
		p.Kinds = []string{p.Criterion.Kind}
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func (p Plan) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(p.Report) == "" {
		problems = append(problems, "report file name is required")
	}
	if p.Grow.Section == "" || p.Grow.Key == "" {
		problems = append(problems, "grow.section and grow.key are required")
	}
	if p.Grow.Step <= 0 {
		problems = append(problems, "grow.step must be positive")
	}
	if p.Grow.Max < p.Grow.Start {
		problems = append(problems, "grow.max must not be below grow.start")
	}
	for _, k := range p.Kinds {
		if _, ok := report.LayoutFor(report.Kind(k)); !ok {
			problems = append(problems, fmt.Sprintf("unknown report kind %q", k))
		}
	}
	if err := p.Criterion.validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(p.Cases) == 0 && len(p.Matrix) == 0 {
		problems = append(problems, "at least one case or matrix axis is required")
	}
	seen := map[string]bool{}
	for _, c := range p.Expand() {
		if seen[c.Name] {
			problems = append(problems, fmt.Sprintf("duplicate case %q", c.Name))
		}
		seen[c.Name] = true
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(problems, "; "))
	}
	return nil
}

// Expand returns the explicit cases followed by the matrix product. Matrix
// case names join the value names with "/".
func (p Plan) Expand() []Case {
	out := append([]Case(nil), p.Cases...)
	if len(p.Matrix) == 0 {
		return out
	}
	combos := []Case{{}}
	for _, ax := range p.Matrix {
		next := make([]Case, 0, len(combos)*len(ax.Values))
		for _, c := range combos {
			for _, v := range ax.Values {
				name := v.Name
				if c.Name != "" {
					name = c.Name + "/" + v.Name
				}
				set := append(append([]Assignment(nil), c.Set...), v.Set...)
				next = append(next, Case{Name: name, Set: set})
			}
		}
		combos = next
	}
	return append(out, combos...)
}

// Render applies the case assignments and the grow value to a copy of the
// template deck.
func Render(tmpl *deck.Deck, c Case, g Grow, value float64) (*deck.Deck, error) {
	d := tmpl.Clone()
	for _, a := range c.Set {
		if err := a.Apply(d); err != nil {
			return nil, fmt.Errorf("case %s: %w", c.Name, err)
		}
	}
	if err := g.Assignment(value).Apply(d); err != nil {
		return nil, fmt.Errorf("case %s grow: %w", c.Name, err)
	}
	return d, nil
}
