package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"phitsreport/internal/deck"
	"phitsreport/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planYAML = `
name: neutron-range
template: phits.in
report: cross_rz.out
grow:
  section: surface
  key: "40"
  field: 2
  start: 5
  step: 5
  max: 20
criterion:
  scale_field: area
cases:
  - name: baseline
matrix:
  - name: material
    values:
      - name: Au
        set:
          - {section: cell, key: "101", value: "2 -19.3 -60 30 -40"}
      - name: Pb
        set:
          - {section: cell, key: "101", value: "2 -11.34 -60 30 -40"}
  - name: energy
    values:
      - name: 1MeV
        set:
          - {section: source, key: e0, value: "1.0"}
      - name: 10MeV
        set:
          - {section: source, key: e0, value: "10.0"}
`

const template = `[ S o u r c e ]
      proj = neutron
        e0 = 2000.
[ S u r f a c e ]
    40     pz     25.
[ C e l l ]
    101    2      -19.3  -60  30  -40
`

func TestParseDefaultsAndExpand(t *testing.T) {
	p, err := Parse([]byte(planYAML))
	require.NoError(t, err)
	assert.Equal(t, "current-energy", p.Criterion.Kind)
	require.NotNil(t, p.Criterion.Page)
	assert.Equal(t, 1, *p.Criterion.Page)
	assert.Equal(t, "nErr", p.Criterion.ErrorColumn)
	assert.Equal(t, DefaultMinValue, p.Criterion.MinValue)
	assert.Equal(t, []string{"current-energy"}, p.Kinds)
	assert.Equal(t, []float64{5, 10, 15, 20}, p.Grow.Values())

	cases := p.Expand()
	names := make([]string, len(cases))
	for i, c := range cases {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"baseline", "Au/1MeV", "Au/10MeV", "Pb/1MeV", "Pb/10MeV"}, names)
	assert.Len(t, cases[4].Set, 2)
}

func TestParseRejectsBadPlans(t *testing.T) {
	_, err := Parse([]byte("name: x\nreport: r.out\ngrow: {section: s, key: k, step: 0, start: 1, max: 0}\n"))
	require.ErrorIs(t, err, ErrInvalidPlan)
	assert.Contains(t, err.Error(), "grow.step must be positive")
	assert.Contains(t, err.Error(), "at least one case")

	_, err = Parse([]byte("name: x\nbogus: 1\n"))
	assert.Error(t, err)

	_, err = Parse([]byte(planYAML + "kinds: [neutron-spectrum]\n"))
	require.ErrorIs(t, err, ErrInvalidPlan)

	_, err = Parse([]byte("name: x\nreport: r\ngrow: {section: s, key: k, step: 1, start: 1, max: 2}\ncases: [{name: a}, {name: a}]\n"))
	require.ErrorIs(t, err, ErrInvalidPlan)
	assert.Contains(t, err.Error(), `duplicate case "a"`)
}

func TestRender(t *testing.T) {
	p, err := Parse([]byte(planYAML))
	require.NoError(t, err)
	tmpl, err := deck.Parse(template)
	require.NoError(t, err)

	d, err := Render(tmpl, p.Expand()[3], p.Grow, 15)
	require.NoError(t, err)
	e0, err := d.Get("source", "e0")
	require.NoError(t, err)
	assert.Equal(t, "1.0", e0)
	surf, err := d.Get("surface", "40")
	require.NoError(t, err)
	assert.Equal(t, "pz     15", surf)
	cell, err := d.Get("cell", "101")
	require.NoError(t, err)
	assert.Equal(t, "2 -11.34 -60 30 -40", cell)

	orig, err := tmpl.Get("source", "e0")
	require.NoError(t, err)
	assert.Equal(t, "2000.", orig)

	_, err = Render(tmpl, Case{Name: "bad", Set: []Assignment{{Section: "material", Key: "mat[1]", Value: "x"}}}, p.Grow, 5)
	assert.ErrorIs(t, err, deck.ErrUnknownSection)
}

func TestLoadResolvesTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(planYAML), 0o644))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "phits.in"), p.Template)
}

const crossPage = `#newpage:
#  no. = 1   tally = T-Cross
#  e-lower  e-upper  proton  r.err  neutron  r.err
  0.0000E+00  2.5000E+03  1.0000E-04  0.2000  %s  %s
#   sum over
'
  space
    Current on target face
    area &=& 2.0E+00 \\
e:
`

func parseCross(t *testing.T, neutron, nErr string) *report.ParsedReport {
	t.Helper()
	text := fmt.Sprintf(crossPage, neutron, nErr)
	rep, err := report.Parse(report.NewDocument("cross_rz.out", text), []report.Kind{report.KindCrossRegion})
	require.NoError(t, err)
	require.Empty(t, rep.Errors)
	return rep
}

func TestCriterionEvaluate(t *testing.T) {
	c := Criterion{Kind: "cross-region", ScaleField: "area"}.withDefaults()

	p, err := c.Evaluate(parseCross(t, "1.0000E-03", "0.0500"))
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.Scale)
	assert.True(t, p.Continue)

	p, err = c.Evaluate(parseCross(t, "4.0000E-04", "0.0500"))
	require.NoError(t, err)
	assert.False(t, p.Continue, "0.0004*2 is below the threshold")

	p, err = c.Evaluate(parseCross(t, "1.0000E-02", "0.1000"))
	require.NoError(t, err)
	assert.False(t, p.Continue, "relative error at the limit stops the loop")

	c.Page = PageRef(9)
	_, err = c.Evaluate(parseCross(t, "1.0000E-02", "0.0100"))
	assert.Error(t, err)
}

func TestCriterionExplicitPageZero(t *testing.T) {
	yml := strings.Replace(planYAML, "  scale_field: area\n", "  scale_field: area\n  page: 0\n", 1)
	p, err := Parse([]byte(yml))
	require.NoError(t, err)
	require.NotNil(t, p.Criterion.Page)
	assert.Equal(t, 0, p.Criterion.PageID())

	text := strings.Replace(fmt.Sprintf(crossPage, "1.0000E-03", "0.0500"), "no. = 1", "no. = 0", 1)
	rep, err := report.Parse(report.NewDocument("cross_rz.out", text), []report.Kind{report.KindCrossRegion})
	require.NoError(t, err)
	c := p.Criterion
	c.Kind = "cross-region"
	probe, err := c.Evaluate(rep)
	require.NoError(t, err)
	assert.Equal(t, 2.0, probe.Scale)

	_, err = Parse([]byte(strings.Replace(planYAML, "  scale_field: area\n", "  scale_field: area\n  page: -2\n", 1)))
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestCriterionMissingKind(t *testing.T) {
	rep, err := report.Parse(report.NewDocument("", "nothing"), []report.Kind{report.KindCurrentEnergy})
	require.NoError(t, err)
	_, err = Criterion{}.withDefaults().Evaluate(rep)
	var ms *report.MissingSectionError
	assert.ErrorAs(t, err, &ms)
}
