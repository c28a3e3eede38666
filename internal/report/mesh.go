package report

import (
	"math"
	"strings"
)

type Axis struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
	Bins int     `json:"bins"`
}

// NewAxis orders the bounds; reports list the row axis from its top edge.
func NewAxis(name string, from, to, step float64, bins int) Axis {
	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}
	return Axis{Name: name, Min: lo, Max: hi, Step: step, Bins: bins}
}

// StepDeviation is the relative difference between the declared step and
// the step implied by the bounds and bin count.
func (a Axis) StepDeviation() float64 {
	if a.Bins <= 0 {
		return 0
	}
	want := (a.Max - a.Min) / float64(a.Bins)
	got := math.Abs(a.Step)
	if want == 0 {
		if got == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(got-want) / want
}

// Mesh is a row-major grid: Data[row][col], rows varying slowest.
type Mesh struct {
	Rows    int         `json:"rows"`
	Cols    int         `json:"cols"`
	RowAxis Axis        `json:"row_axis"`
	ColAxis Axis        `json:"col_axis"`
	Data    [][]float64 `json:"data"`
}

func (m *Mesh) At(row, col int) float64 { return m.Data[row][col] }

// Reshape reads whitespace-separated numbers and lays them out as a
// rows x cols grid. The token count must match exactly.
func Reshape(flat string, rows, cols int) (*Mesh, error) {
	fields := strings.Fields(flat)
	if rows <= 0 || cols <= 0 || len(fields) != rows*cols {
		return nil, &ShapeMismatchError{
			Location: Location{Snippet: snippet(flat)},
			Rows:     rows,
			Cols:     cols,
			Got:      len(fields),
		}
	}
	data := make([][]float64, rows)
	backing := make([]float64, rows*cols)
	for i, tok := range fields {
		f, ok := parseNumber(tok)
		if !ok {
			return nil, &TypeCoercionError{
				Location: Location{Snippet: snippet(tok)},
				Field:    "mesh",
				Token:    tok,
				Want:     Float,
			}
		}
		backing[i] = f
	}
	for r := range data {
		data[r] = backing[r*cols : (r+1)*cols : (r+1)*cols]
	}
	return &Mesh{Rows: rows, Cols: cols, Data: data}, nil
}
