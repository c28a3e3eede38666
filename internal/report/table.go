package report

import (
	"fmt"
	"strings"
)

type Column struct {
	Name string    `json:"name"`
	Type ValueType `json:"-"`
}

func FloatColumns(names ...string) []Column {
	out := make([]Column, 0, len(names))
	for _, n := range names {
		out = append(out, Column{Name: n, Type: Float})
	}
	return out
}

// Table is a rectangular block of values. Every row holds exactly
// len(Columns) cells.
type Table struct {
	Columns []Column  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

func (t *Table) Len() int { return len(t.Rows) }

func (t *Table) index(name string) (int, error) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrColumnUnknown, name)
}

// Column returns the values of a numeric column in row order.
func (t *Table) Column(name string) ([]float64, error) {
	i, err := t.index(name)
	if err != nil {
		return nil, err
	}
	if t.Columns[i].Type == Text {
		return nil, fmt.Errorf("%w: %s is text", ErrColumnType, name)
	}
	out := make([]float64, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i].Num
	}
	return out, nil
}

func (t *Table) Texts(name string) ([]string, error) {
	i, err := t.index(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i].String()
	}
	return out, nil
}

func (t *Table) Cell(row int, name string) (Value, error) {
	i, err := t.index(name)
	if err != nil {
		return Value{}, err
	}
	if row < 0 || row >= len(t.Rows) {
		return Value{}, fmt.Errorf("row %d out of range [0,%d)", row, len(t.Rows))
	}
	return t.Rows[row][i], nil
}

// DecodeTable splits block into whitespace-delimited rows and coerces every
// token to its column type. Blank lines are skipped and text after '#' is
// dropped. A row with the wrong number of fields fails the whole table.
func DecodeTable(block string, columns []Column) (*Table, error) {
	t := &Table{Columns: columns}
	for i, line := range strings.Split(block, "\n") {
		if c := strings.IndexByte(line, '#'); c >= 0 {
			line = line[:c]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(columns) {
			return nil, &MalformedRowError{
				Location: Location{Snippet: snippet(line)},
				Line:     i + 1,
				Got:      len(fields),
				Want:     len(columns),
			}
		}
		row := make([]Value, len(columns))
		for j, tok := range fields {
			v, ok := coerce(tok, columns[j].Type)
			if !ok {
				return nil, &TypeCoercionError{
					Location: Location{Snippet: snippet(line)},
					Field:    columns[j].Name,
					Token:    tok,
					Want:     columns[j].Type,
				}
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	if len(t.Rows) == 0 {
		return nil, &MissingPartError{Location: Location{Snippet: snippet(block)}, Part: "table rows"}
	}
	return t, nil
}
