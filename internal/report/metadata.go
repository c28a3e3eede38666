package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Slot declares how one metadata annotation is typed.
type Slot int

const (
	// Auto keeps a number when the raw value parses as one, text otherwise.
	Auto Slot = iota
	Number
	Literal
)

// Pair is one label/value annotation captured from a page. Line is the
// position of the annotation within the metadata block.
type Pair struct {
	Label string
	Raw   string
	Line  int
}

// Metadata maps field names to scalars and remembers first-seen order.
type Metadata struct {
	names  []string
	values map[string]Value
}

func (m Metadata) Len() int { return len(m.names) }

func (m Metadata) Names() []string { return append([]string(nil), m.names...) }

func (m Metadata) Get(name string) (Value, bool) {
	v, ok := m.values[name]
	return v, ok
}

func (m Metadata) Float(name string) (float64, error) {
	v, ok := m.values[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	f, ok := v.Float()
	if !ok {
		return 0, fmt.Errorf("%w: %s is %s", ErrFieldType, name, v.Type)
	}
	return f, nil
}

func (m Metadata) Text(name string) (string, error) {
	v, ok := m.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}
	if v.Type != Text {
		return "", fmt.Errorf("%w: %s is %s", ErrFieldType, name, v.Type)
	}
	return v.Str, nil
}

func (m *Metadata) set(name string, v Value) {
	if m.values == nil {
		m.values = map[string]Value{}
	}
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = v
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, n := range m.names {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.values[n])
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Bind types each pair by its slot; pairs beyond the declared slots are
// Auto. A repeated label overwrites the earlier value, so the last
// occurrence in source order wins.
func Bind(pairs []Pair, slots []Slot) (Metadata, error) {
	var md Metadata
	for i, p := range pairs {
		slot := Auto
		if i < len(slots) {
			slot = slots[i]
		}
		v, err := bindValue(p, slot)
		if err != nil {
			return Metadata{}, err
		}
		md.set(p.Label, v)
	}
	return md, nil
}

func bindValue(p Pair, slot Slot) (Value, error) {
	switch slot {
	case Literal:
		return TextValue(p.Raw), nil
	case Number:
		if f, ok := parseNumber(p.Raw); ok {
			return FloatValue(f), nil
		}
		return Value{}, &TypeCoercionError{
			Location: Location{Snippet: snippet(p.Label + " = " + p.Raw)},
			Field:    p.Label,
			Token:    p.Raw,
			Want:     Float,
		}
	default:
		if f, ok := parseNumber(p.Raw); ok {
			return FloatValue(f), nil
		}
		return TextValue(p.Raw), nil
	}
}

// parseAnnotation splits "label &=& value rest" or "label = value".
func parseAnnotation(line string) (Pair, bool) {
	left, right, ok := strings.Cut(line, "&=&")
	if !ok {
		left, right, ok = strings.Cut(line, "=")
	}
	if !ok {
		return Pair{}, false
	}
	label := strings.TrimRight(strings.TrimSpace(left), ".")
	label = strings.TrimLeft(label, "#'")
	label = strings.TrimSpace(label)
	if label == "" {
		return Pair{}, false
	}
	raw := ""
	if f := strings.Fields(right); len(f) > 0 {
		raw = f[0]
	}
	return Pair{Label: label, Raw: raw}, true
}
