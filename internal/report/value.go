package report

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type ValueType int

const (
	Float ValueType = iota
	Int
	Text
)

func (t ValueType) String() string {
	switch t {
	case Float:
		return "float"
	case Int:
		return "int"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a single table cell or metadata scalar. Int values keep their
// number in Num so numeric columns can be read uniformly.
type Value struct {
	Type ValueType
	Num  float64
	Str  string
}

func FloatValue(f float64) Value { return Value{Type: Float, Num: f} }
func IntValue(n int64) Value     { return Value{Type: Int, Num: float64(n)} }
func TextValue(s string) Value   { return Value{Type: Text, Str: s} }

func (v Value) IsNumeric() bool { return v.Type == Float || v.Type == Int }

func (v Value) Float() (float64, bool) {
	if !v.IsNumeric() {
		return 0, false
	}
	return v.Num, true
}

func (v Value) String() string {
	switch v.Type {
	case Text:
		return v.Str
	case Int:
		return strconv.FormatInt(int64(v.Num), 10)
	default:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Type == Text {
		return json.Marshal(v.Str)
	}
	if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
		return json.Marshal(v.String())
	}
	return json.Marshal(v.Num)
}

// Fortran writers drop the exponent letter once the exponent needs three
// digits (1.0-100) and may use D for double precision.
var bareExponent = regexp.MustCompile(`^([+-]?(?:\d+\.?\d*|\.\d+))([+-]\d{2,3})$`)

// decimalNumber admits plain decimals and the Fortran exponent forms only,
// so words like inf or nan and hex floats stay text.
var decimalNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eEdD][+-]?\d+|[+-]\d{2,3})?$`)

func parseNumber(tok string) (float64, bool) {
	tok = strings.TrimSpace(tok)
	if !decimalNumber.MatchString(tok) {
		return 0, false
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f, true
	}
	fixed := strings.NewReplacer("D", "E", "d", "e").Replace(tok)
	if m := bareExponent.FindStringSubmatch(fixed); m != nil {
		fixed = m[1] + "E" + m[2]
	}
	f, err := strconv.ParseFloat(fixed, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseInt(tok string) (int64, bool) {
	if n, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64); err == nil {
		return n, true
	}
	f, ok := parseNumber(tok)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// coerce converts a raw token to the requested type.
func coerce(tok string, t ValueType) (Value, bool) {
	switch t {
	case Int:
		n, ok := parseInt(tok)
		if !ok {
			return Value{}, false
		}
		return IntValue(n), true
	case Text:
		return TextValue(tok), true
	default:
		f, ok := parseNumber(tok)
		if !ok {
			return Value{}, false
		}
		return FloatValue(f), true
	}
}
