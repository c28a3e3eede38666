package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAutoSlots(t *testing.T) {
	md, err := Bind([]Pair{{Label: "flux", Raw: "2.0E-03"}, {Label: "part", Raw: "neutron"}}, nil)
	require.NoError(t, err)

	f, err := md.Float("flux")
	require.NoError(t, err)
	assert.Equal(t, 0.002, f)

	s, err := md.Text("part")
	require.NoError(t, err)
	assert.Equal(t, "neutron", s)
	assert.Equal(t, []string{"flux", "part"}, md.Names())
}

func TestBindAutoKeepsWordsAsText(t *testing.T) {
	md, err := Bind([]Pair{{Label: "emax", Raw: "inf"}, {Label: "mode", Raw: "nan"}}, nil)
	require.NoError(t, err)
	s, err := md.Text("emax")
	require.NoError(t, err)
	assert.Equal(t, "inf", s)
	_, err = md.Float("mode")
	assert.ErrorIs(t, err, ErrFieldType)
}

func TestBindDuplicateLabelLastWins(t *testing.T) {
	md, err := Bind([]Pair{{Label: "area", Raw: "1.0"}, {Label: "area", Raw: "2.0"}}, []Slot{Number, Number})
	require.NoError(t, err)
	f, err := md.Float("area")
	require.NoError(t, err)
	assert.Equal(t, 2.0, f)
	assert.Equal(t, 1, md.Len())
}

func TestBindNumberSlotRejectsText(t *testing.T) {
	_, err := Bind([]Pair{{Label: "emax", Raw: "high"}}, []Slot{Number})
	var tc *TypeCoercionError
	require.True(t, errors.As(err, &tc))
	assert.Equal(t, "emax", tc.Field)
}

func TestBindLiteralKeepsNumbersAsText(t *testing.T) {
	md, err := Bind([]Pair{{Label: "title", Raw: "1"}}, []Slot{Literal})
	require.NoError(t, err)
	_, err = md.Float("title")
	assert.ErrorIs(t, err, ErrFieldType)
	_, err = md.Float("nope")
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestParseAnnotation(t *testing.T) {
	p, ok := parseAnnotation(`   part... &=& neutron \\`)
	require.True(t, ok)
	assert.Equal(t, "part", p.Label)
	assert.Equal(t, "neutron", p.Raw)

	p, ok = parseAnnotation("  area = 1.5  [cm^2]")
	require.True(t, ok)
	assert.Equal(t, "area", p.Label)
	assert.Equal(t, "1.5", p.Raw)

	_, ok = parseAnnotation("Forward current")
	assert.False(t, ok)
}

func TestMetadataJSONKeepsOrder(t *testing.T) {
	md, err := Bind([]Pair{{Label: "z", Raw: "1"}, {Label: "a", Raw: "x"}}, nil)
	require.NoError(t, err)
	b, err := md.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"x"}`, string(b))
}
