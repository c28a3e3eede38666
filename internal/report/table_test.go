package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTableTypesAndTrailingBlanks(t *testing.T) {
	block := "   neutron   1000  5.0E-01  5.0E-04\n   proton  10  1.0E-02  1.0E-05\n\n   \n"
	tbl, err := DecodeTable(block, summaryColumns)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	names, err := tbl.Texts("name")
	require.NoError(t, err)
	assert.Equal(t, []string{"neutron", "proton"}, names)

	weights, err := tbl.Column("weight")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.01}, weights)

	n, err := tbl.Cell(0, "number")
	require.NoError(t, err)
	assert.Equal(t, Int, n.Type)
	assert.Equal(t, 1000.0, n.Num)
}

func TestDecodeTableRowCountInvariant(t *testing.T) {
	cols := FloatColumns("a", "b", "c")
	for name, block := range map[string]string{
		"one fewer": "1 2 3\n4 5\n",
		"one extra": "1 2 3\n4 5 6 7\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTable(block, cols)
			var mr *MalformedRowError
			require.True(t, errors.As(err, &mr), "got %v", err)
			assert.Equal(t, 2, mr.Line)
			assert.Equal(t, 3, mr.Want)
			assert.Contains(t, mr.Snippet, "4 5")
		})
	}
}

func TestDecodeTableCoercionFailure(t *testing.T) {
	_, err := DecodeTable("1.0 abc\n", FloatColumns("x", "y"))
	var tc *TypeCoercionError
	require.True(t, errors.As(err, &tc))
	assert.Equal(t, "y", tc.Field)
	assert.Equal(t, "abc", tc.Token)
}

func TestDecodeTableEmpty(t *testing.T) {
	_, err := DecodeTable("\n  \n", FloatColumns("x"))
	var mp *MissingPartError
	require.True(t, errors.As(err, &mp))
	assert.Equal(t, "table rows", mp.Part)
}

func TestDecodeTableStripsInlineComments(t *testing.T) {
	tbl, err := DecodeTable("1 2 # bin 1\n3 4\n", FloatColumns("x", "y"))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
}

func TestTableColumnErrors(t *testing.T) {
	tbl, err := DecodeTable("neutron 1 1 1\n", summaryColumns)
	require.NoError(t, err)
	_, err = tbl.Column("missing")
	assert.ErrorIs(t, err, ErrColumnUnknown)
	_, err = tbl.Column("name")
	assert.ErrorIs(t, err, ErrColumnType)
}
