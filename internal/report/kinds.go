package report

import (
	"regexp"
	"sort"
)

type Kind string

const (
	KindSummary       Kind = "summary"
	KindCurrentEnergy Kind = "current-energy"
	KindTrackMesh     Kind = "track-mesh"
	KindCrossRegion   Kind = "cross-region"
	KindDepositRegion Kind = "deposit-region"
	KindCurrentAngle  Kind = "current-angle"
)

// TablePart locates a table inside a page body. The block starts after the
// Header line and stops before the first End match, or at the body end.
type TablePart struct {
	Header  *regexp.Regexp
	End     *regexp.Regexp
	Columns []Column
}

// MeshPart locates a mesh. Dims captures row and column counts, Axes
// captures from/to/step for the row axis and then the column axis.
type MeshPart struct {
	Dims     *regexp.Regexp
	Axes     *regexp.Regexp
	End      *regexp.Regexp
	RowAxis  string
	ColAxis  string
	RowGroup int
	ColGroup int
}

// MetadataPart locates the annotation block that follows the data.
type MetadataPart struct {
	Anchor *regexp.Regexp
	Title  bool
	Slots  []Slot
}

// Layout is everything needed to turn one report kind into records.
type Layout struct {
	Kind     Kind
	Boundary Boundary
	Table    *TablePart
	Mesh     *MeshPart
	Metadata *MetadataPart
}

var (
	pageAnchor     = regexp.MustCompile(`(?s)newpage:\s+#\s+no\b.*?([0-9]+)`)
	pageTerminator = regexp.MustCompile(`(?m)^[ \t]*e:`)
	commentLine    = regexp.MustCompile(`(?m)^[ \t]*#`)
	spaceLine      = regexp.MustCompile(`(?m)^.*\bspace\b.*$`)

	energyHeader = regexp.MustCompile(`(?m)^.*\be-lower\b.*\n`)
	angleHeader  = regexp.MustCompile(`(?m)^.*\ba-lower\b.*\n`)

	currentColumns = FloatColumns("eLower", "eUpper", "proton", "pErr", "neutron", "nErr")
	angleColumns   = FloatColumns("aLower", "aUpper", "proton", "pErr", "neutron", "nErr")

	summaryColumns = []Column{
		{Name: "name", Type: Text},
		{Name: "number", Type: Int},
		{Name: "weight", Type: Float},
		{Name: "weight_per_source", Type: Float},
	}
	depositColumns = []Column{
		{Name: "num", Type: Int},
		{Name: "reg", Type: Int},
		{Name: "volume", Type: Float},
		{Name: "allpart", Type: Float},
		{Name: "rErr", Type: Float},
	}

	productionBoundary = Boundary{
		Anchor:     regexp.MustCompile(`(?m)^[ \t]*prod\. particles.*\n[ \t]*-+[ \t]*\n`),
		Terminator: regexp.MustCompile(`(?m)^[ \t]*-{3,}`),
	}
	leakageBoundary = Boundary{
		Anchor:     regexp.MustCompile(`(?m)^[ \t]*leak\. particles.*\n.*\n`),
		Terminator: regexp.MustCompile(`(?m)^[ \t]*-{3,}`),
	}
)

var layouts = map[Kind]Layout{
	KindSummary: {
		Kind:     KindSummary,
		Boundary: productionBoundary,
		Table:    &TablePart{Columns: summaryColumns},
	},
	KindCurrentEnergy: {
		Kind:     KindCurrentEnergy,
		Boundary: Boundary{Anchor: pageAnchor, Terminator: pageTerminator},
		Table:    &TablePart{Header: energyHeader, End: commentLine, Columns: currentColumns},
		Metadata: &MetadataPart{Anchor: spaceLine, Title: true, Slots: []Slot{Number, Number, Number, Number}},
	},
	KindTrackMesh: {
		Kind:     KindTrackMesh,
		Boundary: Boundary{Anchor: pageAnchor, Terminator: pageTerminator},
		Mesh: &MeshPart{
			Dims:     regexp.MustCompile(`#[ \t]*nx[ \t]*=[ \t]*(\d+)[^\n]*?\bnz[ \t]*=[ \t]*(\d+)`),
			Axes:     regexp.MustCompile(`(?m)^[ \t]*hc:[ \t]*y[ \t]*=(.+?)to(.+?)by(.+?);[ \t]*x[ \t]*=(.+?)to(.+?)by(.+?);.*\n`),
			End:      commentLine,
			RowAxis:  "y",
			ColAxis:  "x",
			RowGroup: 2,
			ColGroup: 1,
		},
		Metadata: &MetadataPart{Anchor: spaceLine, Slots: []Slot{Auto, Auto, Auto, Auto, Literal}},
	},
	KindCrossRegion: {
		Kind:     KindCrossRegion,
		Boundary: Boundary{Anchor: pageAnchor, Terminator: pageTerminator},
		Table:    &TablePart{Header: energyHeader, End: commentLine, Columns: currentColumns},
		Metadata: &MetadataPart{Anchor: spaceLine, Title: true, Slots: []Slot{Number}},
	},
	KindDepositRegion: {
		Kind:     KindDepositRegion,
		Boundary: Boundary{Anchor: pageAnchor, Terminator: regexp.MustCompile(`(?m)^[ \t]*#[ \t]+sum\b`)},
		Table: &TablePart{
			Header:  regexp.MustCompile(`(?m)^[ \t]*#[ \t]+num\b.*\n`),
			End:     commentLine,
			Columns: depositColumns,
		},
	},
	KindCurrentAngle: {
		Kind:     KindCurrentAngle,
		Boundary: Boundary{Anchor: pageAnchor, Terminator: pageTerminator},
		Table:    &TablePart{Header: angleHeader, End: commentLine, Columns: angleColumns},
		Metadata: &MetadataPart{Anchor: spaceLine, Title: true, Slots: []Slot{Number, Number, Number, Number}},
	},
}

// LayoutFor returns the built-in layout of a kind.
func LayoutFor(k Kind) (Layout, bool) {
	l, ok := layouts[k]
	return l, ok
}

// Kinds lists the supported kinds in a stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(layouts))
	for k := range layouts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Paged reports whether records of the kind carry page ids.
func (l Layout) Paged() bool { return l.Kind != KindSummary }
