package report

import (
	"encoding/json"
)

// PageRecord is one decoded page. Records are shared by value and must be
// treated as read-only.
type PageRecord struct {
	Kind     Kind     `json:"kind"`
	ID       int      `json:"id"`
	Table    *Table   `json:"table,omitempty"`
	Mesh     *Mesh    `json:"mesh,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// KindModel holds the pages of one kind in document order.
type KindModel struct {
	Kind  Kind
	pages []PageRecord
	index map[int]int
}

func newKindModel(k Kind) *KindModel {
	return &KindModel{Kind: k, index: map[int]int{}}
}

func (m *KindModel) add(p PageRecord) bool {
	if _, ok := m.index[p.ID]; ok {
		return false
	}
	m.index[p.ID] = len(m.pages)
	m.pages = append(m.pages, p)
	return true
}

func (m *KindModel) Len() int { return len(m.pages) }

func (m *KindModel) Page(id int) (PageRecord, bool) {
	i, ok := m.index[id]
	if !ok {
		return PageRecord{}, false
	}
	return m.pages[i], true
}

// IDs returns page ids in the order the pages appear in the report.
func (m *KindModel) IDs() []int {
	out := make([]int, len(m.pages))
	for i, p := range m.pages {
		out[i] = p.ID
	}
	return out
}

func (m *KindModel) Pages() []PageRecord {
	return append([]PageRecord(nil), m.pages...)
}

func (m *KindModel) MarshalJSON() ([]byte, error) {
	pages := m.pages
	if pages == nil {
		pages = []PageRecord{}
	}
	return json.Marshal(struct {
		Kind  Kind         `json:"kind"`
		Pages []PageRecord `json:"pages"`
	}{m.Kind, pages})
}

// Summary is the production/leakage section of the general output file.
type Summary struct {
	Production *Table `json:"production,omitempty"`
	Leakage    *Table `json:"leakage,omitempty"`
}

type Warning struct {
	Kind    Kind   `json:"kind"`
	Page    int    `json:"page"`
	Message string `json:"message"`
}

// ParsedReport is the result of one parse call. Errors holds the page and
// kind scoped failures; everything else parsed successfully.
type ParsedReport struct {
	Source    string
	Requested []Kind
	Summary   *Summary
	Errors    []error
	Warnings  []Warning
	models    map[Kind]*KindModel
}

func (r *ParsedReport) Model(k Kind) (*KindModel, bool) {
	m, ok := r.models[k]
	return m, ok
}

func (r *ParsedReport) ErrorsFor(k Kind) []error {
	var out []error
	for _, err := range r.Errors {
		if Detail(err).Kind == k {
			out = append(out, err)
		}
	}
	return out
}

func (r *ParsedReport) Details() []ErrorDetail {
	out := make([]ErrorDetail, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, Detail(err))
	}
	return out
}

// PageCount counts decoded pages across all paged kinds.
func (r *ParsedReport) PageCount() int {
	n := 0
	for _, m := range r.models {
		n += m.Len()
	}
	return n
}

func (r *ParsedReport) MarshalJSON() ([]byte, error) {
	models := make([]*KindModel, 0, len(r.models))
	for _, k := range r.Requested {
		if m, ok := r.models[k]; ok {
			models = append(models, m)
		}
	}
	warnings := r.Warnings
	if warnings == nil {
		warnings = []Warning{}
	}
	return json.Marshal(struct {
		Source   string        `json:"source"`
		Kinds    []Kind        `json:"kinds"`
		Summary  *Summary      `json:"summary,omitempty"`
		Models   []*KindModel  `json:"models"`
		Errors   []ErrorDetail `json:"errors"`
		Warnings []Warning     `json:"warnings"`
	}{r.Source, r.Requested, r.Summary, models, r.Details(), warnings})
}
