package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Observer receives parse outcomes, typically to export metrics.
type Observer interface {
	PageParsed(kind Kind)
	PageFailed(kind Kind, code string)
	ParseFinished(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) PageParsed(Kind) {}

func (nopObserver) PageFailed(Kind, string) {}

func (nopObserver) ParseFinished(time.Duration) {}

const DefaultStepTolerance = 0.01

type Parser struct {
	log           zerolog.Logger
	observer      Observer
	stepTolerance float64
	parallel      bool
	encoding      string
}

type Option func(*Parser)

func WithLogger(l zerolog.Logger) Option { return func(p *Parser) { p.log = l } }

func WithObserver(o Observer) Option {
	return func(p *Parser) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithStepTolerance sets the relative mesh step deviation that is reported
// as a warning.
func WithStepTolerance(t float64) Option {
	return func(p *Parser) {
		if t > 0 {
			p.stepTolerance = t
		}
	}
}

// WithParallel parses each requested kind on its own goroutine.
func WithParallel(on bool) Option { return func(p *Parser) { p.parallel = on } }

// WithEncoding sets the charset ParseFile decodes from.
func WithEncoding(name string) Option { return func(p *Parser) { p.encoding = name } }

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		log:           zerolog.Nop(),
		observer:      nopObserver{},
		stepTolerance: DefaultStepTolerance,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse parses doc with default options.
func Parse(doc Document, kinds []Kind) (*ParsedReport, error) {
	return NewParser().Parse(doc, kinds)
}

func (p *Parser) ParseFile(path string, kinds []Kind) (*ParsedReport, error) {
	if _, err := resolveKinds(kinds); err != nil {
		return nil, err
	}
	doc, err := LoadDocument(path, p.encoding)
	if err != nil {
		return nil, err
	}
	return p.Parse(doc, kinds)
}

type kindResult struct {
	summary  *Summary
	model    *KindModel
	errs     []error
	warnings []Warning
}

// Parse extracts every requested kind. Failures inside a kind are collected
// in the result; only an unknown kind fails the call.
func (p *Parser) Parse(doc Document, kinds []Kind) (*ParsedReport, error) {
	ls, err := resolveKinds(kinds)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	results := make([]kindResult, len(ls))
	if p.parallel && len(ls) > 1 {
		var g errgroup.Group
		for i, l := range ls {
			i, l := i, l
			g.Go(func() error {
				results[i] = p.parseKind(doc, l)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, l := range ls {
			results[i] = p.parseKind(doc, l)
		}
	}

	out := &ParsedReport{Source: doc.Path, models: map[Kind]*KindModel{}}
	for i, l := range ls {
		res := results[i]
		out.Requested = append(out.Requested, l.Kind)
		if res.summary != nil {
			out.Summary = res.summary
		}
		if res.model != nil {
			out.models[l.Kind] = res.model
		}
		out.Errors = append(out.Errors, res.errs...)
		out.Warnings = append(out.Warnings, res.warnings...)
	}
	d := time.Since(start)
	p.observer.ParseFinished(d)
	p.log.Debug().
		Str("source", doc.Path).
		Int("kinds", len(ls)).
		Int("pages", out.PageCount()).
		Int("errors", len(out.Errors)).
		Dur("duration", d).
		Msg("report parsed")
	return out, nil
}

func resolveKinds(kinds []Kind) ([]Layout, error) {
	out := make([]Layout, 0, len(kinds))
	seen := map[Kind]bool{}
	for _, k := range kinds {
		l, ok := LayoutFor(k)
		if !ok {
			return nil, &UnknownKindError{Kind: k}
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, l)
	}
	return out, nil
}

func (p *Parser) parseKind(doc Document, l Layout) kindResult {
	if !l.Paged() {
		return p.parseSummary(doc, l)
	}
	var res kindResult
	model := newKindModel(l.Kind)
	ex := NewExtractor(doc.Text, l.Boundary)
	found := 0
	for ex.Next() {
		span := ex.Span()
		if !l.claims(span.Body) {
			continue
		}
		found++
		rec, warnings, err := p.decodePage(l, span)
		res.warnings = append(res.warnings, warnings...)
		if err != nil {
			res.errs = append(res.errs, p.fail(l.Kind, span.PageID, err))
			continue
		}
		if !model.add(rec) {
			res.errs = append(res.errs, p.fail(l.Kind, span.PageID, &DuplicatePageError{
				Location: Location{Kind: l.Kind, Page: span.PageID, Snippet: snippet(span.Text)},
			}))
			continue
		}
		p.observer.PageParsed(l.Kind)
	}
	if err := ex.Err(); err != nil {
		res.errs = append(res.errs, fmt.Errorf("%s: scan pages: %w", l.Kind, err))
	}
	if found == 0 {
		res.errs = append(res.errs, p.fail(l.Kind, NoPage, &MissingSectionError{
			Location: Location{Kind: l.Kind, Page: NoPage},
		}))
		return res
	}
	res.model = model
	return res
}

func (p *Parser) parseSummary(doc Document, l Layout) kindResult {
	var res kindResult
	prod, prodFound, prodErr := firstTable(doc.Text, productionBoundary, l.Table.Columns)
	leak, leakFound, leakErr := firstTable(doc.Text, leakageBoundary, l.Table.Columns)
	if !prodFound && !leakFound {
		res.errs = append(res.errs, p.fail(l.Kind, NoPage, &MissingSectionError{
			Location: Location{Kind: l.Kind, Page: NoPage},
		}))
		return res
	}
	if !prodFound {
		res.errs = append(res.errs, p.fail(l.Kind, NoPage, &MissingPartError{Part: "production table"}))
	}
	if !leakFound {
		res.errs = append(res.errs, p.fail(l.Kind, NoPage, &MissingPartError{Part: "leakage table"}))
	}
	for _, err := range []error{prodErr, leakErr} {
		if err != nil {
			res.errs = append(res.errs, p.fail(l.Kind, NoPage, err))
		}
	}
	if prod != nil || leak != nil {
		res.summary = &Summary{Production: prod, Leakage: leak}
		p.observer.PageParsed(l.Kind)
	}
	return res
}

// firstTable decodes the first occurrence only; later occurrences repeat
// the same section.
func firstTable(text string, b Boundary, cols []Column) (*Table, bool, error) {
	ex := NewExtractor(text, b)
	if !ex.Next() {
		return nil, false, nil
	}
	t, err := DecodeTable(ex.Span().Body, cols)
	if err != nil {
		return nil, true, err
	}
	return t, true, nil
}

func (p *Parser) fail(kind Kind, page int, err error) error {
	err = withLocation(err, kind, page)
	d := Detail(err)
	p.observer.PageFailed(kind, d.Code)
	p.log.Warn().Str("kind", string(kind)).Int("page", page).Str("code", d.Code).Err(err).Msg("report section skipped")
	return err
}

// claims reports whether a page carries this kind's data part. Paged kinds
// share one page anchor, so pages of other kinds are skipped here rather
// than reported as broken.
func (l Layout) claims(body string) bool {
	if l.Table != nil && l.Table.Header != nil && !l.Table.Header.MatchString(body) {
		return false
	}
	if l.Mesh != nil && !l.Mesh.Dims.MatchString(body) {
		return false
	}
	return true
}

func (p *Parser) decodePage(l Layout, span Span) (PageRecord, []Warning, error) {
	rec := PageRecord{Kind: l.Kind, ID: span.PageID}
	body := span.Body
	cursor := 0

	if l.Table != nil {
		start := 0
		if l.Table.Header != nil {
			loc := l.Table.Header.FindStringIndex(body)
			if loc == nil {
				return rec, nil, &MissingPartError{Location: Location{Snippet: snippet(span.Text)}, Part: "table header"}
			}
			start = loc[1]
		}
		end := blockEnd(body, start, l.Table.End)
		t, err := DecodeTable(body[start:end], l.Table.Columns)
		if err != nil {
			return rec, nil, err
		}
		rec.Table = t
		cursor = end
	}

	var warnings []Warning
	if l.Mesh != nil {
		m, end, err := decodeMesh(body, l.Mesh)
		if err != nil {
			return rec, nil, err
		}
		for _, a := range []Axis{m.RowAxis, m.ColAxis} {
			if dev := a.StepDeviation(); dev > p.stepTolerance {
				w := Warning{
					Kind:    l.Kind,
					Page:    span.PageID,
					Message: fmt.Sprintf("%s step %g differs from (max-min)/%d by %.2f%%", a.Name, a.Step, a.Bins, dev*100),
				}
				warnings = append(warnings, w)
				p.log.Warn().Str("kind", string(l.Kind)).Int("page", span.PageID).Str("axis", a.Name).Float64("deviation", dev).Msg("mesh step inconsistent with bounds")
			}
		}
		rec.Mesh = m
		cursor = end
	}

	if l.Metadata != nil {
		md, err := decodeMetadata(body[cursor:], l.Metadata)
		if err != nil {
			return rec, warnings, err
		}
		rec.Metadata = md
	}
	return rec, warnings, nil
}

func blockEnd(body string, start int, end *regexp.Regexp) int {
	if end == nil {
		return len(body)
	}
	if loc := end.FindStringIndex(body[start:]); loc != nil {
		return start + loc[0]
	}
	return len(body)
}

func decodeMesh(body string, mp *MeshPart) (*Mesh, int, error) {
	dims := mp.Dims.FindStringSubmatchIndex(body)
	if dims == nil {
		return nil, 0, &MissingPartError{Location: Location{Snippet: snippet(body)}, Part: "mesh dimensions"}
	}
	group := func(loc []int, g int) string { return body[loc[2*g]:loc[2*g+1]] }
	rows, err := strconv.Atoi(group(dims, mp.RowGroup))
	if err != nil {
		return nil, 0, &TypeCoercionError{Location: Location{Snippet: snippet(body[dims[0]:dims[1]])}, Field: mp.RowAxis + " bins", Token: group(dims, mp.RowGroup), Want: Int}
	}
	cols, err := strconv.Atoi(group(dims, mp.ColGroup))
	if err != nil {
		return nil, 0, &TypeCoercionError{Location: Location{Snippet: snippet(body[dims[0]:dims[1]])}, Field: mp.ColAxis + " bins", Token: group(dims, mp.ColGroup), Want: Int}
	}

	rest := body[dims[1]:]
	axes := mp.Axes.FindStringSubmatchIndex(rest)
	if axes == nil {
		return nil, 0, &MissingPartError{Location: Location{Snippet: snippet(rest)}, Part: "mesh axes"}
	}
	names := []string{"from", "to", "step"}
	var bounds [6]float64
	for i := range bounds {
		tok := strings.TrimSpace(rest[axes[2*(i+1)]:axes[2*(i+1)+1]])
		f, ok := parseNumber(tok)
		if !ok {
			axis := mp.RowAxis
			if i >= 3 {
				axis = mp.ColAxis
			}
			return nil, 0, &TypeCoercionError{
				Location: Location{Snippet: snippet(rest[axes[0]:axes[1]])},
				Field:    axis + " " + names[i%3],
				Token:    tok,
				Want:     Float,
			}
		}
		bounds[i] = f
	}

	dataStart := dims[1] + axes[1]
	dataEnd := blockEnd(body, dataStart, mp.End)
	m, err := Reshape(body[dataStart:dataEnd], rows, cols)
	if err != nil {
		return nil, 0, err
	}
	m.RowAxis = NewAxis(mp.RowAxis, bounds[0], bounds[1], bounds[2], rows)
	m.ColAxis = NewAxis(mp.ColAxis, bounds[3], bounds[4], bounds[5], cols)
	return m, dataEnd, nil
}

func decodeMetadata(text string, mp *MetadataPart) (Metadata, error) {
	loc := mp.Anchor.FindStringIndex(text)
	if loc == nil {
		return Metadata{}, &MissingPartError{Location: Location{Snippet: snippet(text)}, Part: "metadata block"}
	}
	lines := strings.Split(text[loc[1]:], "\n")
	var pairs []Pair
	slots := mp.Slots
	i := 0
	if mp.Title {
		for ; i < len(lines); i++ {
			if t := strings.TrimSpace(lines[i]); t != "" {
				pairs = append(pairs, Pair{Label: "title", Raw: t, Line: i + 1})
				i++
				break
			}
		}
		slots = append([]Slot{Literal}, slots...)
	}
	annotations := 0
	for ; i < len(lines); i++ {
		pair, ok := parseAnnotation(lines[i])
		if !ok {
			continue
		}
		pair.Line = i + 1
		pairs = append(pairs, pair)
		annotations++
	}
	if annotations < len(mp.Slots) || (mp.Title && len(pairs) == annotations) {
		return Metadata{}, &MissingPartError{
			Location: Location{Snippet: snippet(text[loc[0]:])},
			Part:     fmt.Sprintf("metadata fields (found %d of %d)", annotations, len(mp.Slots)),
		}
	}
	md, err := Bind(pairs, slots)
	if err != nil {
		return Metadata{}, err
	}
	return md, nil
}
