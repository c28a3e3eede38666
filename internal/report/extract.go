package report

import (
	"regexp"
	"strconv"
	"strings"
)

// Boundary is the minimal anchor/terminator pair that delimits one record.
// If Anchor has a capture group, its first group is the page id.
type Boundary struct {
	Anchor     *regexp.Regexp
	Terminator *regexp.Regexp
}

// Span is the raw text of one record.
type Span struct {
	PageID int
	// Text runs from the start of the anchor to the end of the terminator.
	Text string
	// Body is the text between the anchor and the terminator.
	Body string
	// Offset is the byte offset of Text within the document.
	Offset int
	// Line is the 1-based line of the anchor.
	Line int
	// Terminated is false when the next anchor or the end of the document
	// was reached before a terminator.
	Terminated bool
}

// Extractor scans a document for records in order. It is not restartable;
// create a new one to scan again.
type Extractor struct {
	doc      string
	boundary Boundary
	pos      int
	line     int
	lineAt   int
	span     Span
	err      error
}

func NewExtractor(doc string, b Boundary) *Extractor {
	return &Extractor{doc: doc, boundary: b, line: 1}
}

// Next advances to the next record and reports whether one was found.
func (e *Extractor) Next() bool {
	if e.err != nil || e.pos > len(e.doc) {
		return false
	}
	rest := e.doc[e.pos:]
	loc := e.boundary.Anchor.FindStringSubmatchIndex(rest)
	if loc == nil {
		e.pos = len(e.doc) + 1
		return false
	}
	start := e.pos + loc[0]
	anchorEnd := e.pos + loc[1]
	if anchorEnd == start {
		// an empty anchor match would never advance
		anchorEnd++
	}

	id := NoPage
	if len(loc) >= 4 && loc[2] >= 0 {
		n, err := strconv.Atoi(rest[loc[2]:loc[3]])
		if err != nil {
			e.err = err
			return false
		}
		id = n
	}

	limit := len(e.doc)
	if anchorEnd < len(e.doc) {
		if next := e.boundary.Anchor.FindStringIndex(e.doc[anchorEnd:]); next != nil {
			limit = anchorEnd + next[0]
		}
	}

	end, bodyEnd, terminated := limit, limit, false
	if anchorEnd <= limit && e.boundary.Terminator != nil {
		if t := e.boundary.Terminator.FindStringIndex(e.doc[anchorEnd:limit]); t != nil {
			bodyEnd = anchorEnd + t[0]
			end = anchorEnd + t[1]
			terminated = true
		}
	}
	if bodyEnd < anchorEnd {
		bodyEnd = anchorEnd
	}
	if end < bodyEnd {
		end = bodyEnd
	}

	e.span = Span{
		PageID:     id,
		Text:       e.doc[start:min(end, len(e.doc))],
		Body:       e.doc[min(anchorEnd, len(e.doc)):min(bodyEnd, len(e.doc))],
		Offset:     start,
		Line:       e.lineOf(start),
		Terminated: terminated,
	}
	if end == e.pos {
		end++
	}
	e.pos = end
	return true
}

func (e *Extractor) Span() Span { return e.span }

func (e *Extractor) Err() error { return e.err }

// lineOf counts lines incrementally; offsets only grow between calls.
func (e *Extractor) lineOf(offset int) int {
	e.line += strings.Count(e.doc[e.lineAt:offset], "\n")
	e.lineAt = offset
	return e.line
}

// Extract collects every record in document order.
func Extract(doc string, b Boundary) ([]Span, error) {
	var out []Span
	ex := NewExtractor(doc, b)
	for ex.Next() {
		out = append(out, ex.Span())
	}
	return out, ex.Err()
}
