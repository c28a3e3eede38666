package report

import (
	"errors"
	"fmt"
)

var (
	ErrFileNotFound  = errors.New("report file not found")
	ErrFieldNotFound = errors.New("metadata field not found")
	ErrFieldType     = errors.New("metadata field has wrong type")
	ErrColumnUnknown = errors.New("unknown table column")
	ErrColumnType    = errors.New("table column has wrong type")
)

// NoPage marks errors that are not tied to a single page.
const NoPage = -1

// Location identifies where in a report an error was found.
type Location struct {
	Kind    Kind   `json:"kind"`
	Page    int    `json:"page"`
	Snippet string `json:"snippet,omitempty"`
}

func (l Location) Where() Location { return l }

func (l Location) prefix() string {
	switch {
	case l.Kind == "":
		return ""
	case l.Page == NoPage:
		return string(l.Kind) + ": "
	default:
		return fmt.Sprintf("%s page %d: ", l.Kind, l.Page)
	}
}

// locate fills in kind and page for errors raised by the decoders, which
// do not know which page they are working on.
func (l *Location) locate(kind Kind, page int) {
	if l.Kind != "" {
		return
	}
	l.Kind = kind
	l.Page = page
}

// Error is implemented by every error scoped to one kind or page.
type Error interface {
	error
	Where() Location
	Code() string
	locate(kind Kind, page int)
}

// UnknownKindError aborts the whole parse call.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown report kind %q", string(e.Kind))
}

type MissingSectionError struct {
	Location
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("%sno matching section in report", e.prefix())
}

func (e *MissingSectionError) Code() string { return "missing_section" }

// MissingPartError reports a structural part of a page (table header, mesh
// block, metadata lines) that could not be found.
type MissingPartError struct {
	Location
	Part string
}

func (e *MissingPartError) Error() string {
	return fmt.Sprintf("%smissing %s", e.prefix(), e.Part)
}

func (e *MissingPartError) Code() string { return "missing_part" }

type MalformedRowError struct {
	Location
	Line int
	Got  int
	Want int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("%srow %d has %d fields, want %d: %q", e.prefix(), e.Line, e.Got, e.Want, e.Snippet)
}

func (e *MalformedRowError) Code() string { return "malformed_row" }

type ShapeMismatchError struct {
	Location
	Rows int
	Cols int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%smesh declares %dx%d=%d values, found %d", e.prefix(), e.Rows, e.Cols, e.Rows*e.Cols, e.Got)
}

func (e *ShapeMismatchError) Code() string { return "shape_mismatch" }

type TypeCoercionError struct {
	Location
	Field string
	Token string
	Want  ValueType
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("%scannot read %q as %s for %s", e.prefix(), e.Token, e.Want, e.Field)
}

func (e *TypeCoercionError) Code() string { return "type_coercion" }

type DuplicatePageError struct {
	Location
}

func (e *DuplicatePageError) Error() string {
	return fmt.Sprintf("%sduplicate page id, later occurrence ignored", e.prefix())
}

func (e *DuplicatePageError) Code() string { return "duplicate_page" }

// ErrorDetail is the serializable form of a scoped error.
type ErrorDetail struct {
	Location
	Code    string `json:"code"`
	Message string `json:"message"`
}

func Detail(err error) ErrorDetail {
	var re Error
	if errors.As(err, &re) {
		return ErrorDetail{Location: re.Where(), Code: re.Code(), Message: err.Error()}
	}
	return ErrorDetail{Location: Location{Page: NoPage}, Code: "error", Message: err.Error()}
}

func withLocation(err error, kind Kind, page int) error {
	var re Error
	if errors.As(err, &re) {
		re.locate(kind, page)
	}
	return err
}
