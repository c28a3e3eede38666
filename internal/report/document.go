package report

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"phitsreport/internal/util"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Document is the full text of one report file.
type Document struct {
	Path string
	Text string
}

func NewDocument(path, text string) Document {
	return Document{Path: path, Text: normalizeNewlines(text)}
}

// LoadDocument reads a report into memory. A non-empty encoding other than
// utf-8 names a WHATWG charset (shift_jis, euc-jp, windows-1252, ...).
func LoadDocument(path, encoding string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Document{}, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if enc := strings.ToLower(strings.TrimSpace(encoding)); enc != "" && enc != "utf-8" && enc != "utf8" {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return Document{}, fmt.Errorf("report encoding %q: %w", encoding, err)
		}
		r = transform.NewReader(f, e.NewDecoder())
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read report %s: %w", path, err)
	}
	return NewDocument(path, string(b)), nil
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func snippet(s string) string {
	return util.Snippet(s, 160)
}
