// Package deck reads and edits PHITS input files while keeping every line
// that is not edited byte for byte.
package deck

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"phitsreport/internal/util"
)

var (
	ErrUnknownSection = errors.New("unknown deck section")
	ErrUnknownKey     = errors.New("unknown deck key")
	ErrFieldRange     = errors.New("deck field out of range")
)

// Line is one source line. Key is empty for blank lines, comments and
// anything else that cannot be addressed.
type Line struct {
	Key   string
	Value string
	raw   string
	pre   string
	post  string
}

func (l *Line) String() string { return l.raw }

type Section struct {
	// Name is the header with spaces removed and lower-cased, so
	// "[ T - C r o s s ]" is "t-cross". The preamble has no name.
	Name   string
	header string
	lines  []*Line
}

func (s *Section) Lines() []*Line { return s.lines }

type Deck struct {
	sections []*Section
}

func Load(path string) (*Deck, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck: %w", err)
	}
	return Parse(string(b))
}

func Parse(text string) (*Deck, error) {
	d := &Deck{sections: []*Section{{}}}
	cur := d.sections[0]
	ended := false
	for i, raw := range strings.Split(text, "\n") {
		if !ended {
			if name, ok, err := sectionHeader(raw); err != nil {
				return nil, fmt.Errorf("deck line %d: %w", i+1, err)
			} else if ok {
				cur = &Section{Name: name, header: raw}
				d.sections = append(d.sections, cur)
				ended = name == "end"
				continue
			}
		}
		cur.lines = append(cur.lines, parseLine(raw, cur, ended))
	}
	return d, nil
}

func sectionHeader(raw string) (string, bool, error) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "[") {
		return "", false, nil
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return "", false, fmt.Errorf("unterminated section header %q", s)
	}
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s[1:end])
	if name == "" {
		return "", false, fmt.Errorf("empty section header")
	}
	return name, true, nil
}

func parseLine(raw string, sec *Section, ended bool) *Line {
	l := &Line{raw: raw}
	trimmed := strings.TrimSpace(raw)
	if ended || trimmed == "" || trimmed[0] == '$' || trimmed[0] == '#' {
		return l
	}
	cs := commentStart(raw)
	body := raw[:cs]

	if sec.Name == "title" {
		if !sec.hasKey("title") {
			l.bind("title", raw, 0, len(raw))
		}
		return l
	}
	if eq := strings.IndexByte(body, '='); eq > 0 {
		key := strings.TrimSpace(body[:eq])
		if key != "" {
			l.bind(strings.ToLower(key), raw, eq+1, cs)
		}
		return l
	}
	f := fieldSpans(body)
	if len(f) > 0 {
		l.bind(strings.ToLower(body[f[0][0]:f[0][1]]), raw, f[0][1], cs)
	}
	return l
}

// bind marks raw[from:to], trimmed, as the value of key.
func (l *Line) bind(key, raw string, from, to int) {
	seg := raw[from:to]
	lead := len(seg) - len(strings.TrimLeft(seg, " \t"))
	val := strings.TrimSpace(seg)
	start := from + lead
	l.Key = key
	l.Value = val
	l.pre = raw[:start]
	l.post = raw[start+len(val):]
}

func (l *Line) set(v string) {
	l.Value = v
	if l.post != "" && v != "" && !strings.HasPrefix(l.post, " ") && !strings.HasPrefix(l.post, "\t") {
		l.post = " " + l.post
	}
	l.raw = l.pre + v + l.post
}

// commentStart finds a '$' comment or a '#' followed by a blank. A '#'
// glued to a number is a cell complement, not a comment.
func commentStart(s string) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '$':
			return i
		case '#':
			if (i == 0 || s[i-1] == ' ' || s[i-1] == '\t') && (i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\t') {
				return i
			}
		}
	}
	return len(s)
}

func fieldSpans(s string) [][2]int {
	var out [][2]int
	start := -1
	for i := 0; i <= len(s); i++ {
		blank := i == len(s) || s[i] == ' ' || s[i] == '\t'
		switch {
		case !blank && start < 0:
			start = i
		case blank && start >= 0:
			out = append(out, [2]int{start, i})
			start = -1
		}
	}
	return out
}

func (s *Section) hasKey(key string) bool {
	return s.line(key) != nil
}

func (s *Section) line(key string) *Line {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, l := range s.lines {
		if l.Key == key {
			return l
		}
	}
	return nil
}

// Sections lists section references in file order. Repeated names get an
// occurrence suffix from the second one on: "t-cross", "t-cross:2".
func (d *Deck) Sections() []string {
	var out []string
	seen := map[string]int{}
	for _, s := range d.sections[1:] {
		seen[s.Name]++
		if n := seen[s.Name]; n > 1 {
			out = append(out, s.Name+":"+strconv.Itoa(n))
			continue
		}
		out = append(out, s.Name)
	}
	return out
}

// Section resolves "name" or "name:N" (1-based occurrence).
func (d *Deck) Section(ref string) (*Section, error) {
	name, nth := strings.ToLower(strings.TrimSpace(ref)), 1
	if i := strings.LastIndexByte(name, ':'); i > 0 {
		n, err := strconv.Atoi(name[i+1:])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSection, ref)
		}
		name, nth = name[:i], n
	}
	name = strings.ReplaceAll(name, " ", "")
	for _, s := range d.sections[1:] {
		if s.Name != name {
			continue
		}
		if nth--; nth == 0 {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSection, ref)
}

func (d *Deck) lookup(ref, key string) (*Line, error) {
	s, err := d.Section(ref)
	if err != nil {
		return nil, err
	}
	l := s.line(key)
	if l == nil {
		return nil, fmt.Errorf("%w: %s in [%s]", ErrUnknownKey, key, ref)
	}
	return l, nil
}

func (d *Deck) Get(ref, key string) (string, error) {
	l, err := d.lookup(ref, key)
	if err != nil {
		return "", err
	}
	return l.Value, nil
}

// Set replaces the value of key in the referenced section. Sections and
// keys must already exist; trailing comments are kept.
func (d *Deck) Set(ref, key, value string) error {
	l, err := d.lookup(ref, key)
	if err != nil {
		return err
	}
	l.set(strings.TrimSpace(value))
	return nil
}

// SetField replaces the n-th (1-based) whitespace field of a value, for
// rows such as surfaces ("40 pz 25.") where only one number changes.
func (d *Deck) SetField(ref, key string, n int, value string) error {
	l, err := d.lookup(ref, key)
	if err != nil {
		return err
	}
	f := fieldSpans(l.Value)
	if n < 1 || n > len(f) {
		return fmt.Errorf("%w: field %d of %s in [%s] (has %d)", ErrFieldRange, n, key, ref, len(f))
	}
	sp := f[n-1]
	l.set(l.Value[:sp[0]] + strings.TrimSpace(value) + l.Value[sp[1]:])
	return nil
}

func (d *Deck) Clone() *Deck {
	out := &Deck{sections: make([]*Section, len(d.sections))}
	for i, s := range d.sections {
		cs := &Section{Name: s.Name, header: s.header, lines: make([]*Line, len(s.lines))}
		for j, l := range s.lines {
			cp := *l
			cs.lines[j] = &cp
		}
		out.sections[i] = cs
	}
	return out
}

func (d *Deck) String() string {
	var lines []string
	for i, s := range d.sections {
		if i > 0 {
			lines = append(lines, s.header)
		}
		for _, l := range s.lines {
			lines = append(lines, l.raw)
		}
	}
	return strings.Join(lines, "\n")
}

func (d *Deck) WriteFile(path string) error {
	return util.WriteTextAtomic(path, d.String())
}
