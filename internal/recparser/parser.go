// Package recparser implements the pull parser that turns rec-format
// text into an in-memory core.Database.
package recparser

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"recdb/internal/core"
)

// SyntaxError reports a parse failure with its source name and line
// number, following the original implementation's "source:line: message"
// error convention.
type SyntaxError struct {
	Source  string
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	src := e.Source
	if src == "" {
		src = "<memory>"
	}
	return fmt.Sprintf("%s:%d: %s", src, e.Line, e.Message)
}

var fieldNameRe = regexp.MustCompile(`^[A-Za-z%][A-Za-z0-9_]*$`)

type rawLine struct {
	text   string
	lineNo int
	offset int
}

func splitLines(data []byte) []rawLine {
	s := string(data)
	var out []rawLine
	lineNo := 1
	offset := 0
	start := 0
	for i, c := range s {
		if c == '\n' {
			out = append(out, rawLine{text: s[start:i], lineNo: lineNo, offset: offset})
			start = i + 1
			offset = i + 1
			lineNo++
		}
	}
	if start < len(s) {
		out = append(out, rawLine{text: s[start:], lineNo: lineNo, offset: offset})
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Parse parses the entirety of data (read from source, used only for
// error messages) into a Database.
func Parse(source string, data []byte) (*core.Database, error) {
	p := &parseState{source: source, lines: splitLines(data)}
	return p.run()
}

// ParseFile opens and parses path.
func ParseFile(path string) (*core.Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recparser: reading %s: %w", path, err)
	}
	return Parse(path, data)
}

// ParseReader reads r to completion and parses it, reporting errors
// against sourceName.
func ParseReader(sourceName string, r io.Reader) (*core.Database, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("recparser: reading %s: %w", sourceName, err)
	}
	return Parse(sourceName, data)
}

type parseState struct {
	source string
	lines  []rawLine
	pos    int
}

func (p *parseState) errf(lineNo int, format string, args ...interface{}) error {
	return &SyntaxError{Source: p.source, Line: lineNo, Message: fmt.Sprintf(format, args...)}
}

func (p *parseState) run() (*core.Database, error) {
	db := core.NewDatabase()
	var activeRSet *core.RSet

	for p.pos < len(p.lines) {
		rec, isDescr, err := p.parseRecordOrComments(db, activeRSet)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue // a run of top-level comments was consumed and attached
		}

		if isDescr {
			rs := core.NewRSet("")
			if err := rs.SetDescriptor(rec, 0); err != nil {
				return nil, p.errf(rec.Position, "bad record descriptor: %v", err)
			}
			if err := db.AppendRSet(rs); err != nil {
				return nil, err
			}
			activeRSet = rs
			continue
		}

		if activeRSet == nil {
			activeRSet = core.NewRSet("")
			if err := db.AppendRSet(activeRSet); err != nil {
				return nil, err
			}
		}
		activeRSet.AppendRecord(rec)
	}

	return db, nil
}

// parseRecordOrComments consumes either: a run of blank lines (returns
// nil, false, nil), a run of top-level comments immediately followed by
// a blank line or EOF (attached directly to activeRSet and returns nil,
// false, nil), or exactly one record (field/comment lines up to a blank
// line or EOF), returned together with whether it is a %rec:-bearing
// descriptor.
func (p *parseState) parseRecordOrComments(db *core.Database, activeRSet *core.RSet) (*core.Record, bool, error) {
	// Skip blank lines.
	for p.pos < len(p.lines) && isBlank(p.lines[p.pos].text) {
		p.pos++
	}
	if p.pos >= len(p.lines) {
		return nil, false, nil
	}

	rec := core.NewRecord()
	hasField := false
	isDescr := false
	startLine := p.lines[p.pos].lineNo

	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if isBlank(line.text) {
			p.pos++
			break
		}

		if strings.HasPrefix(line.text, "#") {
			text, err := p.consumeComment()
			if err != nil {
				return nil, false, err
			}
			rec.AppendComment(core.NewComment(text))
			continue
		}

		if strings.HasPrefix(line.text, "+") {
			return nil, false, p.errf(line.lineNo, "continuation line without a preceding field")
		}

		f, err := p.consumeField()
		if err != nil {
			return nil, false, err
		}
		if f.Name == "%rec" {
			isDescr = true
		}
		rec.AppendField(f)
		hasField = true
	}

	if !hasField && len(rec.Comments()) > 0 {
		// A comment-only block with no following field is attached as a
		// top-level comment of whatever record set is currently active
		// (or held until one exists, by reattaching via the record
		// itself on the next call when a record set context appears).
		if activeRSet != nil {
			for _, c := range rec.Comments() {
				activeRSet.AppendComment(c)
			}
		}
		return nil, false, nil
	}
	if !hasField {
		return nil, false, nil
	}

	rec.Position = startLine
	return rec, isDescr, nil
}

// consumeComment consumes one or more consecutive '#' lines as a single
// logical comment, stripping the leading '#' from each and joining with
// '\n'.
func (p *parseState) consumeComment() (string, error) {
	var parts []string
	for p.pos < len(p.lines) && strings.HasPrefix(p.lines[p.pos].text, "#") {
		parts = append(parts, strings.TrimPrefix(p.lines[p.pos].text, "#"))
		p.pos++
	}
	return strings.Join(parts, "\n"), nil
}

// endsInSingleBackslash reports whether b ends in a '\' that is not
// itself escaped by a preceding '\', the trigger for fusing the next
// continuation line onto the value without an intervening newline.
func endsInSingleBackslash(b []byte) bool {
	n := len(b)
	if n == 0 || b[n-1] != '\\' {
		return false
	}
	return n < 2 || b[n-2] != '\\'
}

// consumeField consumes one "name: value" line plus any following '+'
// continuation lines.
func (p *parseState) consumeField() (*core.Field, error) {
	line := p.lines[p.pos]
	idx := strings.IndexByte(line.text, ':')
	if idx < 0 {
		return nil, p.errf(line.lineNo, "bad field: missing ':' in %q", line.text)
	}
	name := line.text[:idx]
	if !fieldNameRe.MatchString(name) {
		return nil, p.errf(line.lineNo, "bad field name %q", name)
	}
	value := line.text[idx+1:]
	value = strings.TrimPrefix(value, " ")
	p.pos++

	buf := core.NewBuffer()
	buf.PutStr(value)
	for p.pos < len(p.lines) && strings.HasPrefix(p.lines[p.pos].text, "+") {
		cont := strings.TrimPrefix(p.lines[p.pos].text, "+")
		cont = strings.TrimPrefix(cont, " ")
		if endsInSingleBackslash(buf.Bytes()) {
			buf.Rewind(buf.Len() - 1)
			buf.PutStr(cont)
		} else {
			buf.PutByte('\n')
			buf.PutStr(cont)
		}
		p.pos++
	}

	f := core.NewField(name, buf.String())
	f.Source = p.source
	f.Line = line.lineNo
	f.Offset = line.offset
	return f, nil
}
