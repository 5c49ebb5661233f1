// Package aps reads the line-oriented APS text format used by the USPTO for
// patent grants issued before the XML era.
//
// Every logical field is one physical line: a three or four character code,
// whitespace, and the value. Four-character codes may open a section.
package aps

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies a raw line.
type Kind int

// Line kinds.
const (
	// Field is a CODE VALUE line.
	Field Kind = iota
	// Continuation is an indented line carrying more text for the previous field.
	Continuation
	// Blank lines carry nothing.
	Blank
	// Unrecognized lines have no valid leading code.
	Unrecognized
)

func (k Kind) String() string {
	switch k {
	case Field:
		return "field"
	case Continuation:
		return "continuation"
	case Blank:
		return "blank"
	case Unrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// fieldLine matches a leading code followed by whitespace or end of line.
var fieldLine = regexp.MustCompile(`^([A-Z][A-Z0-9]{2,3})(?:[ \t]+(.*))?$`)

// Line is one classified input line.
type Line struct {
	// Number is the 1-based line number in the source.
	Number int
	Kind   Kind
	Code   string
	Value  string
	Raw    string
}

// MayOpenSection reports whether the code has section length. Whether it
// actually opens a section depends on the grammar.
func (l Line) MayOpenSection() bool { return l.Kind == Field && len(l.Code) == 4 }

// Classify splits a raw line into code and value.
func Classify(raw string) Line {
	raw = strings.TrimRight(raw, "\r\n")
	l := Line{Raw: raw}

	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		l.Kind = Blank
		return l
	case raw[0] == ' ' || raw[0] == '\t':
		l.Kind = Continuation
		l.Value = trimmed
		return l
	}

	m := fieldLine.FindStringSubmatch(strings.TrimRight(raw, " \t"))
	if m == nil {
		l.Kind = Unrecognized
		return l
	}
	l.Kind = Field
	l.Code = m[1]
	l.Value = strings.TrimSpace(m[2])
	return l
}

// UnrecognizedLine reports a line whose leading token is not a field code.
// It is recovered by skipping the line.
type UnrecognizedLine struct {
	Number int
	Text   string
}

func (e *UnrecognizedLine) Error() string {
	text := e.Text
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	return fmt.Sprintf("line %d: unrecognized line %q", e.Number, text)
}
