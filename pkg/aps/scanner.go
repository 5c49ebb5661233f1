package aps

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding names the character set of an input file.
type Encoding string

// Supported encodings. USPTO APS files are ISO-8859-1.
const (
	Latin1 Encoding = "latin1"
	UTF8   Encoding = "utf-8"
)

// maxLineSize bounds a single physical line. Claims and description
// paragraphs are long but never approach this.
const maxLineSize = 4 << 20

// ParseEncoding maps common spellings to a supported encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return Latin1, nil
	case "utf-8", "utf8":
		return UTF8, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q (supported: latin1, utf-8)", name)
	}
}

// EncodingError reports bytes that are invalid in the declared encoding.
type EncodingError struct {
	Line     int
	Encoding Encoding
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("line %d: invalid %s text", e.Line, e.Encoding)
}

// Scanner yields classified lines from an APS file.
type Scanner struct {
	sc   *bufio.Scanner
	enc  Encoding
	line Line
	n    int
	err  error
}

// NewScanner wraps r, decoding it from enc.
func NewScanner(r io.Reader, enc Encoding) *Scanner {
	if enc == Latin1 || enc == "" {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
		enc = Latin1
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Scanner{sc: sc, enc: enc}
}

// Scan advances to the next line. It returns false at end of input or on
// error; check Err.
func (s *Scanner) Scan() bool {
	if s.err != nil || !s.sc.Scan() {
		return false
	}
	s.n++
	text := s.sc.Text()
	if s.enc == UTF8 && !utf8.ValidString(text) {
		s.err = &EncodingError{Line: s.n, Encoding: s.enc}
		return false
	}
	s.line = Classify(text)
	s.line.Number = s.n
	return true
}

// Line returns the current line.
func (s *Scanner) Line() Line { return s.line }

// Err returns the first read or decode error.
func (s *Scanner) Err() error {
	if s.err != nil {
		return s.err
	}
	if err := s.sc.Err(); err != nil {
		return fmt.Errorf("line %d: %w", s.n+1, err)
	}
	return nil
}
