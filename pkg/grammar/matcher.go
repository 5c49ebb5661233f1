package grammar

import (
	"regexp"
)

// exactCode matches a literal APS field code.
var exactCode = regexp.MustCompile(`^[A-Z][A-Z0-9]{2,3}$`)

// Matcher selects field codes, either by exact code or by an anchored
// regular expression over the whole code.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// NewMatcher compiles pattern. Literal codes compare by equality, anything
// else is compiled as a regular expression that must match the whole code.
func NewMatcher(pattern string) (*Matcher, error) {
	m := &Matcher{pattern: pattern}
	if exactCode.MatchString(pattern) {
		return m, nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, err
	}
	m.re = re
	return m, nil
}

// Match reports whether code is selected.
func (m *Matcher) Match(code string) bool {
	if m.re == nil {
		return code == m.pattern
	}
	return m.re.MatchString(code)
}

// IsExact reports whether the matcher is a literal code.
func (m *Matcher) IsExact() bool { return m.re == nil }

func (m *Matcher) String() string { return m.pattern }
