package grammar

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// sectionCode matches a four-character section code.
var sectionCode = regexp.MustCompile(`^[A-Z][A-Z0-9]{3}$`)

// Options tune how rules are derived from the grammar file.
type Options struct {
	// DefaultJoiner is used by <fieldname> rules without <joiner>.
	// Empty selects DefaultJoiner.
	DefaultJoiner string
}

func (o Options) joiner() string {
	if o.DefaultJoiner == "" {
		return DefaultJoiner
	}
	return o.DefaultJoiner
}

// LoadFile reads and validates a grammar file.
func LoadFile(path string, opts Options) (*Grammar, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to open grammar: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f, opts)
}

// Load parses and validates a grammar from r.
//
// The YAML node tree is walked directly, so mapping order in the file is
// the rule order of the grammar.
func Load(r io.Reader, opts Options) (*Grammar, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Msg: "grammar is empty"}
		}
		return nil, &ConfigError{Msg: "invalid YAML", Err: err}
	}

	top := resolve(&doc)
	if top.Kind != yaml.MappingNode {
		return nil, &ConfigError{Line: top.Line, Msg: "grammar must be a mapping of section codes"}
	}

	g := &Grammar{sections: make(map[string]*Section)}
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i], resolve(top.Content[i+1])
		code := key.Value
		if !sectionCode.MatchString(code) {
			return nil, &ConfigError{Section: code, Line: key.Line, Msg: "section code must be four uppercase characters"}
		}
		if _, dup := g.sections[code]; dup {
			return nil, &ConfigError{Section: code, Line: key.Line, Msg: "section declared twice"}
		}
		s, err := parseSection(code, val, opts)
		if err != nil {
			return nil, err
		}
		if s.IsRoot() {
			if g.root != nil {
				return nil, &ConfigError{
					Section: code,
					Line:    key.Line,
					Msg:     fmt.Sprintf("%s already declared by section %s", KeyPrimaryKey, g.root.Code),
				}
			}
			g.root = s
		}
		g.sections[code] = s
		g.order = append(g.order, code)
	}

	if len(g.order) == 0 {
		return nil, &ConfigError{Msg: "grammar declares no sections"}
	}
	if g.root == nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("no section declares %s", KeyPrimaryKey)}
	}
	for _, s := range g.sections {
		if !s.IsRoot() && s.Entity == g.root.Entity {
			return nil, &ConfigError{Section: s.Code, Msg: fmt.Sprintf("entity %q is reserved for the root section", s.Entity)}
		}
	}
	if err := g.buildColumns(); err != nil {
		return nil, err
	}
	return g, nil
}

func parseSection(code string, n *yaml.Node, opts Options) (*Section, error) {
	if n.Kind != yaml.MappingNode {
		return nil, &ConfigError{Section: code, Line: n.Line, Msg: "section must be a mapping"}
	}
	s := &Section{Code: code}
	var fields *yaml.Node

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], resolve(n.Content[i+1])
		switch key.Value {
		case KeyEntity:
			s.Entity = strings.TrimSpace(val.Value)
		case KeyPrimaryKey:
			s.PrimaryKey = strings.TrimSpace(val.Value)
		case KeyFilenameField:
			s.FilenameField = strings.TrimSpace(val.Value)
		case KeyFields:
			fields = val
		default:
			return nil, &ConfigError{Section: code, Line: key.Line, Msg: fmt.Sprintf("unknown section key %q", key.Value)}
		}
	}

	if s.Entity == "" {
		return nil, &ConfigError{Section: code, Line: n.Line, Msg: fmt.Sprintf("missing %s", KeyEntity)}
	}
	if fields == nil || (fields.Kind == yaml.ScalarNode && fields.Tag == "!!null") {
		return s, nil
	}
	if err := parseFields(s, fields, opts); err != nil {
		return nil, err
	}
	if s.IsRoot() {
		// The root row is the patent itself and never splits.
		for _, r := range s.rules {
			if r.Behavior.Kind == NewRecord || r.Behavior.Kind == SplitOn {
				return nil, &ConfigError{
					Section: code,
					Field:   r.Matcher.String(),
					Msg:     fmt.Sprintf("%s rules are not allowed in the root section", r.Behavior.Kind),
				}
			}
		}
	}
	return s, nil
}

func parseFields(s *Section, fields *yaml.Node, opts Options) error {
	code := s.Code
	if fields.Kind != yaml.MappingNode {
		return &ConfigError{Section: code, Line: fields.Line, Msg: fmt.Sprintf("%s must be a mapping", KeyFields)}
	}

	for i := 0; i+1 < len(fields.Content); i += 2 {
		key, val := fields.Content[i], resolve(fields.Content[i+1])
		if key.Value == KeyConstant {
			consts, err := parseConstants(code, key.Value, val)
			if err != nil {
				return err
			}
			s.Constants = append(s.Constants, consts...)
			continue
		}

		m, err := NewMatcher(key.Value)
		if err != nil {
			return &ConfigError{Section: code, Field: key.Value, Line: key.Line, Msg: "invalid field pattern", Err: err}
		}

		specs := []*yaml.Node{val}
		if val.Kind == yaml.SequenceNode {
			specs = specs[:0]
			for _, item := range val.Content {
				specs = append(specs, resolve(item))
			}
		}
		for _, spec := range specs {
			rule, marker, err := parseRule(code, key.Value, m, spec, opts)
			if err != nil {
				return err
			}
			s.rules = append(s.rules, rule)
			if marker != nil {
				s.markers = append(s.markers, marker)
			}
		}
	}
	return nil
}

func parseRule(code, pattern string, m *Matcher, n *yaml.Node, opts Options) (*FieldRule, *Matcher, error) {
	fail := func(line int, msg string, err error) (*FieldRule, *Matcher, error) {
		return nil, nil, &ConfigError{Section: code, Field: pattern, Line: line, Msg: msg, Err: err}
	}

	rule := &FieldRule{Matcher: m}
	switch n.Kind {
	case yaml.ScalarNode:
		rule.Column = strings.TrimSpace(n.Value)
		if rule.Column == "" {
			return fail(n.Line, "empty column name", nil)
		}
		rule.Behavior = Behavior{Kind: Direct}
		return rule, nil, nil
	case yaml.MappingNode:
	default:
		return fail(n.Line, "field rule must be a column name or a mapping", nil)
	}

	var (
		joiner    *string
		splitter  string
		hasSplit  bool
		constants []ConstantValue
	)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], resolve(n.Content[i+1])
		switch key.Value {
		case KeyFieldname:
			rule.Column = strings.TrimSpace(val.Value)
		case KeyJoiner:
			j := val.Value
			joiner = &j
		case KeySplitter:
			splitter = strings.TrimSpace(val.Value)
			hasSplit = true
		case KeyConstant:
			c, err := parseConstants(code, pattern, val)
			if err != nil {
				return nil, nil, err
			}
			constants = append(constants, c...)
		case KeyEntity, KeyFields:
			return fail(key.Line, "nested entities are not supported", nil)
		default:
			return fail(key.Line, fmt.Sprintf("unknown rule key %q", key.Value), nil)
		}
	}
	rule.Constants = constants

	if rule.Column == "" {
		if len(constants) == 0 {
			return fail(n.Line, fmt.Sprintf("rule needs %s or %s", KeyFieldname, KeyConstant), nil)
		}
		if joiner != nil || hasSplit {
			return fail(n.Line, fmt.Sprintf("%s and %s need %s", KeyJoiner, KeySplitter, KeyFieldname), nil)
		}
		rule.Behavior = Behavior{Kind: Constant}
		return rule, nil, nil
	}

	delim := opts.joiner()
	if joiner != nil {
		delim = *joiner
	}

	var marker *Matcher
	if hasSplit {
		if splitter == "" {
			return fail(n.Line, fmt.Sprintf("empty %s", KeySplitter), nil)
		}
		var err error
		marker, err = NewMatcher(splitter)
		if err != nil {
			return fail(n.Line, "invalid splitter pattern", err)
		}
	}

	switch {
	case delim == NewRecordSentinel:
		rule.Behavior = Behavior{Kind: NewRecord}
	case marker != nil:
		rule.Behavior = Behavior{Kind: SplitOn, Delimiter: delim, Marker: marker}
	default:
		rule.Behavior = Behavior{Kind: Joined, Delimiter: delim}
	}
	return rule, marker, nil
}

// parseConstants accepts a single {<fieldname>, <enum_type>} mapping or a
// list of them.
func parseConstants(code, pattern string, n *yaml.Node) ([]ConstantValue, error) {
	items := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode {
		items = items[:0]
		for _, item := range n.Content {
			items = append(items, resolve(item))
		}
	}

	out := make([]ConstantValue, 0, len(items))
	for _, item := range items {
		if item.Kind != yaml.MappingNode {
			return nil, &ConfigError{Section: code, Field: pattern, Line: item.Line, Msg: fmt.Sprintf("%s must be a mapping", KeyConstant)}
		}
		var c ConstantValue
		var hasValue bool
		for i := 0; i+1 < len(item.Content); i += 2 {
			key, val := item.Content[i], resolve(item.Content[i+1])
			switch key.Value {
			case KeyFieldname:
				c.Column = strings.TrimSpace(val.Value)
			case KeyEnumType:
				c.Value = val.Value
				hasValue = true
			default:
				return nil, &ConfigError{Section: code, Field: pattern, Line: key.Line, Msg: fmt.Sprintf("unknown constant key %q", key.Value)}
			}
		}
		if c.Column == "" || !hasValue {
			return nil, &ConfigError{
				Section: code,
				Field:   pattern,
				Line:    item.Line,
				Msg:     fmt.Sprintf("%s needs %s and %s", KeyConstant, KeyFieldname, KeyEnumType),
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// resolve unwraps document and alias nodes.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
	return n
}
