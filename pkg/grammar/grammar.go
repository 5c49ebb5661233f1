// Package grammar models the declarative field mapping that drives APS
// conversion.
//
// A grammar maps four-character section codes to output tables (entities)
// and lists, per section, the field rules that turn field lines into column
// values. Rules are kept as an ordered list because every matching rule is
// applied to a line, in declaration order.
package grammar

import (
	"fmt"
	"sort"
)

// Reserved keys of the grammar file format.
const (
	KeyEntity        = "<entity>"
	KeyPrimaryKey    = "<primary_key>"
	KeyFilenameField = "<filename_field>"
	KeyFields        = "<fields>"
	KeyFieldname     = "<fieldname>"
	KeyJoiner        = "<joiner>"
	KeySplitter      = "<splitter>"
	KeyConstant      = "<constant>"
	KeyEnumType      = "<enum_type>"

	// NewRecordSentinel is the <joiner> value that turns repeated
	// occurrences into sibling rows.
	NewRecordSentinel = "<new_record>"
)

// DefaultJoiner joins repeated values of <fieldname> rules that declare no
// <joiner> of their own.
const DefaultJoiner = "|#|"

// IDColumn is the synthetic identifier column present on every table.
const IDColumn = "id"

// BehaviorKind enumerates how a rule writes its column.
type BehaviorKind int

// Behavior kinds.
const (
	// Direct copies the value, overwriting earlier occurrences.
	Direct BehaviorKind = iota
	// Joined appends repeated occurrences with a delimiter.
	Joined
	// SplitOn joins occurrences between two marker lines; a marker ends the row.
	SplitOn
	// NewRecord finalizes the row when the column repeats.
	NewRecord
	// Constant rules only emit fixed values.
	Constant
)

// String returns the config-facing name of the kind.
func (k BehaviorKind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Joined:
		return "joined"
	case SplitOn:
		return "split_on"
	case NewRecord:
		return "new_record"
	case Constant:
		return "constant"
	default:
		return "unknown"
	}
}

// Behavior is the tagged variant describing a rule's row effect.
type Behavior struct {
	Kind BehaviorKind
	// Delimiter is used by Joined and SplitOn.
	Delimiter string
	// Marker is the split marker of a SplitOn rule.
	Marker *Matcher
}

// ConstantValue is a fixed column value.
type ConstantValue struct {
	Column string
	Value  string
}

// FieldRule maps matching field codes to a column.
type FieldRule struct {
	Matcher  *Matcher
	Column   string
	Behavior Behavior
	// Constants are set every time the rule matches.
	Constants []ConstantValue
}

// Section is one configured APS section.
type Section struct {
	Code          string
	Entity        string
	PrimaryKey    string
	FilenameField string
	// Constants are seeded into every new row of the section.
	Constants []ConstantValue

	rules   []*FieldRule
	markers []*Matcher
}

// IsRoot reports whether the section opens a new patent.
func (s *Section) IsRoot() bool { return s.PrimaryKey != "" }

// Rules returns the section's rules in declaration order.
func (s *Section) Rules() []*FieldRule { return s.rules }

// Match returns every rule whose matcher accepts code, in declaration order.
// The result is empty when no rule applies.
func (s *Section) Match(code string) []*FieldRule {
	var matched []*FieldRule
	for _, r := range s.rules {
		if r.Matcher.Match(code) {
			matched = append(matched, r)
		}
	}
	return matched
}

// IsMarker reports whether code is a split marker of this section.
func (s *Section) IsMarker(code string) bool {
	for _, m := range s.markers {
		if m.Match(code) {
			return true
		}
	}
	return false
}

// Grammar is a validated grammar.
type Grammar struct {
	sections map[string]*Section
	order    []string
	root     *Section
	columns  map[string][]string
	entities []string
}

// SectionFor returns the section configured for code.
func (g *Grammar) SectionFor(code string) (*Section, bool) {
	s, ok := g.sections[code]
	return s, ok
}

// Sections returns all sections in declaration order.
func (g *Grammar) Sections() []*Section {
	out := make([]*Section, 0, len(g.order))
	for _, code := range g.order {
		out = append(out, g.sections[code])
	}
	return out
}

// RulesFor returns the ordered rules of a section code.
func (g *Grammar) RulesFor(code string) []*FieldRule {
	if s, ok := g.sections[code]; ok {
		return s.rules
	}
	return nil
}

// Root returns the patent-root section.
func (g *Grammar) Root() *Section { return g.root }

// RootEntity returns the table name of the root section.
func (g *Grammar) RootEntity() string { return g.root.Entity }

// ParentColumn is the column that carries the patent key on child tables.
func (g *Grammar) ParentColumn() string { return g.root.Entity + "_id" }

// Entities returns table names in first-declared order.
func (g *Grammar) Entities() []string {
	return append([]string(nil), g.entities...)
}

// Columns returns the ordered column list of an entity.
func (g *Grammar) Columns(entity string) []string {
	return append([]string(nil), g.columns[entity]...)
}

// Schema returns every entity with its columns.
func (g *Grammar) Schema() map[string][]string {
	out := make(map[string][]string, len(g.columns))
	for e, cols := range g.columns {
		out[e] = append([]string(nil), cols...)
	}
	return out
}

// buildColumns computes per-entity column order. Sections sharing an entity
// union their columns in first-seen order.
func (g *Grammar) buildColumns() error {
	g.columns = make(map[string][]string)
	seen := make(map[string]map[string]bool)
	parent := g.ParentColumn()

	add := func(entity, col string) {
		if seen[entity][col] {
			return
		}
		seen[entity][col] = true
		g.columns[entity] = append(g.columns[entity], col)
	}

	for _, s := range g.Sections() {
		if _, ok := seen[s.Entity]; !ok {
			seen[s.Entity] = make(map[string]bool)
			g.entities = append(g.entities, s.Entity)
			add(s.Entity, IDColumn)
			if !s.IsRoot() {
				add(s.Entity, parent)
			}
		}

		var cols []string
		if s.FilenameField != "" {
			cols = append(cols, s.FilenameField)
		}
		for _, c := range s.Constants {
			cols = append(cols, c.Column)
		}
		for _, r := range s.rules {
			if r.Column != "" {
				cols = append(cols, r.Column)
			}
			for _, c := range r.Constants {
				cols = append(cols, c.Column)
			}
		}

		for _, col := range cols {
			if col == IDColumn || (!s.IsRoot() && col == parent) {
				return &ConfigError{Section: s.Code, Msg: fmt.Sprintf("column %q is reserved", col)}
			}
			add(s.Entity, col)
		}
	}
	return nil
}

// SortedEntities returns entity names sorted alphabetically.
func (g *Grammar) SortedEntities() []string {
	out := g.Entities()
	sort.Strings(out)
	return out
}
