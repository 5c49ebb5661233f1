package convert

import (
	"github.com/leapstack-labs/apstab/pkg/grammar"
	"github.com/leapstack-labs/apstab/pkg/sink"
)

// rowBuilder is the row under construction for the open section.
type rowBuilder struct {
	table string
	root  bool
	vals  sink.Row
	// fired marks columns written by a field line in this row.
	fired map[string]bool
	// touched is set once any rule applied. Seeded values do not count.
	touched bool
}

func newRowBuilder(sec *grammar.Section, filename string) *rowBuilder {
	b := &rowBuilder{
		table: sec.Entity,
		root:  sec.IsRoot(),
		vals:  make(sink.Row),
		fired: make(map[string]bool),
	}
	if sec.FilenameField != "" {
		b.vals[sec.FilenameField] = filename
	}
	for _, c := range sec.Constants {
		b.vals[c.Column] = c.Value
	}
	return b
}

// repeats reports whether applying rule must first finalize the row.
func (b *rowBuilder) repeats(rule *grammar.FieldRule) bool {
	return rule.Behavior.Kind == grammar.NewRecord && b.fired[rule.Column]
}

func (b *rowBuilder) apply(rule *grammar.FieldRule, value string) {
	col := rule.Column
	switch rule.Behavior.Kind {
	case grammar.Direct, grammar.NewRecord:
		b.vals[col] = value
	case grammar.Joined, grammar.SplitOn:
		if b.fired[col] {
			b.vals[col] += rule.Behavior.Delimiter + value
		} else {
			b.vals[col] = value
		}
	case grammar.Constant:
	}
	for _, c := range rule.Constants {
		b.vals[c.Column] = c.Value
	}
	if col != "" {
		b.fired[col] = true
	}
	b.touched = true
}

// extend appends a continuation line to col.
func (b *rowBuilder) extend(col, value string) {
	if b.vals[col] == "" {
		b.vals[col] = value
		return
	}
	b.vals[col] += " " + value
}
