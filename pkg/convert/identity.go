package convert

import (
	"strconv"

	"github.com/leapstack-labs/apstab/pkg/grammar"
)

// identityState tracks the patent key.
type identityState int

const (
	noPatentOpen identityState = iota
	patentOpenPending
	patentOpenResolved
)

func (s identityState) String() string {
	switch s {
	case noPatentOpen:
		return "no_patent_open"
	case patentOpenPending:
		return "patent_open_pending"
	case patentOpenResolved:
		return "patent_open_resolved"
	default:
		return "unknown"
	}
}

// patentState is everything accumulated for one patent. A fresh one is
// created at each root-section line.
type patentState struct {
	state identityState
	// line is the root-section line number.
	line     int
	key      string
	hasKey   bool
	suppress bool
	// seq counts materialized rows per child table.
	seq     map[string]int
	records []Record
}

func newPatentState(line int) *patentState {
	return &patentState{
		state: patentOpenPending,
		line:  line,
		seq:   make(map[string]int),
	}
}

func (p *patentState) resolve(key string) {
	p.key = key
	p.hasKey = true
	p.state = patentOpenResolved
}

func (p *patentState) resolveMissing() {
	p.state = patentOpenResolved
}

// stem prefixes child ids. Without a key the root line number keeps ids
// unique within the file.
func (p *patentState) stem() string {
	if p.hasKey {
		return p.key
	}
	return "L" + strconv.Itoa(p.line)
}

// materialize assigns identity columns and buffers the row. Counters run
// even while suppressed.
func (p *patentState) materialize(b *rowBuilder, parentColumn string) {
	row := b.vals
	if b.root {
		if p.hasKey {
			row[grammar.IDColumn] = p.key
		}
	} else {
		p.seq[b.table]++
		row[grammar.IDColumn] = p.stem() + "_" + strconv.Itoa(p.seq[b.table])
		if p.hasKey {
			row[parentColumn] = p.key
		}
	}
	p.records = append(p.records, Record{Table: b.table, Row: row})
}
