package convert

import (
	"fmt"

	"github.com/leapstack-labs/apstab/pkg/sink"
)

// Record is one finished row of a table.
type Record struct {
	Table string
	Row   sink.Row
}

// EmitFunc receives the rows of every kept patent, patent by patent. The
// root row of a patent always precedes its child rows.
type EmitFunc func(Record) error

// Stats counts what happened while converting one file.
type Stats struct {
	// Lines is the number of physical lines read.
	Lines int `json:"lines"`
	// Patents counts root-section instances, kept or not.
	Patents int `json:"patents"`
	// Suppressed counts patents dropped by the ignore set.
	Suppressed  int `json:"suppressed"`
	MissingKeys int `json:"missing_keys"`
	// Rows is the number of rows handed off, over all tables.
	Rows int `json:"rows"`
	// SkippedLines counts unrecognized lines and unused continuation lines.
	SkippedLines int `json:"skipped_lines"`
	// IgnoredFields counts field lines no rule consumed.
	IgnoredFields int            `json:"ignored_fields"`
	Tables        map[string]int `json:"tables,omitempty"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Patents += o.Patents
	s.Suppressed += o.Suppressed
	s.MissingKeys += o.MissingKeys
	s.Rows += o.Rows
	s.SkippedLines += o.SkippedLines
	s.IgnoredFields += o.IgnoredFields
	for t, n := range o.Tables {
		if s.Tables == nil {
			s.Tables = make(map[string]int)
		}
		s.Tables[t] += n
	}
}

// Result describes one converted file.
type Result struct {
	File     string
	Stats    Stats
	Warnings []MissingPrimaryKeyWarning
	// Records holds the emitted rows when the file was run through Collect.
	Records []Record
}

// MissingPrimaryKeyWarning records a patent whose root section has no key
// field. The patent is still emitted, without an id.
type MissingPrimaryKeyWarning struct {
	File  string
	Line  int
	Field string
}

func (w MissingPrimaryKeyWarning) Error() string {
	return fmt.Sprintf("%s:%d: patent has no %s field", w.File, w.Line, w.Field)
}
