package grammar

import "fmt"

// ConfigError reports a malformed or self-contradictory grammar.
type ConfigError struct {
	// Section is the section code the error belongs to, if any.
	Section string
	// Field is the field pattern the error belongs to, if any.
	Field string
	// Line is the 1-based line in the grammar file, 0 when unknown.
	Line int
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	where := ""
	switch {
	case e.Section != "" && e.Field != "":
		where = fmt.Sprintf(" %s.%s", e.Section, e.Field)
	case e.Section != "":
		where = " " + e.Section
	}
	if e.Line > 0 {
		where += fmt.Sprintf(" (line %d)", e.Line)
	}
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("invalid grammar%s: %s", where, msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }
