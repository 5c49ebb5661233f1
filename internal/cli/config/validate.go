package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/apstab/internal/cli/output"
	"github.com/leapstack-labs/apstab/pkg/aps"
	"github.com/leapstack-labs/apstab/pkg/sink"
)

// Validate checks settings every command relies on.
func (c *Config) Validate() error {
	if c.Verbose && c.Quiet {
		return errors.New("verbose and quiet are mutually exclusive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: expected text or json", c.LogFormat)
	}
	if !output.IsValidMode(c.OutputFormat) {
		return fmt.Errorf("invalid output %q: expected one of %s", c.OutputFormat, strings.Join(output.Modes, ", "))
	}
	return nil
}

// ValidateConvert checks the settings of a conversion.
func (c *Config) ValidateConvert() error {
	if err := c.ValidateGrammar(); err != nil {
		return err
	}
	if !c.DryRun && !sink.IsRegistered(c.OutputType) {
		return &sink.UnknownSinkError{Type: c.OutputType, Available: sink.List()}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d (0 uses every CPU)", c.Workers)
	}
	if _, err := aps.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	return nil
}

// ValidateGrammar checks that a grammar is configured.
func (c *Config) ValidateGrammar() error {
	if c.Grammar == "" {
		return errors.New("grammar is required\nHint: set grammar in apstab.yaml or pass --grammar")
	}
	return nil
}
