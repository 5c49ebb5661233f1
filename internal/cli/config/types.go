// Package config provides configuration management for the apstab CLI.
package config

// Config holds all CLI configuration options.
type Config struct {
	// Grammar is the path of the YAML grammar.
	Grammar string `koanf:"grammar"`
	// Inputs are files, directories or glob patterns. Command arguments
	// replace them.
	Inputs  []string `koanf:"inputs"`
	Recurse bool     `koanf:"recurse"`

	OutputType string `koanf:"output_type"`
	OutputPath string `koanf:"output_path"`
	// DSN is the connection string of server sinks. ${VAR} references are
	// expanded from the environment.
	DSN string `koanf:"dsn"`
	// OutputOptions are passed to the sink driver.
	OutputOptions map[string]string `koanf:"output_options"`
	// OutputParams are sink-specific structured settings.
	OutputParams map[string]any `koanf:"output_params"`
	Clean        bool           `koanf:"clean"`
	DryRun       bool           `koanf:"dry_run"`

	Joiner              string `koanf:"joiner"`
	Encoding            string `koanf:"encoding"`
	Continuation        bool   `koanf:"continuation"`
	SkipUnknownSections bool   `koanf:"skip_unknown_sections"`
	Workers             int    `koanf:"workers"`

	IgnoreFile     string `koanf:"ignore_file"`
	DefaultIgnores bool   `koanf:"default_ignores"`

	StatePath string `koanf:"state_path"`
	NoState   bool   `koanf:"no_state"`

	Verbose      bool   `koanf:"verbose"`
	Quiet        bool   `koanf:"quiet"`
	LogFormat    string `koanf:"log_format"`
	OutputFormat string `koanf:"output"`

	// ProjectRoot is the directory relative paths from the config file are
	// resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultOutputType = "csv"
	DefaultOutputPath = "."
	DefaultEncoding   = "latin1"
	DefaultStateFile  = ".apstab/state.db"
	DefaultLogFormat  = "text"
	DefaultOutput     = "auto" // TTY=text, non-TTY=markdown
)

// ConfigFileNames are searched, in order, when no --config is given.
var ConfigFileNames = []string{"apstab.yaml", "apstab.yml"}

func defaults() map[string]any {
	return map[string]any{
		"output_type":     DefaultOutputType,
		"output_path":     DefaultOutputPath,
		"encoding":        DefaultEncoding,
		"default_ignores": true,
		"state_path":      DefaultStateFile,
		"log_format":      DefaultLogFormat,
		"output":          DefaultOutput,
		"workers":         0,
	}
}
