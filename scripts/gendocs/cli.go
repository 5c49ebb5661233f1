package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/apstab/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// invertedFlags set the named config key to the opposite of their value.
var invertedFlags = map[string]string{
	"no-default-ignores": "default_ignores",
}

// flagKeys lists flags whose config key is not the snake case of the flag.
var flagKeys = map[string]string{
	"state":  "state_path",
	"config": "",
}

// generateCLIDocs writes index.md and one page per command. Nested commands
// are named by their path, e.g. runs-show.md.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	if err := writePage(outDir, "index", cliIndex(root)); err != nil {
		return err
	}

	for _, cmd := range commandTree(root) {
		if err := writePage(outDir, pageName(cmd), commandPage(cmd)); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", cmd.CommandPath(), err)
		}
	}
	return nil
}

func writePage(outDir, name string, w *MarkdownWriter) error {
	path := filepath.Join(outDir, name+".md")
	if err := os.WriteFile(path, w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated %s.md", name)
	return nil
}

func cliIndex(root *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for apstab")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("apstab converts APS patent text files into tables. Every command reads apstab.yaml from the working directory or one of its parents.")

	w.Header(2, "Installation")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/apstab/cmd/apstab@latest")

	w.Header(2, "Typical workflow")
	w.CodeBlock("bash", strings.Join([]string{
		"apstab check -g patent.yaml",
		"apstab convert -g patent.yaml --output-path out data/",
		"apstab runs",
	}, "\n"))

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range commandTree(root) {
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(strings.TrimPrefix(cmd.CommandPath(), "apstab ")), pageName(cmd))
		rows = append(rows, []string{link, cleanDescription(cmd.Short)})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Environment Variables")
	w.Paragraph("Each key of apstab.yaml can also be set as an upper-case variable with the " + InlineCode("APSTAB_") + " prefix.")
	var env [][]string
	for _, f := range getConfigSchema() {
		if strings.HasPrefix(f.Type, "map") {
			continue
		}
		env = append(env, []string{InlineCode("APSTAB_" + strings.ToUpper(f.Name)), f.Description})
	}
	w.Table([]string{"Variable", "Description"}, env)
	w.Paragraph("Flags override environment variables, and environment variables override apstab.yaml.")

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Every input file was converted"},
		{InlineCode("1"), "Invalid settings or grammar, or at least one input file failed"},
	})
	return w
}

// commandTree returns every documented command below root, depth first.
func commandTree(root *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, cmd := range root.Commands() {
		if !cmd.IsAvailableCommand() || cmd.Name() == "help" {
			continue
		}
		out = append(out, cmd)
		out = append(out, commandTree(cmd)...)
	}
	return out
}

func pageName(cmd *cobra.Command) string {
	return strings.ReplaceAll(strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" "), " ", "-")
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	title := strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" ")
	w.Frontmatter(title, cmd.Short)
	w.GeneratedMarker()

	w.Header(1, title)
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	w.Paragraph(desc)

	w.Header(2, "Usage")
	w.CodeBlock("bash", cmd.UseLine())

	if subs := commandTree(cmd); len(subs) > 0 {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range subs {
			rows = append(rows, []string{fmt.Sprintf("[%s](/cli/%s)", InlineCode(sub.Name()), pageName(sub)), cleanDescription(sub.Short)})
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalNonPersistentFlags())
	}
	if cmd.HasAvailableInheritedFlags() {
		w.Header(2, "Global Options")
		writeFlagsTable(w, cmd.InheritedFlags())
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}
	return w
}

// writeFlagsTable lists flags with the apstab.yaml key each one sets.
func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = InlineCode("-" + f.Shorthand)
		}
		def := f.DefValue
		if f.Value.Type() != "bool" && def != "" && def != "[]" {
			def = InlineCode(def)
		} else if def == "[]" {
			def = ""
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, flagConfigKey(f.Name), cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Short", "Default", "Config key", "Description"}, rows)
}

// flagConfigKey mirrors how the config loader maps a changed flag to a key.
func flagConfigKey(name string) string {
	if key, ok := invertedFlags[name]; ok {
		return InlineCode(key) + " (inverted)"
	}
	key, ok := flagKeys[name]
	if !ok {
		key = strings.ReplaceAll(name, "-", "_")
	}
	if key == "" {
		return ""
	}
	return InlineCode(key)
}

// cleanExample strips the indentation shared by all non-blank lines.
func cleanExample(example string) string {
	lines := strings.Split(strings.Trim(example, "\n"), "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
