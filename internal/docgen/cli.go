package docgen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RenderCLIMarkdown writes a CLI reference by walking a cobra command tree.
// Hidden commands are skipped. The output format matches config.md style:
// H2 headings per command, synopsis, examples, flags table, subcommands table.
func RenderCLIMarkdown(w io.Writer, root *cobra.Command) error {
	if _, err := fmt.Fprintf(w, "# CLI Reference\n\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "> **Auto-generated**, do not edit. Run `go run ./cmd/genschema` to regenerate.\n\n"); err != nil {
		return err
	}

	// Global (persistent) flags from the root command.
	globals := collectFlags(root.PersistentFlags())
	if len(globals) > 0 {
		if _, err := fmt.Fprintf(w, "## Global Flags\n\n"); err != nil {
			return err
		}
		if err := writeFlagTable(w, globals); err != nil {
			return err
		}
	}

	return walkCommands(w, root)
}

// WriteCLIMarkdown writes the CLI reference to a file using atomic write.
func WriteCLIMarkdown(path string, root *cobra.Command) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gencli-md-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if err := RenderCLIMarkdown(tmp, root); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}

// walkCommands recursively renders each non-hidden command.
func walkCommands(w io.Writer, cmd *cobra.Command) error {
	if err := renderCommand(w, cmd); err != nil {
		return err
	}
	for _, child := range cmd.Commands() {
		if child.Hidden {
			continue
		}
		if err := walkCommands(w, child); err != nil {
			return err
		}
	}
	return nil
}

// renderCommand renders a single command section.
func renderCommand(w io.Writer, cmd *cobra.Command) error {
	if _, err := fmt.Fprintf(w, "## %s\n\n", cmd.CommandPath()); err != nil {
		return err
	}

	// Long if present, else Short.
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	if desc != "" {
		if _, err := fmt.Fprintf(w, "%s\n\n", strings.TrimSpace(desc)); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "```\n%s\n```\n\n", cmd.UseLine()); err != nil {
		return err
	}

	if cmd.Example != "" {
		if _, err := fmt.Fprintf(w, "**Example:**\n\n```\n%s\n```\n\n", strings.TrimSpace(cmd.Example)); err != nil {
			return err
		}
	}

	// Local flags only; inherited flags appear under Global Flags.
	if flags := collectFlags(cmd.LocalNonPersistentFlags()); len(flags) > 0 {
		if err := writeFlagTable(w, flags); err != nil {
			return err
		}
	}

	return renderSubcommandsTable(w, cmd)
}

// flagInfo holds rendered flag metadata.
type flagInfo struct {
	Name    string
	Type    string
	Default string
	Desc    string
}

// collectFlags extracts display info for all non-hidden flags in a set.
func collectFlags(fs *pflag.FlagSet) []flagInfo {
	var flags []flagInfo
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := "`--" + f.Name + "`"
		if f.Shorthand != "" {
			name = "`-" + f.Shorthand + "`, `--" + f.Name + "`"
		}
		defVal := ""
		if !isZeroDefault(f.DefValue, f.Value.Type()) {
			defVal = "`" + f.DefValue + "`"
		}
		flags = append(flags, flagInfo{
			Name:    name,
			Type:    f.Value.Type(),
			Default: defVal,
			Desc:    strings.ReplaceAll(f.Usage, "|", "\\|"),
		})
	})
	return flags
}

// isZeroDefault returns true if the default value is the zero value for its type.
func isZeroDefault(val, typ string) bool {
	switch typ {
	case "bool":
		return val == "false"
	case "int", "int32", "int64", "uint", "uint32", "uint64", "float32", "float64":
		return val == "0"
	case "duration":
		return val == "0s"
	case "stringSlice", "stringArray":
		return val == "[]"
	default:
		return val == ""
	}
}

// writeFlagTable writes the markdown table for a slice of flags.
func writeFlagTable(w io.Writer, flags []flagInfo) error {
	if _, err := fmt.Fprintf(w, "| Flag | Type | Default | Description |\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "|------|------|---------|-------------|\n"); err != nil {
		return err
	}
	for _, f := range flags {
		if _, err := fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			f.Name, f.Type, f.Default, f.Desc); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// renderSubcommandsTable renders a subcommands table if the command has children.
func renderSubcommandsTable(w io.Writer, cmd *cobra.Command) error {
	var children []*cobra.Command
	for _, c := range cmd.Commands() {
		if !c.Hidden {
			children = append(children, c)
		}
	}
	if len(children) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "| Subcommand | Description |\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "|------------|-------------|\n"); err != nil {
		return err
	}
	for _, c := range children {
		anchor := strings.ToLower(strings.ReplaceAll(c.CommandPath(), " ", "-"))
		if _, err := fmt.Fprintf(w, "| [%s](#%s) | %s |\n",
			c.CommandPath(), anchor, c.Short); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
