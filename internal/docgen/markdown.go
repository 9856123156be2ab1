package docgen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

// RenderMarkdown writes a markdown reference document from a JSON Schema.
// It walks the $defs, rendering one section per type with a table of fields.
func RenderMarkdown(w io.Writer, s *jsonschema.Schema) error {
	title := s.Title
	if title == "" {
		title = "Configuration Reference"
	}
	if _, err := fmt.Fprintf(w, "# %s\n\n", title); err != nil {
		return err
	}
	if s.Description != "" {
		if _, err := fmt.Fprintf(w, "%s\n\n", s.Description); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "> **Auto-generated**, do not edit. Run `go run ./cmd/genschema` to regenerate.\n\n"); err != nil {
		return err
	}

	// Root type name from $ref, e.g. "#/$defs/File" -> "File".
	rootName := ""
	if s.Ref != "" {
		rootName = refName(s.Ref)
	}

	if s.Definitions == nil {
		return nil
	}

	// Sort definition names, root type first.
	var names []string
	for name := range s.Definitions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == rootName {
			return true
		}
		if names[j] == rootName {
			return false
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		def := s.Definitions[name]
		if def == nil || def.Properties == nil {
			continue
		}
		if err := renderDefinition(w, name, def); err != nil {
			return err
		}
	}
	return nil
}

// renderDefinition renders one $defs entry as an H2 section with a field table.
func renderDefinition(w io.Writer, name string, def *jsonschema.Schema) error {
	if _, err := fmt.Fprintf(w, "## %s\n\n", name); err != nil {
		return err
	}
	if def.Description != "" {
		if _, err := fmt.Fprintf(w, "%s\n\n", def.Description); err != nil {
			return err
		}
	}

	reqSet := make(map[string]bool)
	for _, r := range def.Required {
		reqSet[r] = true
	}

	if _, err := fmt.Fprintf(w, "| Field | Type | Required | Description |\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "|-------|------|----------|-------------|\n"); err != nil {
		return err
	}

	for pair := def.Properties.Oldest(); pair != nil; pair = pair.Next() {
		req := ""
		if reqSet[pair.Key] {
			req = "**yes**"
		}
		if _, err := fmt.Fprintf(w, "| `%s` | %s | %s | %s |\n",
			pair.Key, schemaTypeString(pair.Value), req, cellText(pair.Value.Description)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}

// WriteMarkdown generates a markdown file from a schema using atomic write.
func WriteMarkdown(path string, s *jsonschema.Schema) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".genschema-md-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if err := RenderMarkdown(tmp, s); err != nil {
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

// schemaTypeString returns a human-readable type string for a property.
func schemaTypeString(prop *jsonschema.Schema) string {
	if prop.Ref != "" {
		return refName(prop.Ref)
	}

	switch prop.Type {
	case "array":
		if prop.Items != nil {
			if prop.Items.Ref != "" {
				return "[]" + refName(prop.Items.Ref)
			}
			return "[]" + prop.Items.Type
		}
		return "array"
	case "":
		return "any"
	default:
		return prop.Type
	}
}

// refName extracts the type name from a $ref path like "#/$defs/Daemon".
func refName(ref string) string {
	parts := strings.Split(ref, "/")
	return parts[len(parts)-1]
}

// cellText prepares a description for a markdown table cell: newlines
// collapsed, pipes escaped.
func cellText(desc string) string {
	desc = strings.ReplaceAll(desc, "\n", " ")
	return strings.ReplaceAll(desc, "|", "\\|")
}
