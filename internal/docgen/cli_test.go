package docgen

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// testTree builds a synthetic command tree for testing.
func testTree() *cobra.Command {
	root := &cobra.Command{
		Use:   "myapp",
		Short: "Test app",
	}
	root.PersistentFlags().StringP("dir", "d", "", "state directory")

	spawn := &cobra.Command{
		Use:   "launch <cmd>",
		Short: "Launch a process",
		Long:  "Launch a process in the background.\n\nThe process survives terminal exit.",
		Example: `  myapp launch -- sleep 30
  myapp launch --log out.log -- server`,
	}
	spawn.Flags().String("log", "", "redirect output to file")
	spawn.Flags().Int("retries", 3, "spawn attempts before giving up")

	hidden := &cobra.Command{
		Use:    "gen-doc",
		Short:  "Internal doc generator",
		Hidden: true,
	}

	probe := &cobra.Command{
		Use:   "probe",
		Short: "Check process liveness",
	}

	root.AddCommand(spawn, hidden, probe)
	return root
}

func renderTestTree(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := RenderCLIMarkdown(&buf, testTree()); err != nil {
		t.Fatalf("RenderCLIMarkdown: %v", err)
	}
	return buf.String()
}

func TestRenderCLIMarkdownBasicTree(t *testing.T) {
	md := renderTestTree(t)

	if !strings.Contains(md, "# CLI Reference") {
		t.Error("missing CLI Reference header")
	}
	for _, heading := range []string{"## myapp", "## myapp launch", "## myapp probe"} {
		if !strings.Contains(md, heading) {
			t.Errorf("missing heading %q", heading)
		}
	}
	if !strings.Contains(md, "myapp launch <cmd>") {
		t.Error("missing launch synopsis")
	}
	for _, flag := range []string{"`--log`", "`--retries`"} {
		if !strings.Contains(md, flag) {
			t.Errorf("missing flag %s", flag)
		}
	}
}

func TestRenderCLIMarkdownHiddenCommandSkipped(t *testing.T) {
	if strings.Contains(renderTestTree(t), "gen-doc") {
		t.Error("hidden command should not appear in output")
	}
}

func TestRenderCLIMarkdownHiddenFlagSkipped(t *testing.T) {
	root := &cobra.Command{Use: "app", Short: "test"}
	root.Flags().String("visible", "", "shown flag")
	root.Flags().String("secret", "", "hidden flag")
	root.Flags().MarkHidden("secret") //nolint:errcheck

	var buf bytes.Buffer
	if err := RenderCLIMarkdown(&buf, root); err != nil {
		t.Fatalf("RenderCLIMarkdown: %v", err)
	}

	md := buf.String()
	if !strings.Contains(md, "visible") {
		t.Error("visible flag missing")
	}
	if strings.Contains(md, "secret") {
		t.Error("hidden flag should not appear")
	}
}

func TestRenderCLIMarkdownGlobalFlags(t *testing.T) {
	md := renderTestTree(t)

	if !strings.Contains(md, "## Global Flags") {
		t.Error("missing Global Flags section")
	}
	if !strings.Contains(md, "`-d`, `--dir`") {
		t.Error("persistent flag not rendered with shorthand")
	}

	// Inherited flags stay out of a child's local table.
	launchIdx := strings.Index(md, "## myapp launch")
	probeIdx := strings.Index(md, "## myapp probe")
	if launchIdx < 0 || probeIdx < 0 {
		t.Fatal("missing expected sections")
	}
	if strings.Contains(md[launchIdx:probeIdx], "--dir") {
		t.Error("inherited flag --dir should not appear in launch's flags table")
	}
}

func TestRenderCLIMarkdownSubcommandsTable(t *testing.T) {
	md := renderTestTree(t)

	if !strings.Contains(md, "| Subcommand | Description |") {
		t.Error("missing subcommands table")
	}
	if !strings.Contains(md, "#myapp-launch") {
		t.Error("missing anchor link for launch")
	}
}

func TestRenderCLIMarkdownZeroDefaultOmitted(t *testing.T) {
	root := &cobra.Command{Use: "app", Short: "test"}
	root.Flags().Bool("verbose", false, "verbose output")
	root.Flags().Int("count", 0, "number of items")
	root.Flags().String("format", "json", "output format")

	var buf bytes.Buffer
	if err := RenderCLIMarkdown(&buf, root); err != nil {
		t.Fatalf("RenderCLIMarkdown: %v", err)
	}

	md := buf.String()
	for _, line := range strings.Split(md, "\n") {
		if strings.Contains(line, "--verbose") && strings.Contains(line, "`false`") {
			t.Error("bool zero default 'false' should be omitted")
		}
		if strings.Contains(line, "--count") && strings.Contains(line, "`0`") {
			t.Error("int zero default '0' should be omitted")
		}
	}
	if !strings.Contains(md, "`json`") {
		t.Error("non-zero default 'json' should appear")
	}
}
