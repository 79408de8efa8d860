package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/config"
	"github.com/khanglvm/posematch/internal/posedb"
)

// NewListCmd creates the 'list' command for listing registered databases.
func NewListCmd() *cobra.Command {
	var jsonOutput bool
	var showStatus bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all registered pose databases",
		Long:    `Display the databases registered in the configuration.`,
		Example: `  posematch list
  posematch ls
  posematch list --status  # load each database and count its motions
  posematch list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, jsonOutput, showStatus)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVarP(&showStatus, "status", "s", false, "Load databases and show motion counts")

	return cmd
}

// listEntry is one row of 'list --json'.
type listEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Mode     string `json:"mode,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Motions  int    `json:"motions,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Error    string `json:"error,omitempty"`
}

func runList(cmd *cobra.Command, jsonOutput, showStatus bool) error {
	out := cmd.OutOrStdout()

	cfg, path, err := loadConfig(cmd)
	if err != nil || len(cfg.Databases) == 0 {
		fmt.Fprintln(out, "No databases configured.")
		fmt.Fprintln(out, "Run 'posematch add <name> <dir>' to register one.")
		return nil
	}

	entries := listEntries(cfg, path, showStatus)
	if jsonOutput {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	printEntries(out, entries, showStatus)
	return nil
}

func listEntries(cfg *config.Config, path string, showStatus bool) []listEntry {
	names := make([]string, 0, len(cfg.Databases))
	for name := range cfg.Databases {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]listEntry, 0, len(names))
	for _, name := range names {
		d := cfg.Databases[name]
		e := listEntry{Name: name, Path: d.Path, Mode: d.Mode, Disabled: d.Disabled}
		if showStatus && !d.Disabled {
			db, err := posedb.Load(config.ResolvePath(path, d.Path))
			if err != nil {
				e.Error = err.Error()
			} else {
				e.Motions = len(db.Motions)
				e.Schema = db.Schema.ID
			}
		}
		entries = append(entries, e)
	}
	return entries
}

func printEntries(out io.Writer, entries []listEntry, showStatus bool) {
	fmt.Fprintf(out, "Registered databases (%d):\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(out, "  %s\n", e.Name)
		fmt.Fprintf(out, "    Path:    %s\n", e.Path)
		if e.Mode != "" {
			fmt.Fprintf(out, "    Mode:    %s\n", e.Mode)
		}
		if e.Disabled {
			fmt.Fprintln(out, "    Status:  disabled")
		} else if showStatus {
			if e.Error != "" {
				fmt.Fprintf(out, "    Status:  ✗ %s\n", e.Error)
			} else {
				fmt.Fprintf(out, "    Status:  ✓ %d motions (schema %s)\n", e.Motions, e.Schema)
			}
		}
		fmt.Fprintln(out)
	}
}
