package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/catalog"
)

// NewFindCmd creates the 'find' command that searches the motion catalog.
func NewFindCmd() *cobra.Command {
	var (
		database   string
		event      string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "find [query...]",
		Short: "Find motions across pose databases",
		Long: `Search the motions of every configured database by name or event tag.

With no query every motion is listed. --event lists the motions carrying
an event tag. --database restricts the search to one database.`,
		Example: `  posematch find walk
  posematch find turn left --database locomotion
  posematch find --event foot_plant`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, strings.Join(args, " "), database, event, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&database, "database", "d", "", "Restrict to one database")
	cmd.Flags().StringVarP(&event, "event", "e", "", "Find motions carrying an event tag")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum results")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func runFind(cmd *cobra.Command, text, database, event string, limit int, jsonOutput bool) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, loaded, err := loadDatabases(cfg, path, nil)
	if err != nil {
		return err
	}

	indexer, err := catalog.NewIndexer()
	if err != nil {
		return err
	}
	defer indexer.Close()

	for _, l := range loaded {
		if err := indexer.IndexDatabase(l.DB); err != nil {
			return fmt.Errorf("failed to index %s: %w", l.Name, err)
		}
	}

	var entries []catalog.Entry
	switch {
	case event != "":
		entries, err = indexer.FindWithEvent(event, limit)
	case text == "":
		entries, err = indexer.All(limit)
	case database != "":
		entries, err = indexer.FindInDatabase(text, database, limit)
	default:
		entries, err = indexer.Find(text, limit)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if entries == nil {
			entries = []catalog.Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No motions found.")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%-16s %-20s %-10s %4d poses", e.Database, e.Motion, e.Kind, e.Poses)
		if e.Looping {
			line += "  looping"
		}
		if e.Events != "" {
			line += "  events: " + e.Events
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
