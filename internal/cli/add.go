package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/config"
	"github.com/khanglvm/posematch/internal/posedb"
)

// NewAddCmd creates the 'add' command for registering a database directory.
func NewAddCmd() *cobra.Command {
	var (
		mode      string
		knn       int
		noCheck   bool
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "add <name> <dir>",
		Short: "Register a pose database directory",
		Long: `Add a database directory to the configuration under a name.

The directory is loaded once to make sure it holds a readable database,
unless --no-check is given. --mode and --knn override the search mode and
VP-tree neighbour count stored in the database manifest.`,
		Example: `  posematch add locomotion ./dbs/locomotion
  posematch add combat ./dbs/combat --mode vptree --knn 64
  posematch add events ./dbs/events --mode event_only`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := &config.DatabaseConfig{Path: args[1], Mode: mode, KNNNeighbors: knn}
			return runAdd(cmd, args[0], entry, !noCheck, overwrite)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Search mode override (bruteforce, vptree, event_only)")
	cmd.Flags().IntVarP(&knn, "knn", "k", 0, "VP-tree neighbours override")
	cmd.Flags().BoolVar(&noCheck, "no-check", false, "Skip loading the directory")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing entry with the same name")

	return cmd
}

func runAdd(cmd *cobra.Command, name string, entry *config.DatabaseConfig, check, overwrite bool) error {
	out := cmd.OutOrStdout()

	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, exists := cfg.Databases[name]; exists && !overwrite {
		return fmt.Errorf("database '%s' already registered (use --overwrite to replace it)", name)
	}
	if err := config.ValidateDatabase(name, entry); err != nil {
		return err
	}

	if check {
		dir := config.ResolvePath(path, entry.Path)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("'%s' is not a directory", dir)
		}
		db, err := posedb.Load(dir)
		if err != nil {
			return fmt.Errorf("failed to load database: %w", err)
		}
		fmt.Fprintf(out, "  %s: %d motions, schema %s\n", db.Name, len(db.Motions), db.Schema.ID)
	}

	cfg.Databases[name] = entry
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(out, "✓ Added database '%s' to %s\n", colorGreen(name), path)
	return nil
}
