package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/config"
)

// NewRemoveCmd creates the 'remove' command for unregistering databases.
func NewRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a database from the configuration",
		Long:    `Remove a database entry from the configuration. Its files are kept.`,
		Example: `  posematch remove locomotion
  posematch rm locomotion`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd, args[0])
		},
	}

	return cmd
}

func runRemove(cmd *cobra.Command, name string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, exists := cfg.Databases[name]; !exists {
		return fmt.Errorf("database '%s' not found", name)
	}
	delete(cfg.Databases, name)

	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed database '%s'\n", name)
	return nil
}
