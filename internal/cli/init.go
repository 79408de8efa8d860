package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/config"
)

// NewInitCmd creates the 'init' command that writes a default configuration.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Long: `Write a configuration file with default matcher settings and no
databases. An existing file is left alone unless --force is given; the
previous version is kept as a .bak file.`,
		Example: `  posematch init
  posematch init --config ./posematch.yaml
  posematch init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			return runInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration")
	return cmd
}

func runInit(cmd *cobra.Command, path string, force bool) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(out, "Config already exists: %s\n", path)
		fmt.Fprintln(out, "Use --force to overwrite it.")
		return nil
	}

	if err := config.Save(config.NewConfig(), path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(out, "✓ Created %s\n", path)
	fmt.Fprintln(out, "Run 'posematch add <name> <dir>' to register a database.")
	return nil
}
