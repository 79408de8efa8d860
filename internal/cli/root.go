/*
Package cli implements the posematch commands.

Every command resolves the configuration file from the --config flag, the
POSEMATCH_CONFIG environment variable, or ~/.posematch.json, in that
order, and writes its output to the command's configured writer.
*/
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/config"
	"github.com/khanglvm/posematch/internal/version"
)

// ConfigEnv overrides the default config path.
const ConfigEnv = "POSEMATCH_CONFIG"

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "posematch",
		Short: "Motion matching pose search engine",
		Long: `posematch selects animation poses by comparing a character's
trajectory against pose databases built from motion clips.

It builds and inspects databases, searches their motion catalog, and
runs the matcher against scripted trajectories to measure selection
quality and per-tick latency.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Config file (default: $"+ConfigEnv+" or ~/.posematch.json)")

	root.AddCommand(NewInitCmd())
	root.AddCommand(NewAddCmd())
	root.AddCommand(NewRemoveCmd())
	root.AddCommand(NewListCmd())
	root.AddCommand(NewGenerateCmd())
	root.AddCommand(NewBuildCmd())
	root.AddCommand(NewInspectCmd())
	root.AddCommand(NewFindCmd())
	root.AddCommand(NewSimulateCmd())
	root.AddCommand(NewBenchmarkCmd())
	root.AddCommand(NewVerifyCmd())
	root.AddCommand(NewTraceCmd())
	root.AddCommand(NewVersionCmd())

	return root
}

// configPath resolves the config file for cmd.
func configPath(cmd *cobra.Command) (string, error) {
	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		return f.Value.String(), nil
	}
	if p := os.Getenv(ConfigEnv); p != "" {
		return p, nil
	}
	return config.GetDefaultConfigPath()
}

// loadConfig reads the config for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// colorGreen returns text with green ANSI color.
func colorGreen(s string) string {
	return "\033[32m" + s + "\033[0m"
}
