package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/config"
	"github.com/khanglvm/posematch/internal/posedb"
	"github.com/khanglvm/posematch/internal/sim"
)

// NewGenerateCmd creates the 'generate' command that writes a synthetic
// locomotion database.
func NewGenerateCmd() *cobra.Command {
	var (
		opts     sim.Options
		mode     string
		register bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "generate <dir>",
		Short: "Write a synthetic locomotion database",
		Long: `Generate a deterministic locomotion database (idle, walk, run, turns,
start/stop transitions and a strafe blend space) and write it to a
directory. Useful for trying the matcher and benchmarking without real
animation data.`,
		Example: `  posematch generate ./dbs/synthetic
  posematch generate ./dbs/noisy --noise 0.05 --seed 7 --add
  posematch generate ./dbs/fast --mode vptree --rate 60`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := posedb.ParseMode(mode)
			if err != nil {
				return err
			}
			opts.Mode = m
			return runGenerate(cmd, args[0], opts, register, force)
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "locomotion", "Database name")
	cmd.Flags().Float64VarP(&opts.SampleRate, "rate", "r", 30, "Pose sample rate (Hz)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "bruteforce", "Search mode (bruteforce, vptree, event_only)")
	cmd.Flags().Float64Var(&opts.Noise, "noise", 0, "Feature jitter amplitude")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "Jitter seed")
	cmd.Flags().BoolVar(&register, "add", false, "Register the database in the configuration")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing database")

	return cmd
}

func runGenerate(cmd *cobra.Command, dir string, opts sim.Options, register, force bool) error {
	out := cmd.OutOrStdout()

	if posedb.Exists(dir) && !force {
		return fmt.Errorf("'%s' already holds a database (use --force to overwrite it)", dir)
	}

	db, err := sim.Generate(opts)
	if err != nil {
		return err
	}
	if err := posedb.Write(dir, db); err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}

	frames := 0
	for _, m := range db.Motions {
		for _, v := range m.Variants {
			frames += len(v.Frames)
		}
	}
	fmt.Fprintf(out, "✓ Wrote %s to %s (%d motions, %d poses)\n", db.Name, dir, len(db.Motions), frames)

	if !register {
		return nil
	}
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	cfg.Databases[db.Name] = &config.DatabaseConfig{Path: abs}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(out, "✓ Registered '%s' in %s\n", colorGreen(db.Name), path)
	return nil
}
