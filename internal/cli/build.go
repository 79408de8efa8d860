package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/build"
	"github.com/khanglvm/posematch/internal/posedb"
)

// NewBuildCmd creates the 'build' command that builds database indexes.
func NewBuildCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "build [name|dir]...",
		Short: "Build the search index of pose databases",
		Long: `Load pose databases and build their search indexes in parallel.

Arguments are configured database names or database directories. With no
arguments every enabled configured database is built. Nothing is written
back; the command reports what the matcher would search.`,
		Example: `  posematch build
  posematch build locomotion
  posematch build ./dbs/synthetic --workers 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args, workers)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent builds (default: config buildWorkers)")
	return cmd
}

func runBuild(cmd *cobra.Command, refs []string, workers int) error {
	out := cmd.OutOrStdout()

	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := optionalConfig(path)
	if err != nil {
		return err
	}
	_, loaded, err := loadDatabases(cfg, path, refs)
	if err != nil {
		return err
	}
	if len(loaded) == 0 {
		fmt.Fprintln(out, "No databases to build.")
		return nil
	}

	if workers <= 0 && cfg != nil && cfg.Settings != nil {
		workers = cfg.Settings.BuildWorkers
	}
	svc := build.NewService(workers)
	defer svc.Close()

	dbs := make([]*posedb.Database, len(loaded))
	for i, l := range loaded {
		dbs[i] = l.DB
	}

	start := time.Now()
	if err := svc.BuildAll(cmd.Context(), dbs); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	elapsed := time.Since(start)

	totalPoses := 0
	for _, l := range loaded {
		idx := l.DB.Index()
		totalPoses += idx.NumPoses()
		fmt.Fprintf(out, "✓ %-20s %6d poses  %3d assets  %3d events  mode %s\n",
			l.Name, idx.NumPoses(), len(idx.Assets), len(idx.Events), l.DB.Mode)
	}
	fmt.Fprintf(out, "\nBuilt %d database(s), %d poses in %v\n", len(loaded), totalPoses, elapsed.Round(time.Millisecond))
	return nil
}
