package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/build"
	"github.com/khanglvm/posematch/internal/config"
	"github.com/khanglvm/posematch/internal/posedb"
)

// NewVerifyCmd creates the 'verify' command for verifying configuration.
func NewVerifyCmd() *cobra.Command {
	var skipBuild bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify configuration and databases",
		Long: `Verify that the configuration is valid, that every enabled database
loads, and that its search index builds. Branch-in markers that point to
databases outside the configuration are reported.`,
		Example: `  posematch verify
  posematch verify --no-build`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, skipBuild)
		},
	}

	cmd.Flags().BoolVar(&skipBuild, "no-build", false, "Only load databases, do not build indexes")
	return cmd
}

// runVerify validates the configuration and every database it lists.
func runVerify(cmd *cobra.Command, skipBuild bool) error {
	out := cmd.OutOrStdout()

	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	fmt.Fprintf(out, "✓ Config file: %s\n", path)
	fmt.Fprintf(out, "✓ Databases registered: %d\n", len(cfg.Databases))

	names := make([]string, 0, len(cfg.Databases))
	for name := range cfg.Databases {
		names = append(names, name)
	}
	sort.Strings(names)

	lib := posedb.NewLibrary()
	var dbs []*posedb.Database
	failures := 0
	for _, name := range names {
		d := cfg.Databases[name]
		if d.Disabled {
			fmt.Fprintf(out, "- %s: disabled\n", name)
			continue
		}
		dir := config.ResolvePath(path, d.Path)
		db, err := lib.Load(dir)
		if err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", name, err)
			failures++
			continue
		}
		if err := d.Apply(db); err != nil {
			fmt.Fprintf(out, "✗ %s: %v\n", name, err)
			failures++
			continue
		}
		dbs = append(dbs, db)
		fmt.Fprintf(out, "✓ %s: %d motions, schema %s, mode %s\n", name, len(db.Motions), db.Schema.ID, db.Mode)
	}

	if unresolved := lib.Link(); unresolved > 0 {
		fmt.Fprintf(out, "! %d branch-in marker(s) point to databases that are not loaded\n", unresolved)
	}

	if !skipBuild && len(dbs) > 0 {
		var workers int
		if cfg.Settings != nil {
			workers = cfg.Settings.BuildWorkers
		}
		svc := build.NewService(workers)
		defer svc.Close()
		for _, db := range dbs {
			if err := svc.BuildNow(cmd.Context(), db); err != nil {
				fmt.Fprintf(out, "✗ %s: %v\n", db.Name, err)
				failures++
				continue
			}
			fmt.Fprintf(out, "✓ %s: %d poses indexed\n", db.Name, db.Index().NumPoses())
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d database check(s) failed", failures)
	}
	return nil
}
