package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/storage"
)

// NewTraceCmd creates the 'trace' command group for recorded search ticks.
func NewTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Export or prune recorded search traces",
		Long: `Manage the SQLite trace database written by 'posematch simulate --trace'.

Every recorded tick holds the selected pose, its cost, the wanted play
rate and the flags of the update. Candidates are stored when recording
with --candidates.`,
	}

	cmd.PersistentFlags().String("db", "", "Trace database path (default: config or ~/.posematch/trace.db)")
	cmd.AddCommand(newTraceExportCmd())
	cmd.AddCommand(newTraceClearCmd())
	cmd.AddCommand(newTracePruneCmd())
	return cmd
}

func newTraceExportCmd() *cobra.Command {
	var (
		since      time.Duration
		limit      int
		candidates bool
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded ticks as JSON lines",
		Example: `  posematch trace export --since 1h
  posematch trace export --candidates --output ticks.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceExport(cmd, since, limit, candidates, output)
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Export ticks recorded within this duration (0 for all)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 10000, "Maximum ticks")
	cmd.Flags().BoolVar(&candidates, "candidates", false, "Include stored candidates")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func runTraceExport(cmd *cobra.Command, since time.Duration, limit int, withCandidates bool, output string) error {
	store, err := traceStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var from time.Time
	if since > 0 {
		from = time.Now().Add(-since)
	}
	ticks, err := store.GetTicks(from, limit)
	if err != nil {
		return fmt.Errorf("failed to read ticks: %w", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	for i := range ticks {
		if withCandidates {
			if ticks[i].Candidates, err = store.GetCandidates(ticks[i].TickID); err != nil {
				return fmt.Errorf("failed to read candidates: %w", err)
			}
		}
		if err := enc.Encode(ticks[i]); err != nil {
			return err
		}
	}

	if output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d ticks to %s\n", len(ticks), output)
	}
	return nil
}

func newTraceClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete traces without --yes")
			}
			store, err := traceStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Clear(); err != nil {
				return fmt.Errorf("failed to clear traces: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Trace database cleared")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func newTracePruneCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete ticks older than the retention period",
		Example: `  posematch trace prune
  posematch trace prune --older-than 48h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}
			cfg, err := optionalConfig(path)
			if err != nil {
				return err
			}
			keep := olderThan
			if keep <= 0 {
				keep = retention(cfg)
			}
			if keep <= 0 {
				return fmt.Errorf("no retention configured; pass --older-than")
			}

			store, err := openTraceStore(cfg, path, traceDBFlag(cmd))
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Cleanup(keep); err != nil {
				return fmt.Errorf("failed to prune traces: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed ticks older than %v\n", keep)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Retention (default: config retentionDays)")
	return cmd
}

func traceDBFlag(cmd *cobra.Command) string {
	if f := cmd.Flag("db"); f != nil {
		return f.Value.String()
	}
	return ""
}

// traceStore opens the trace database for cmd.
func traceStore(cmd *cobra.Command) (*storage.SQLiteStorage, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := optionalConfig(path)
	if err != nil {
		return nil, err
	}
	return openTraceStore(cfg, path, traceDBFlag(cmd))
}
