package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/posematch/internal/posedb"
)

// NewInspectCmd creates the 'inspect' command.
func NewInspectCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "inspect <name|dir>",
		Short: "Show the layout of a pose database",
		Long: `Load and build one database and print its schema, tunables and the
pose range of every indexed asset (one per motion variant).`,
		Example: `  posematch inspect locomotion
  posematch inspect ./dbs/synthetic --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

// assetReport describes one index asset.
type assetReport struct {
	Motion    string      `json:"motion"`
	Kind      string      `json:"kind"`
	Mirrored  bool        `json:"mirrored,omitempty"`
	Blend     posedb.Vec3 `json:"blend"`
	FirstPose int         `json:"firstPose"`
	LastPose  int         `json:"lastPose"`
	Looping   bool        `json:"looping,omitempty"`
	Length    float64     `json:"length"`
}

// databaseReport is the output of 'inspect'.
type databaseReport struct {
	Name                   string           `json:"name"`
	Schema                 string           `json:"schema"`
	Cardinality            int              `json:"cardinality"`
	SampleRate             float64          `json:"sampleRate"`
	Offsets                []float64        `json:"offsets,omitempty"`
	Mode                   string           `json:"mode"`
	KNNNeighbors           int              `json:"knnNeighbors,omitempty"`
	BaseCostBias           float32          `json:"baseCostBias"`
	ContinuingPoseCostBias float32          `json:"continuingPoseCostBias"`
	MinCostAddend          float32          `json:"minCostAddend"`
	Poses                  int              `json:"poses"`
	Events                 map[string][]int `json:"events,omitempty"`
	Assets                 []assetReport    `json:"assets"`
}

func runInspect(cmd *cobra.Command, ref string, jsonOutput bool) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := optionalConfig(path)
	if err != nil {
		return err
	}
	_, loaded, err := loadDatabases(cfg, path, []string{ref})
	if err != nil {
		return err
	}

	db := loaded[0].DB
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := posedb.Build(ctx, db); err != nil {
		return fmt.Errorf("failed to build %s: %w", db.Name, err)
	}
	report := inspectDatabase(db)

	out := cmd.OutOrStdout()
	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	printReport(out, report)
	return nil
}

func inspectDatabase(db *posedb.Database) databaseReport {
	idx := db.Index()
	r := databaseReport{
		Name:                   db.Name,
		Schema:                 db.Schema.ID,
		Cardinality:            db.Schema.Cardinality,
		SampleRate:             db.Schema.SampleRate,
		Offsets:                db.Schema.Offsets,
		Mode:                   db.Mode.String(),
		KNNNeighbors:           db.KNNNeighbors,
		BaseCostBias:           db.BaseCostBias,
		ContinuingPoseCostBias: db.ContinuingPoseCostBias,
		MinCostAddend:          idx.MinCostAddend,
		Poses:                  idx.NumPoses(),
		Events:                 idx.Events,
	}
	for _, a := range idx.Assets {
		r.Assets = append(r.Assets, assetReport{
			Motion:    a.Motion.Name,
			Kind:      a.Motion.Kind.String(),
			Mirrored:  a.Mirrored,
			Blend:     a.Blend,
			FirstPose: a.FirstPose,
			LastPose:  a.LastPose(),
			Looping:   a.Looping,
			Length:    a.PlayLength,
		})
	}
	return r
}

func printReport(out io.Writer, r databaseReport) {
	fmt.Fprintf(out, "Database:    %s\n", r.Name)
	fmt.Fprintf(out, "Schema:      %s (%d features at %g Hz)\n", r.Schema, r.Cardinality, r.SampleRate)
	if len(r.Offsets) > 0 {
		fmt.Fprintf(out, "Offsets:     %v\n", r.Offsets)
	}
	fmt.Fprintf(out, "Mode:        %s\n", r.Mode)
	fmt.Fprintf(out, "Biases:      base %g, continuing %g, min addend %g\n",
		r.BaseCostBias, r.ContinuingPoseCostBias, r.MinCostAddend)
	fmt.Fprintf(out, "Poses:       %d\n", r.Poses)

	if len(r.Events) > 0 {
		tags := make([]string, 0, len(r.Events))
		for tag := range r.Events {
			tags = append(tags, fmt.Sprintf("%s (%d)", tag, len(r.Events[tag])))
		}
		sort.Strings(tags)
		fmt.Fprintf(out, "Events:      %s\n", strings.Join(tags, ", "))
	}

	fmt.Fprintf(out, "\nAssets (%d):\n", len(r.Assets))
	for _, a := range r.Assets {
		var flags []string
		if a.Looping {
			flags = append(flags, "looping")
		}
		if a.Mirrored {
			flags = append(flags, "mirrored")
		}
		if a.Kind == posedb.KindBlendSpace.String() {
			flags = append(flags, fmt.Sprintf("blend (%g, %g, %g)", a.Blend.X, a.Blend.Y, a.Blend.Z))
		}
		fmt.Fprintf(out, "  %-20s poses %5d-%-5d %5.2fs  %s\n",
			a.Motion, a.FirstPose, a.LastPose, a.Length, strings.Join(flags, ", "))
	}
}
