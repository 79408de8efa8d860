package posedb

import (
	"context"
	"fmt"
	"sort"
)

// BuildIndex lays out every motion variant of db into a SearchIndex.
// It does not publish the result; callers use SetIndex.
func BuildIndex(ctx context.Context, db *Database) (*SearchIndex, error) {
	if db.Schema == nil {
		return nil, fmt.Errorf("database %s: no schema", db.Name)
	}
	if err := db.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("database %s: %w", db.Name, err)
	}

	card := db.Schema.Cardinality
	idx := &SearchIndex{
		Cardinality: card,
		Weights:     db.Schema.EffectiveWeights(),
		Events:      make(map[string][]int),
	}

	for sourceIdx, m := range db.Motions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for vi, v := range m.Variants {
			if len(v.Frames) == 0 {
				continue
			}
			asset := IndexAsset{
				Motion:             m,
				SourceIdx:          sourceIdx,
				Mirrored:           v.Mirrored,
				Blend:              v.Blend,
				FirstPose:          len(idx.Poses),
				NumPoses:           len(v.Frames),
				Looping:            m.Looping,
				DisableReselection: m.DisableReselection,
				PlayLength:         m.Length,
			}
			assetIdx := len(idx.Assets)

			for fi, f := range v.Frames {
				if len(f.Features) != card {
					return nil, fmt.Errorf("motion %s variant %d frame %d: %d features, want %d: %w",
						m.Name, vi, fi, len(f.Features), card, ErrDimensionMismatch)
				}
				pose := len(idx.Poses)
				idx.Values = append(idx.Values, f.Features...)
				idx.Poses = append(idx.Poses, PoseMetadata{
					AssetIdx:        assetIdx,
					CostAddend:      f.CostAddend,
					BlockTransition: f.BlockTransition,
				})
				for _, tag := range f.Events {
					idx.Events[tag] = append(idx.Events[tag], pose)
				}
			}
			idx.Assets = append(idx.Assets, asset)
		}
	}

	for i, p := range idx.Poses {
		if i == 0 || p.CostAddend < idx.MinCostAddend {
			idx.MinCostAddend = p.CostAddend
		}
	}
	for tag := range idx.Events {
		sort.Ints(idx.Events[tag])
	}

	if db.Mode == ModeVPTree && idx.NumPoses() > 0 {
		idx.Tree = BuildVPTree(idx.Values, card, idx.Weights)
	}

	return idx, nil
}

// Build builds and publishes the index of db.
func Build(ctx context.Context, db *Database) error {
	idx, err := BuildIndex(ctx, db)
	if err != nil {
		return err
	}
	return db.SetIndex(idx)
}
