package posedb

import (
	"math"
	"sort"
)

// PoseMetadata is per-pose data consulted by the search filters.
type PoseMetadata struct {
	AssetIdx        int
	CostAddend      float32
	BlockTransition bool
}

// IndexAsset is one motion variant laid out as a contiguous pose range.
type IndexAsset struct {
	Motion    *Motion
	SourceIdx int
	Mirrored  bool
	Blend     Vec3

	FirstPose int
	NumPoses  int

	Looping            bool
	DisableReselection bool
	PlayLength         float64
}

// LastPose returns the last pose index of the range (inclusive).
func (a *IndexAsset) LastPose() int { return a.FirstPose + a.NumPoses - 1 }

// ContainsPose reports whether pose lies inside the asset range.
func (a *IndexAsset) ContainsPose(pose int) bool {
	return pose >= a.FirstPose && pose < a.FirstPose+a.NumPoses
}

// WrapTime maps an accumulated time into [0, PlayLength].
func (a *IndexAsset) WrapTime(t float64) float64 {
	return wrapOrClamp(t, a.PlayLength, a.Looping)
}

// PoseIndexFromTime converts an asset time to a pose index.
func (a *IndexAsset) PoseIndexFromTime(t, sampleRate float64) int {
	if a.NumPoses <= 0 {
		return InvalidIndex
	}
	local := int(math.Round(a.WrapTime(t) * sampleRate))
	if local < 0 {
		local = 0
	}
	if local >= a.NumPoses {
		local = a.NumPoses - 1
	}
	return a.FirstPose + local
}

// TimeFromPoseIndex converts a pose index of this asset to an asset time.
func (a *IndexAsset) TimeFromPoseIndex(pose int, sampleRate float64) float64 {
	return float64(pose-a.FirstPose) / sampleRate
}

// SearchIndex is the immutable, searchable form of a database.
type SearchIndex struct {
	Cardinality int
	Weights     []float32

	// Values holds NumPoses() rows of Cardinality features.
	Values []float32
	Poses  []PoseMetadata
	Assets []IndexAsset

	// MinCostAddend is the lowest CostAddend of any pose.
	MinCostAddend float32

	// Events maps an event tag to the sorted poses carrying it.
	Events map[string][]int

	Tree *VPTree
}

// NumPoses returns the number of indexed poses.
func (idx *SearchIndex) NumPoses() int { return len(idx.Poses) }

// PoseValues returns the feature row of pose.
func (idx *SearchIndex) PoseValues(pose int) []float32 {
	start := pose * idx.Cardinality
	return idx.Values[start : start+idx.Cardinality]
}

// AssetForPose returns the index asset owning pose, or nil.
func (idx *SearchIndex) AssetForPose(pose int) *IndexAsset {
	if pose < 0 || pose >= len(idx.Poses) {
		return nil
	}
	return &idx.Assets[idx.Poses[pose].AssetIdx]
}

// AssetIndexesFor returns the sorted index asset indexes built from m.
func (idx *SearchIndex) AssetIndexesFor(m *Motion) []int {
	var out []int
	for i := range idx.Assets {
		if idx.Assets[i].Motion == m {
			out = append(out, i)
		}
	}
	return out
}

// HasEvent reports whether pose carries the event tag.
func (idx *SearchIndex) HasEvent(pose int, tag string) bool {
	poses := idx.Events[tag]
	i := sort.SearchInts(poses, pose)
	return i < len(poses) && poses[i] == pose
}
