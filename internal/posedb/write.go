package posedb

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Write stores db's members and tunables in dir under an exclusive lock.
// Only trajectory schemas can be written.
func Write(dir string, db *Database) error {
	if db.Schema == nil {
		return fmt.Errorf("database %s: no schema", db.Name)
	}
	if err := db.Schema.Validate(); err != nil {
		return err
	}
	if len(db.Schema.Offsets)*featuresPerSample != db.Schema.Cardinality {
		return fmt.Errorf("database %s: schema %s is not a trajectory schema", db.Name, db.Schema.ID)
	}

	card := db.Schema.Cardinality
	var values []float32
	entries := make([]MotionEntry, 0, len(db.Motions))
	for _, m := range db.Motions {
		e := MotionEntry{
			Name:               m.Name,
			Kind:               m.Kind.String(),
			Looping:            m.Looping,
			DisableReselection: m.DisableReselection,
			Length:             m.Length,
		}
		for _, b := range m.BranchIns {
			name := b.Name
			if b.Database != nil {
				name = b.Database.Name
			}
			e.BranchIns = append(e.BranchIns, name)
		}
		for vi, v := range m.Variants {
			ve := VariantEntry{Mirrored: v.Mirrored, Blend: v.Blend, Frames: len(v.Frames)}
			hasAddends := false
			for fi, f := range v.Frames {
				if len(f.Features) != card {
					return fmt.Errorf("motion %s variant %d frame %d: %w", m.Name, vi, fi, ErrDimensionMismatch)
				}
				values = append(values, f.Features...)
				if f.CostAddend != 0 {
					hasAddends = true
				}
				if f.BlockTransition {
					ve.BlockTransitions = append(ve.BlockTransitions, fi)
				}
				for _, tag := range f.Events {
					if ve.Events == nil {
						ve.Events = make(map[string][]int)
					}
					ve.Events[tag] = append(ve.Events[tag], fi)
				}
			}
			if hasAddends {
				ve.CostAddends = make([]float32, len(v.Frames))
				for fi, f := range v.Frames {
					ve.CostAddends[fi] = f.CostAddend
				}
			}
			for tag := range ve.Events {
				sort.Ints(ve.Events[tag])
			}
			e.Variants = append(e.Variants, ve)
		}
		entries = append(entries, e)
	}

	manifest := Manifest{
		Name: db.Name,
		Schema: SchemaManifest{
			ID:         db.Schema.ID,
			SampleRate: db.Schema.SampleRate,
			Offsets:    db.Schema.Offsets,
			Weights:    db.Schema.Weights,
		},
		ContinuingPoseCostBias: db.ContinuingPoseCostBias,
		BaseCostBias:           db.BaseCostBias,
		Mode:                   db.Mode.String(),
		KNNNeighbors:           db.KNNNeighbors,
		NumFrames:              len(values) / card,
		MotionsFile:            defaultMotionsFile,
		FeaturesFile:           defaultFeaturesFile,
		CreatedAt:              time.Now().UTC().Format(time.RFC3339),
	}

	unlock, err := lockDir(dir, true)
	if err != nil {
		return err
	}
	defer unlock()

	mb, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}

	if err := writeMotions(filepath.Join(dir, manifest.MotionsFile), entries); err != nil {
		return err
	}

	vf, err := os.Create(filepath.Join(dir, manifest.FeaturesFile))
	if err != nil {
		return fmt.Errorf("cannot create features file: %w", err)
	}
	if err := binary.Write(vf, binary.LittleEndian, values); err != nil {
		_ = vf.Close()
		return fmt.Errorf("cannot write features: %w", err)
	}
	return vf.Close()
}

func writeMotions(path string, entries []MotionEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create motions file: %w", err)
	}
	bw := bufio.NewWriter(f)
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			_ = f.Close()
			return err
		}
		if _, err := bw.Write(line); err != nil {
			_ = f.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
