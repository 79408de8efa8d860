package posedb

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Load reads a database from dir. Branch-in markers keep their database
// names; use a Library to resolve them across databases.
func Load(dir string) (*Database, error) {
	return loadWith(dir, schemaFromManifest)
}

func schemaFromManifest(sm SchemaManifest) (*Schema, error) {
	s := TrajectorySchema(sm.ID, sm.Offsets, sm.SampleRate)
	if len(sm.Weights) > 0 {
		s.Weights = append([]float32(nil), sm.Weights...)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func loadWith(dir string, schemaFor func(SchemaManifest) (*Schema, error)) (*Database, error) {
	unlock, err := lockDir(dir, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	manifestPath := filepath.Join(dir, manifestFile)
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %s: %w", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON %s: %w", manifestPath, err)
	}
	if m.Name == "" {
		m.Name = filepath.Base(dir)
	}
	if m.MotionsFile == "" {
		m.MotionsFile = defaultMotionsFile
	}
	if m.FeaturesFile == "" {
		m.FeaturesFile = defaultFeaturesFile
	}

	schema, err := schemaFor(m.Schema)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", m.Name, err)
	}
	mode, err := ParseMode(m.Mode)
	if err != nil {
		return nil, fmt.Errorf("database %s: %w", m.Name, err)
	}

	entries, err := loadMotions(filepath.Join(dir, m.MotionsFile))
	if err != nil {
		return nil, err
	}

	total := 0
	for _, e := range entries {
		for _, v := range e.Variants {
			total += v.Frames
		}
	}
	if m.NumFrames != 0 && m.NumFrames != total {
		return nil, fmt.Errorf("database %s: manifest lists %d frames, motions file has %d", m.Name, m.NumFrames, total)
	}

	values, err := loadFeatures(filepath.Join(dir, m.FeaturesFile), total, schema.Cardinality)
	if err != nil {
		return nil, err
	}

	db := NewDatabase(m.Name, schema)
	db.ContinuingPoseCostBias = m.ContinuingPoseCostBias
	db.BaseCostBias = m.BaseCostBias
	db.Mode = mode
	db.KNNNeighbors = m.KNNNeighbors

	offset := 0
	for _, e := range entries {
		motion, err := motionFromEntry(e, values, &offset, schema.Cardinality)
		if err != nil {
			return nil, fmt.Errorf("database %s: %w", m.Name, err)
		}
		if err := db.Add(motion); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func motionFromEntry(e MotionEntry, values []float32, offset *int, card int) (*Motion, error) {
	kind, err := ParseMotionKind(e.Kind)
	if err != nil {
		return nil, fmt.Errorf("motion %s: %w", e.Name, err)
	}
	m := &Motion{
		Name:               e.Name,
		Kind:               kind,
		Looping:            e.Looping,
		DisableReselection: e.DisableReselection,
		Length:             e.Length,
	}
	for _, name := range e.BranchIns {
		m.BranchIns = append(m.BranchIns, BranchIn{Name: name})
	}

	for vi, ve := range e.Variants {
		if len(ve.CostAddends) != 0 && len(ve.CostAddends) != ve.Frames {
			return nil, fmt.Errorf("motion %s variant %d: %d cost addends for %d frames", e.Name, vi, len(ve.CostAddends), ve.Frames)
		}
		v := Variant{Mirrored: ve.Mirrored, Blend: ve.Blend, Frames: make([]Frame, ve.Frames)}
		for fi := range v.Frames {
			start := (*offset + fi) * card
			v.Frames[fi].Features = values[start : start+card : start+card]
			if len(ve.CostAddends) != 0 {
				v.Frames[fi].CostAddend = ve.CostAddends[fi]
			}
		}
		for _, fi := range ve.BlockTransitions {
			if fi < 0 || fi >= ve.Frames {
				return nil, fmt.Errorf("motion %s variant %d: block transition frame %d out of range", e.Name, vi, fi)
			}
			v.Frames[fi].BlockTransition = true
		}
		for tag, frames := range ve.Events {
			for _, fi := range frames {
				if fi < 0 || fi >= ve.Frames {
					return nil, fmt.Errorf("motion %s variant %d: event %s frame %d out of range", e.Name, vi, tag, fi)
				}
				v.Frames[fi].Events = append(v.Frames[fi].Events, tag)
			}
		}
		*offset += ve.Frames
		m.Variants = append(m.Variants, v)
	}
	return m, nil
}

func loadMotions(path string) ([]MotionEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open motions file %s: %w", path, err)
	}
	defer f.Close()

	var out []MotionEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e MotionEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("invalid motions JSONL %s: %w", path, err)
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read motions file %s: %w", path, err)
	}
	return out, nil
}

func loadFeatures(path string, nFrames, dim int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open features file %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat features file %s: %w", path, err)
	}
	expected := int64(nFrames * dim * 4)
	if st.Size() != expected {
		return nil, fmt.Errorf("features file size mismatch: got %d want %d (frames=%d dim=%d): %w",
			st.Size(), expected, nFrames, dim, ErrDimensionMismatch)
	}

	out := make([]float32, nFrames*dim)
	if err := binary.Read(io.LimitReader(f, expected), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("cannot read features from %s: %w", path, err)
	}
	return out, nil
}
