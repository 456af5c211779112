// Package dataset turns preprocessed segments into deterministic train, val
// and test streams: seed-reproducible split assignment at the recording
// level, and lazy padded batches with validity masks.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrEmptySplit marks a requested split with zero eligible recordings. It is
// fatal: batching cannot proceed without data.
var ErrEmptySplit = errors.New("dataset: empty split")

// Split names one of the three corpus partitions.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// IsValid reports whether s is a recognised split name.
func (s Split) IsValid() bool {
	return s == SplitTrain || s == SplitVal || s == SplitTest
}

// Ratios holds the corpus fractions per split. They must sum to 1.0; the
// config loader enforces this before assignment runs.
type Ratios struct {
	Train float64
	Val   float64
	Test  float64
}

// Assignment maps recording IDs to splits. Fixed at dataset-build time and
// persisted, so later runs cannot silently shift composition.
type Assignment map[string]Split

// Assign partitions recording IDs deterministically: IDs are sorted, shuffled
// with a generator seeded only by seed, and sliced by the ratios. The same
// IDs and seed always produce the same assignment regardless of input order.
func Assign(recordingIDs []string, ratios Ratios, seed int64) Assignment {
	ids := slices.Clone(recordingIDs)
	slices.Sort(ids)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	nTrain := int(float64(len(ids)) * ratios.Train)
	nVal := int(float64(len(ids)) * ratios.Val)

	out := make(Assignment, len(ids))
	for i, id := range ids {
		switch {
		case i < nTrain:
			out[id] = SplitTrain
		case i < nTrain+nVal:
			out[id] = SplitVal
		default:
			out[id] = SplitTest
		}
	}
	return out
}

// IDs returns the recording IDs assigned to split, sorted for a stable order.
func (a Assignment) IDs(split Split) []string {
	var out []string
	for id, s := range a {
		if s == split {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// splitsFile is the on-disk YAML shape of a persisted assignment.
type splitsFile struct {
	Seed       int64             `yaml:"seed"`
	Recordings map[string]string `yaml:"recordings"`
}

// Save persists the assignment (with the seed that produced it) to path.
func (a Assignment) Save(path string, seed int64) error {
	sf := splitsFile{Seed: seed, Recordings: make(map[string]string, len(a))}
	for id, s := range a {
		sf.Recordings[id] = string(s)
	}
	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("dataset: encode splits: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("dataset: write splits %q: %w", path, err)
	}
	return nil
}

// LoadAssignment reads a persisted assignment. Returns the assignment and the
// seed it was built with.
func LoadAssignment(path string) (Assignment, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("dataset: read splits %q: %w", path, err)
	}
	var sf splitsFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, 0, fmt.Errorf("dataset: decode splits %q: %w", path, err)
	}
	out := make(Assignment, len(sf.Recordings))
	for id, s := range sf.Recordings {
		split := Split(s)
		if !split.IsValid() {
			return nil, 0, fmt.Errorf("dataset: splits %q: unknown split %q for recording %q", path, s, id)
		}
		out[id] = split
	}
	return out, sf.Seed, nil
}
