package diarize

import (
	"context"
	"slices"
	"testing"

	"github.com/taglish/masr/pkg/audio"
	"github.com/taglish/masr/pkg/provider/embedder/mock"
)

// segmentsWithLevels builds one segment per amplitude, so the mock embedder
// (which embeds amplitude statistics) puts same-level segments in one cluster.
func segmentsWithLevels(levels []float32) []audio.Segment {
	segs := make([]audio.Segment, len(levels))
	for i, lvl := range levels {
		samples := make([]float32, 1600)
		for j := range samples {
			samples[j] = lvl
		}
		segs[i] = audio.Segment{RecordingID: "r", Index: i, Start: i * 1600, End: (i + 1) * 1600, Samples: samples}
	}
	return segs
}

func TestRunFixedSpeakerCount(t *testing.T) {
	d, err := New(&mock.Provider{}, Options{NumSpeakers: 2, Seed: 42})
	if err != nil {
		t.Fatal(err)
	}

	// Two clearly separated levels, alternating.
	segs := segmentsWithLevels([]float32{0.1, 0.9, 0.1, 0.9, 0.1, 0.9})
	res, err := d.Run(context.Background(), segs, 16000)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NumSpeakers != 2 {
		t.Fatalf("NumSpeakers = %d, want 2", res.NumSpeakers)
	}
	if len(res.Labels) != len(segs) {
		t.Fatalf("got %d labels, want %d", len(res.Labels), len(segs))
	}

	// Same level, same speaker; different level, different speaker.
	for i := 2; i < len(segs); i++ {
		if res.Labels[i] != res.Labels[i-2] {
			t.Errorf("segments %d and %d (same level) got labels %d and %d", i-2, i, res.Labels[i-2], res.Labels[i])
		}
	}
	if res.Labels[0] == res.Labels[1] {
		t.Error("distinct levels landed in the same cluster")
	}
}

func TestRunDeterministic(t *testing.T) {
	segs := segmentsWithLevels([]float32{0.1, 0.5, 0.9, 0.1, 0.5, 0.9, 0.2, 0.8})

	run := func() []int {
		d, err := New(&mock.Provider{}, Options{MinSpeakers: 1, MaxSpeakers: 4, Seed: 7})
		if err != nil {
			t.Fatal(err)
		}
		res, err := d.Run(context.Background(), segs, 16000)
		if err != nil {
			t.Fatal(err)
		}
		return res.Labels
	}
	if a, b := run(), run(); !slices.Equal(a, b) {
		t.Errorf("two runs with the same seed diverged: %v vs %v", a, b)
	}
}

func TestRunSpeakerCountSearch(t *testing.T) {
	d, err := New(&mock.Provider{}, Options{MinSpeakers: 1, MaxSpeakers: 4, Seed: 42})
	if err != nil {
		t.Fatal(err)
	}

	// Two tight level groups: the search should not need more than a couple
	// of clusters to explain them.
	segs := segmentsWithLevels([]float32{0.1, 0.11, 0.1, 0.9, 0.89, 0.9})
	res, err := d.Run(context.Background(), segs, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if res.NumSpeakers < 1 || res.NumSpeakers > 4 {
		t.Errorf("NumSpeakers = %d outside configured bounds", res.NumSpeakers)
	}
	if len(res.Embeddings) != len(segs) {
		t.Errorf("got %d embeddings, want %d", len(res.Embeddings), len(segs))
	}
}

func TestRunNoSegments(t *testing.T) {
	d, err := New(&mock.Provider{}, Options{NumSpeakers: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Run(context.Background(), nil, 16000); err != ErrNoSegments {
		t.Errorf("err = %v, want ErrNoSegments", err)
	}
}

func TestKMeansMoreClustersThanPoints(t *testing.T) {
	vectors := [][]float32{{0, 0}, {1, 1}}
	res := kmeans(vectors, 5, 42)
	if len(res.labels) != 2 {
		t.Fatalf("got %d labels, want 2", len(res.labels))
	}
	for _, l := range res.labels {
		if l < 0 || l >= 2 {
			t.Errorf("label %d out of range", l)
		}
	}
}
