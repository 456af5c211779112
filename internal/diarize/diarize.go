// Package diarize attributes audio segments to speakers by clustering
// segment embeddings.
//
// Each segment is embedded with the configured embedder.Provider, the
// embeddings are clustered with seeded k-means, and when the speaker count is
// unknown the count in [MinSpeakers, MaxSpeakers] with the best silhouette-
// free elbow proxy (lowest penalised inertia) wins. Everything is
// deterministic for a fixed seed.
package diarize

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/taglish/masr/pkg/audio"
	"github.com/taglish/masr/pkg/provider/embedder"
)

// ErrNoSegments marks a diarization request without any usable segments.
var ErrNoSegments = errors.New("diarize: no segments")

// Options bounds the speaker-count search.
type Options struct {
	// MinSpeakers and MaxSpeakers delimit the candidate counts when
	// NumSpeakers is unset.
	MinSpeakers int
	MaxSpeakers int

	// NumSpeakers pins the speaker count; 0 means search the range above.
	NumSpeakers int

	// Seed fixes centroid initialisation.
	Seed int64
}

// Result is the outcome for one recording.
type Result struct {
	// Labels holds one speaker index per input segment, in segment order.
	// Indices are dense starting at 0 within this recording; they carry no
	// cross-recording identity (use the speaker registry for that).
	Labels []int

	// NumSpeakers is the chosen speaker count.
	NumSpeakers int

	// Score is the negated clustering inertia: higher is tighter. Only
	// comparable between runs over the same recording.
	Score float64

	// Embeddings are the per-segment vectors, aligned with Labels. Kept so
	// callers can register or look up speakers without re-embedding.
	Embeddings [][]float32
}

// Diarizer clusters segment embeddings into speakers.
type Diarizer struct {
	emb  embedder.Provider
	opts Options
}

// New creates a Diarizer. The options are validated by the config loader;
// New only guards against nil collaborators.
func New(emb embedder.Provider, opts Options) (*Diarizer, error) {
	if emb == nil {
		return nil, errors.New("diarize: embedder must not be nil")
	}
	return &Diarizer{emb: emb, opts: opts}, nil
}

// Run embeds the segments and clusters them. Segments come from the standard
// segmenter, so windows are already correctly sized and overlapped.
func (d *Diarizer) Run(ctx context.Context, segments []audio.Segment, sampleRate int) (*Result, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	vectors := make([][]float32, len(segments))
	for i, seg := range segments {
		vec, err := d.emb.Embed(ctx, seg.Samples, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("diarize: embed segment %d: %w", seg.Index, err)
		}
		vectors[i] = vec
	}

	if n := d.opts.NumSpeakers; n > 0 {
		res := kmeans(vectors, n, d.opts.Seed)
		return &Result{
			Labels:      res.labels,
			NumSpeakers: n,
			Score:       -res.inertia,
			Embeddings:  vectors,
		}, nil
	}

	var best kmeansResult
	bestK := d.opts.MinSpeakers
	bestPenalised := math.Inf(1)
	for k := d.opts.MinSpeakers; k <= d.opts.MaxSpeakers; k++ {
		res := kmeans(vectors, k, d.opts.Seed)
		// Penalise extra clusters so the search doesn't always pick the
		// maximum (raw inertia is monotone in k).
		penalised := res.inertia * (1 + 0.15*float64(k-d.opts.MinSpeakers))
		if penalised < bestPenalised {
			best, bestK, bestPenalised = res, k, penalised
		}
	}

	return &Result{
		Labels:      best.labels,
		NumSpeakers: bestK,
		Score:       -best.inertia,
		Embeddings:  vectors,
	}, nil
}
