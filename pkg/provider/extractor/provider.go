// Package extractor defines the feature-extraction collaborator boundary of
// the preprocessing pipeline.
//
// An Extractor turns a segment waveform into the numerical representation the
// downstream acoustic model consumes. The pipeline never inspects feature
// contents; it only moves them between the extractor and the feature cache.
// The Version tag is part of the cache key contract: any change to extraction
// parameters must change the version so stale cache entries are recomputed
// instead of silently reused.
//
// Implementations must be safe for concurrent use — the preprocessing worker
// pool calls Extract from multiple goroutines.
package extractor

import "context"

// Features is one extracted feature matrix, stored row-major: frame t, bin b
// lives at Data[t*NumBins+b].
type Features struct {
	NumFrames int
	NumBins   int
	Data      []float32
}

// At returns the value for frame t, bin b. No bounds checking beyond the
// slice's own.
func (f Features) At(t, b int) float32 {
	return f.Data[t*f.NumBins+b]
}

// Extractor computes features from a mono float32 waveform.
type Extractor interface {
	// Extract computes the feature matrix for samples at the given rate.
	// The result must depend only on the input: identical samples yield
	// bit-identical features.
	Extract(ctx context.Context, samples []float32, sampleRate int) (Features, error)

	// Version identifies the extractor implementation and its parameters.
	// Cached features carrying a different version are recomputed.
	Version() string
}
