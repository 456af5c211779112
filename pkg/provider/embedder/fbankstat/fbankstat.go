// Package fbankstat implements embedder.Provider by statistics pooling over
// log mel filterbank features: per-bin mean and standard deviation across the
// segment's frames, concatenated into a 2*numMels vector.
//
// This is the classic pre-neural front half of an x-vector system. It is far
// weaker than a trained speaker encoder but fully deterministic, dependency
// free at inference time, and good enough to separate clearly distinct
// speakers in tests and small corpora.
package fbankstat

import (
	"context"
	"fmt"
	"math"

	"github.com/taglish/masr/pkg/provider/embedder"
	"github.com/taglish/masr/pkg/provider/extractor/fbank"
)

// Provider pools filterbank statistics into speaker embeddings.
type Provider struct {
	ext     *fbank.Extractor
	numMels int
}

var _ embedder.Provider = (*Provider)(nil)

// New creates a statistics-pooling embedder over numMels filterbank bins.
func New(numMels int) (*Provider, error) {
	ext, err := fbank.New(numMels)
	if err != nil {
		return nil, fmt.Errorf("fbankstat: %w", err)
	}
	return &Provider{ext: ext, numMels: numMels}, nil
}

// Dimensions returns 2*numMels (means then standard deviations).
func (p *Provider) Dimensions() int {
	return 2 * p.numMels
}

// Embed extracts filterbank features and pools them. A segment too short to
// produce a single frame yields the zero vector.
func (p *Provider) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error) {
	feats, err := p.ext.Extract(ctx, samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("fbankstat: extract: %w", err)
	}

	out := make([]float32, 2*p.numMels)
	if feats.NumFrames == 0 {
		return out, nil
	}

	n := float64(feats.NumFrames)
	for b := range p.numMels {
		var sum, sumSq float64
		for t := range feats.NumFrames {
			v := float64(feats.At(t, b))
			sum += v
			sumSq += v * v
		}
		mean := sum / n
		variance := math.Max(sumSq/n-mean*mean, 0)
		out[b] = float32(mean)
		out[p.numMels+b] = float32(math.Sqrt(variance))
	}
	return out, nil
}
