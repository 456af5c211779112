// Package mock provides a deterministic embedder.Provider for tests.
package mock

import (
	"context"

	"github.com/taglish/masr/pkg/provider/embedder"
)

// Provider is a fake embedder. Embeddings are simple amplitude statistics,
// so two waveforms with clearly different levels land far apart — enough for
// clustering tests to form the expected groups.
type Provider struct {
	// Dims is the embedding length. Zero means 4.
	Dims int

	// Err, when non-nil, is returned by every Embed call.
	Err error
}

var _ embedder.Provider = (*Provider)(nil)

// Dimensions returns the configured embedding length.
func (p *Provider) Dimensions() int {
	if p.Dims <= 0 {
		return 4
	}
	return p.Dims
}

// Embed fills the vector with repeated mean-absolute-amplitude and peak
// statistics of the input.
func (p *Provider) Embed(_ context.Context, samples []float32, _ int) ([]float32, error) {
	if p.Err != nil {
		return nil, p.Err
	}

	var sum, peak float32
	for _, s := range samples {
		a := s
		if a < 0 {
			a = -a
		}
		sum += a
		if a > peak {
			peak = a
		}
	}
	var mean float32
	if len(samples) > 0 {
		mean = sum / float32(len(samples))
	}

	out := make([]float32, p.Dimensions())
	for i := range out {
		if i%2 == 0 {
			out[i] = mean
		} else {
			out[i] = peak
		}
	}
	return out, nil
}
