// Package mock provides a deterministic in-memory extractor.Extractor for
// tests: features are cheap frame statistics, and every call is counted so
// cache idempotence can be asserted.
package mock

import (
	"context"
	"sync/atomic"

	"github.com/taglish/masr/pkg/provider/extractor"
)

// Extractor is a fake feature extractor. The zero value is ready to use.
// Safe for concurrent use.
type Extractor struct {
	// Vers overrides the reported version. Empty means "mock/1".
	Vers string

	// Err, when non-nil, is returned by every Extract call.
	Err error

	calls atomic.Int64
}

var _ extractor.Extractor = (*Extractor)(nil)

// mockHop matches the real extractor's 10 ms hop at 16 kHz.
const mockHop = 160

// Extract emits one bin per hop holding the frame's mean absolute amplitude.
// Deterministic for a given input.
func (e *Extractor) Extract(_ context.Context, samples []float32, _ int) (extractor.Features, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return extractor.Features{}, e.Err
	}

	frames := len(samples) / mockHop
	data := make([]float32, frames)
	for t := range frames {
		var sum float32
		for _, s := range samples[t*mockHop : (t+1)*mockHop] {
			if s < 0 {
				sum -= s
			} else {
				sum += s
			}
		}
		data[t] = sum / mockHop
	}
	return extractor.Features{NumFrames: frames, NumBins: 1, Data: data}, nil
}

// Version returns Vers or "mock/1".
func (e *Extractor) Version() string {
	if e.Vers != "" {
		return e.Vers
	}
	return "mock/1"
}

// Calls reports how many times Extract ran.
func (e *Extractor) Calls() int64 {
	return e.calls.Load()
}
