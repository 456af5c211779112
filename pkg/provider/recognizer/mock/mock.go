// Package mock provides a fake speech recognizer for tests. It works without
// model files and returns canned transcripts.
package mock

import (
	"context"
	"sync/atomic"

	"github.com/taglish/masr/pkg/provider/recognizer"
)

// Provider is a deterministic recognizer fake. The zero value returns an
// empty transcript; set Text/Lang to control the result or Err to force a
// failure.
type Provider struct {
	Text string
	Lang string
	Err  error

	calls atomic.Int64
}

var _ recognizer.Provider = (*Provider)(nil)

// Transcribe returns the configured transcript regardless of input.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, sampleRate int) (recognizer.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Transcript{}, err
	}
	p.calls.Add(1)
	if p.Err != nil {
		return recognizer.Transcript{}, p.Err
	}
	return recognizer.Transcript{Text: p.Text, Language: p.Lang}, nil
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// Calls reports how many times Transcribe was invoked.
func (p *Provider) Calls() int64 { return p.calls.Load() }
