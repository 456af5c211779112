// Package recognizer defines the speech-recognition collaborator boundary.
//
// The training loop proper lives outside this repository; what the pipeline
// owes the recognition side is correctly-shaped padded batches. The Provider
// interface here covers the inference direction — turning a segment waveform
// into text — which the CLI uses for corpus spot checks and which mirrors the
// input contract the fine-tuning harness consumes.
//
// Implementations must be safe for concurrent use unless documented otherwise.
package recognizer

import "context"

// Transcript is the recognition result for one segment.
type Transcript struct {
	// Text is the recognised content. Code-switched audio yields mixed-language
	// text; no language separation is attempted at this layer.
	Text string

	// Language is the BCP-47 tag the recogniser settled on, when reported.
	Language string
}

// Provider transcribes segment waveforms.
type Provider interface {
	// Transcribe recognises a mono float32 waveform at the given rate.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (Transcript, error)

	// Close releases model resources. Safe to call more than once.
	Close() error
}
