// Package embedder defines the speaker-embedding collaborator boundary.
//
// An embedder maps a correctly-windowed segment waveform to a fixed-length
// vector in a space where distance tracks speaker identity. The diarization
// stage clusters these vectors; it never looks inside them. Production
// deployments wrap a pretrained x-vector style network; this repository
// ships a lightweight statistics-pooling implementation and a mock.
//
// Implementations must be safe for concurrent use.
package embedder

import "context"

// Provider produces speaker embeddings from segment waveforms.
type Provider interface {
	// Embed returns a vector of exactly Dimensions() values. Identical input
	// must yield identical output.
	Embed(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)

	// Dimensions is the fixed embedding length.
	Dimensions() int
}
