package audio

import (
	"math"
	"time"
)

// RMS analysis granularity for silence detection. 25 ms windows with a 10 ms
// hop, the same framing convention the feature extractor uses.
const (
	trimWindowMs = 25
	trimHopMs    = 10
)

// TrimOptions controls silence trimming.
type TrimOptions struct {
	// Threshold is the RMS energy below which a window counts as silent.
	Threshold float64

	// MinSilence is the shortest leading/trailing silent span that gets
	// trimmed. Shorter silent spans at the edges are kept.
	MinSilence time.Duration
}

// TrimSilence removes leading and trailing low-energy spans from the
// recording's waveform in place. A span is trimmed only when its duration
// reaches opts.MinSilence; brief edge silence survives.
//
// When every window of the waveform is below the threshold the recording is
// degraded rather than rejected: Samples is replaced by a single zero-filled
// analysis window and WasFullySilent is set. Callers decide whether to keep
// or drop such recordings.
func TrimSilence(rec *Recording, opts TrimOptions) {
	window := rec.SampleRate * trimWindowMs / 1000
	hop := rec.SampleRate * trimHopMs / 1000
	if window <= 0 || hop <= 0 || len(rec.Samples) == 0 {
		rec.Samples = make([]float32, window)
		rec.WasFullySilent = true
		return
	}

	firstVoiced, lastVoiced := -1, -1
	for start := 0; start < len(rec.Samples); start += hop {
		end := min(start+window, len(rec.Samples))
		if windowRMS(rec.Samples[start:end]) >= opts.Threshold {
			if firstVoiced < 0 {
				firstVoiced = start
			}
			lastVoiced = end
		}
	}

	if firstVoiced < 0 {
		rec.Samples = make([]float32, window)
		rec.WasFullySilent = true
		return
	}

	minSilenceSamples := int(opts.MinSilence.Seconds() * float64(rec.SampleRate))

	lo := 0
	if firstVoiced >= minSilenceSamples {
		lo = firstVoiced
	}
	hi := len(rec.Samples)
	if hi-lastVoiced >= minSilenceSamples {
		hi = lastVoiced
	}
	rec.Samples = rec.Samples[lo:hi]
}

// windowRMS computes the root-mean-square energy of one analysis window.
func windowRMS(w []float32) float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, s := range w {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(w)))
}
