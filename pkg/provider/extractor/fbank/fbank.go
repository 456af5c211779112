// Package fbank implements the extractor.Extractor interface with log mel
// filterbank features, the standard front-end for self-supervised speech
// encoders and speaker-embedding models.
//
// Framing follows the Kaldi convention: 25 ms windows, 10 ms hop, Hamming
// window, pre-emphasis 0.97, triangular mel filters between 20 Hz and
// min(7600, Nyquist) Hz. Output is a [frames, NumMels] matrix of natural-log
// filterbank energies.
package fbank

import (
	"context"
	"fmt"
	"math"

	"github.com/taglish/masr/pkg/provider/extractor"
)

const (
	windowMs    = 25
	hopMs       = 10
	preEmphasis = 0.97
	lowFreqHz   = 20
	highFreqHz  = 7600

	// logFloor keeps log energies finite on silent frames.
	logFloor = 1e-10
)

// Extractor computes log mel filterbank features. Safe for concurrent use:
// all mutable state is per-call.
type Extractor struct {
	numMels int
}

var _ extractor.Extractor = (*Extractor)(nil)

// New creates a filterbank extractor producing numMels bins per frame.
func New(numMels int) (*Extractor, error) {
	if numMels <= 0 {
		return nil, fmt.Errorf("fbank: numMels %d must be positive", numMels)
	}
	return &Extractor{numMels: numMels}, nil
}

// Version identifies the implementation and every parameter that shapes the
// output. Bump the leading revision when the algorithm changes.
func (e *Extractor) Version() string {
	return fmt.Sprintf("fbank/1:mels=%d:win=%dms:hop=%dms:pre=%.2f", e.numMels, windowMs, hopMs, preEmphasis)
}

// Extract computes the feature matrix. Purely deterministic; the context is
// only consulted for early cancellation between frames.
func (e *Extractor) Extract(ctx context.Context, samples []float32, sampleRate int) (extractor.Features, error) {
	if sampleRate <= 0 {
		return extractor.Features{}, fmt.Errorf("fbank: invalid sample rate %d", sampleRate)
	}
	window := sampleRate * windowMs / 1000
	hop := sampleRate * hopMs / 1000
	if len(samples) < window {
		return extractor.Features{NumBins: e.numMels}, nil
	}

	nfft := nextPow2(window)
	half := nfft/2 + 1
	numFrames := (len(samples)-window)/hop + 1

	hamming := hammingWindow(window)
	high := math.Min(highFreqHz, float64(sampleRate)/2)
	bank := melBank(e.numMels, nfft, sampleRate, lowFreqHz, high)

	out := extractor.Features{
		NumFrames: numFrames,
		NumBins:   e.numMels,
		Data:      make([]float32, numFrames*e.numMels),
	}

	re := make([]float64, nfft)
	im := make([]float64, nfft)
	power := make([]float64, half)

	for t := range numFrames {
		if err := ctx.Err(); err != nil {
			return extractor.Features{}, err
		}
		start := t * hop

		for i := range window {
			s := float64(samples[start+i])
			if start+i > 0 {
				s -= preEmphasis * float64(samples[start+i-1])
			}
			re[i] = s * hamming[i]
		}
		for i := window; i < nfft; i++ {
			re[i] = 0
		}
		clear(im)

		fft(re, im)

		for i := range half {
			power[i] = re[i]*re[i] + im[i]*im[i]
		}

		row := out.Data[t*e.numMels : (t+1)*e.numMels]
		for m, filter := range bank {
			var sum float64
			for _, fw := range filter {
				sum += fw.weight * power[fw.bin]
			}
			row[m] = float32(math.Log(math.Max(sum, logFloor)))
		}
	}
	return out, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
