package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from srcRate to dstRate. The conversion uses
// a fixed high-quality polyphase resampler with no randomized stages, so
// identical input always produces identical output.
func Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate == dstRate {
		return samples, nil
	}
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("invalid rates: %d -> %d", srcRate, dstRate)
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}

	processed, err := rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	out := make([]float32, len(processed))
	for i, s := range processed {
		out[i] = float32(s)
	}
	return out, nil
}
