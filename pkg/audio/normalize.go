package audio

import "math"

// NormalizeMode selects the amplitude normalization strategy.
type NormalizeMode string

const (
	// NormalizePeak rescales the waveform to unit peak amplitude.
	NormalizePeak NormalizeMode = "peak"

	// NormalizeRMS rescales the waveform to a fixed RMS target.
	NormalizeRMS NormalizeMode = "rms"

	// NormalizeOff leaves the waveform untouched.
	NormalizeOff NormalizeMode = "off"
)

// IsValid reports whether m is a recognised normalization mode.
func (m NormalizeMode) IsValid() bool {
	switch m {
	case NormalizePeak, NormalizeRMS, NormalizeOff:
		return true
	}
	return false
}

// normalizeFloor bounds the scaling divisor so near-silent input cannot blow
// up to huge gains or divide by zero.
const normalizeFloor = 1e-9

// Normalize rescales samples in place according to mode. rmsTarget is only
// used for NormalizeRMS. Normalizing an already-normalized waveform is a
// no-op within floating-point tolerance.
func Normalize(samples []float32, mode NormalizeMode, rmsTarget float64) {
	if len(samples) == 0 {
		return
	}

	var scale float64
	switch mode {
	case NormalizePeak:
		var peak float64
		for _, s := range samples {
			if a := math.Abs(float64(s)); a > peak {
				peak = a
			}
		}
		scale = 1 / math.Max(peak, normalizeFloor)
	case NormalizeRMS:
		rms := windowRMS(samples)
		scale = rmsTarget / math.Max(rms, normalizeFloor)
	default:
		return
	}

	for i := range samples {
		samples[i] = float32(float64(samples[i]) * scale)
	}
}
