package audio

import (
	"fmt"
	"iter"
	"time"
)

// SegmentOptions controls windowing. Length must be strictly greater than
// Overlap; validate with Check before segmenting (the config loader does this
// before any worker is dispatched).
type SegmentOptions struct {
	// Length is the window duration. Every emitted segment carries exactly
	// this many samples, zero-padded for the final short window.
	Length time.Duration

	// Overlap is the shared duration between consecutive windows. The window
	// stride is Length-Overlap.
	Overlap time.Duration

	// MinLength is the shortest usable final window. A trailing remainder
	// below this is dropped instead of padded.
	MinLength time.Duration
}

// Check validates the windowing parameters.
func (o SegmentOptions) Check() error {
	if o.Length <= 0 {
		return fmt.Errorf("segment length %v must be positive", o.Length)
	}
	if o.Overlap < 0 || o.Overlap >= o.Length {
		return fmt.Errorf("segment overlap %v must satisfy 0 <= overlap < length (%v)", o.Overlap, o.Length)
	}
	if o.MinLength < 0 || o.MinLength > o.Length {
		return fmt.Errorf("segment min length %v must be in [0, %v]", o.MinLength, o.Length)
	}
	return nil
}

// Segments lazily cuts the recording into overlapping windows of
// opts.Length, advancing by the stride Length-Overlap.
//
// Final-window policy (deterministic, the only one supported): full windows
// are emitted while they fit; if the last full window does not reach the end
// of the recording, one additional window covering the remaining tail is
// emitted zero-padded to the full length with IsPadded set — unless the tail
// window would be shorter than opts.MinLength, in which case it is dropped.
// A recording shorter than Length yields a single padded window (or nothing
// if below MinLength).
//
// Full windows alias the recording's sample buffer; the padded window owns a
// copy.
func Segments(rec *Recording, opts SegmentOptions) iter.Seq[Segment] {
	segLen := int(opts.Length.Seconds() * float64(rec.SampleRate))
	stride := segLen - int(opts.Overlap.Seconds()*float64(rec.SampleRate))
	minLen := int(opts.MinLength.Seconds() * float64(rec.SampleRate))

	return func(yield func(Segment) bool) {
		n := len(rec.Samples)
		index := 0
		covered := 0 // end offset of the last emitted window

		start := 0
		for ; start+segLen <= n; start += stride {
			seg := Segment{
				RecordingID: rec.ID,
				Index:       index,
				Start:       start,
				End:         start + segLen,
				Samples:     rec.Samples[start : start+segLen],
			}
			if !yield(seg) {
				return
			}
			index++
			covered = start + segLen
		}

		// Tail window: only when samples remain uncovered and the remainder
		// is usable.
		if covered >= n || n-start < minLen {
			return
		}
		padded := make([]float32, segLen)
		copy(padded, rec.Samples[start:n])
		yield(Segment{
			RecordingID: rec.ID,
			Index:       index,
			Start:       start,
			End:         n,
			Samples:     padded,
			IsPadded:    true,
		})
	}
}
