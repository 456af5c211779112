// Package audio implements the waveform side of the MASR preprocessing
// pipeline: WAV decoding to a canonical mono float32 representation,
// deterministic resampling, energy-based silence trimming, amplitude
// normalization, and overlapped segmentation.
//
// All stages operate on immutable inputs and return new values; the only
// shared state in the pipeline lives in the feature cache.
package audio

import (
	"time"
)

// Recording is a decoded audio file in canonical form: mono float32 samples
// in [-1, 1] at the pipeline's target sample rate.
type Recording struct {
	// ID is a stable identifier derived from the source path (the file name
	// without extension). It keys cache entries and split assignment.
	ID string

	// Path is the source file the recording was decoded from.
	Path string

	// SampleRate in Hz. Always equals the configured target rate after Load.
	SampleRate int

	// Samples is the mono waveform. Owned by the recording until segmentation.
	Samples []float32

	// WasFullySilent is set by TrimSilence when the entire waveform stayed
	// below the silence threshold and the degraded minimal-output policy
	// applied. Downstream consumers may want to drop or specially tag such
	// recordings, but the pipeline itself keeps processing them.
	WasFullySilent bool
}

// Duration returns the recording length as wall-clock time.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(r.Samples)) / float64(r.SampleRate) * float64(time.Second))
}

// Segment is a fixed-length window cut from a recording. Consecutive segments
// overlap by the configured overlap duration. Samples may share backing memory
// with the parent recording for full windows; padded final windows own a copy.
type Segment struct {
	// RecordingID references the parent recording.
	RecordingID string

	// Index is the zero-based position of this segment within the recording.
	// recordingID/index together form the feature-cache key.
	Index int

	// Start and End are sample offsets into the parent recording. End is
	// exclusive. End-Start equals the configured segment length for full
	// windows and is shorter for the final padded window.
	Start int
	End   int

	// Samples holds exactly the configured segment length. For the final
	// window of a recording the tail beyond End-Start is zero padding.
	Samples []float32

	// IsPadded reports whether Samples carries zero padding after the
	// End-Start real samples.
	IsPadded bool
}

// Duration returns the real (unpadded) duration of the segment.
func (s *Segment) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(s.End-s.Start) / float64(sampleRate) * float64(time.Second))
}
