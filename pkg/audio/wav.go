package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for the loader. Wrap sites attach the offending path and
// detail; callers match with errors.Is.
var (
	// ErrUnreadableAudio marks a file that cannot be decoded: missing,
	// truncated, not a RIFF/WAVE container, or an unsupported encoding.
	ErrUnreadableAudio = errors.New("audio: unreadable file")

	// ErrSampleRateMismatch marks a file whose sample rate differs from the
	// target while resampling is disabled.
	ErrSampleRateMismatch = errors.New("audio: sample rate mismatch")
)

// LoadOptions controls WAV decoding.
type LoadOptions struct {
	// TargetRate is the canonical sample rate in Hz. Required.
	TargetRate int

	// Resample enables deterministic resampling when the source rate differs
	// from TargetRate. When false a differing rate is an ErrSampleRateMismatch.
	Resample bool
}

// Load decodes the WAV file at path into a canonical mono float32 Recording.
// Stereo input is downmixed by averaging channels. Only 16-bit PCM is
// supported; anything else fails with ErrUnreadableAudio.
func Load(path string, opts LoadOptions) (*Recording, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnreadableAudio, path, err)
	}

	info, err := parseWAV(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnreadableAudio, path, err)
	}

	pcm := raw[info.DataOffset : info.DataOffset+info.DataLen]
	samples := pcm16ToFloat32Mono(pcm, info.Channels)

	if info.SampleRate != opts.TargetRate {
		if !opts.Resample {
			return nil, fmt.Errorf("%w: %q has %d Hz, want %d Hz",
				ErrSampleRateMismatch, path, info.SampleRate, opts.TargetRate)
		}
		samples, err = Resample(samples, info.SampleRate, opts.TargetRate)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: resample: %v", ErrUnreadableAudio, path, err)
		}
	}

	return &Recording{
		ID:         recordingID(path),
		Path:       path,
		SampleRate: opts.TargetRate,
		Samples:    samples,
	}, nil
}

// recordingID derives the stable recording identifier from a source path:
// the base file name without its extension.
func recordingID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// wavInfo holds the format metadata extracted from a RIFF/WAVE header.
type wavInfo struct {
	DataOffset int // byte offset of the first PCM sample
	DataLen    int // byte length of the data chunk
	SampleRate int // samples per second
	Channels   int // 1 = mono, 2 = stereo
}

// parseWAV walks the RIFF chunks in raw and returns the location of the PCM
// data together with the format from the "fmt " sub-chunk. Walking the chunks
// is more robust than assuming a fixed 44-byte header because the fmt chunk
// size varies across encoders.
func parseWAV(raw []byte) (wavInfo, error) {
	if len(raw) < 12 {
		return wavInfo{}, errors.New("too short to be a RIFF file")
	}
	if string(raw[0:4]) != "RIFF" {
		return wavInfo{}, errors.New("missing RIFF header")
	}
	if string(raw[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("missing WAVE identifier")
	}

	var info wavInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(raw) {
				return wavInfo{}, errors.New("malformed fmt chunk")
			}
			fmtData := raw[body:]
			audioFormat := int(binary.LittleEndian.Uint16(fmtData[0:2]))
			info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			bitsPerSample := int(binary.LittleEndian.Uint16(fmtData[14:16]))
			if audioFormat != 1 || bitsPerSample != 16 {
				return wavInfo{}, fmt.Errorf("unsupported encoding: format=%d bits=%d (want 16-bit PCM)",
					audioFormat, bitsPerSample)
			}
			if info.Channels != 1 && info.Channels != 2 {
				return wavInfo{}, fmt.Errorf("unsupported channel count %d", info.Channels)
			}
			foundFmt = true

		case "data":
			if !foundFmt {
				return wavInfo{}, errors.New("data chunk before fmt chunk")
			}
			if body+chunkSize > len(raw) {
				return wavInfo{}, errors.New("truncated data chunk")
			}
			info.DataOffset = body
			info.DataLen = chunkSize
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if the size is odd.
		offset = body + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("missing data chunk")
}

// pcm16ToFloat32Mono converts little-endian int16 PCM to mono float32 in
// [-1, 1]. Stereo input is downmixed by averaging the L and R samples.
func pcm16ToFloat32Mono(pcm []byte, channels int) []float32 {
	total := len(pcm) / 2
	if channels == 2 {
		frames := total / 2
		out := make([]float32, frames)
		for i := range frames {
			l := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
			r := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
			out[i] = (float32(l) + float32(r)) / 2 / 32768
		}
		return out
	}
	out := make([]float32, total)
	for i := range total {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out
}
