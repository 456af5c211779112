package audio_test

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/taglish/masr/pkg/audio"
)

// buildWAV assembles a minimal RIFF/WAVE container around the given int16 PCM
// samples. channels must be 1 or 2; for stereo the samples are interleaved.
func buildWAV(samples []int16, sampleRate, channels int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 0, 44+dataLen)

	le16 := func(v int) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, uint16(v)); return b }
	le32 := func(v int) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, uint32(v)); return b }

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, le32(36+dataLen)...)
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, le32(16)...)
	buf = append(buf, le16(1)...) // PCM
	buf = append(buf, le16(channels)...)
	buf = append(buf, le32(sampleRate)...)
	buf = append(buf, le32(sampleRate*channels*2)...) // byte rate
	buf = append(buf, le16(channels*2)...)            // block align
	buf = append(buf, le16(16)...)                    // bits per sample

	buf = append(buf, []byte("data")...)
	buf = append(buf, le32(dataLen)...)
	for _, s := range samples {
		buf = append(buf, le16(int(uint16(s)))...)
	}
	return buf
}

// writeWAV writes a WAV file into dir and returns its path.
func writeWAV(t *testing.T, dir, name string, samples []int16, sampleRate, channels int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buildWAV(samples, sampleRate, channels), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadMono(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, "hello.wav", []int16{0, 16384, -16384, 32767}, 16000, 1)

	rec, err := audio.Load(path, audio.LoadOptions{TargetRate: 16000})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.ID != "hello" {
		t.Errorf("ID = %q, want %q", rec.ID, "hello")
	}
	if rec.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", rec.SampleRate)
	}
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768}
	if len(rec.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(rec.Samples), len(want))
	}
	for i := range want {
		if math.Abs(float64(rec.Samples[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, rec.Samples[i], want[i])
		}
	}
}

func TestLoadStereoDownmix(t *testing.T) {
	dir := t.TempDir()
	// Two stereo frames: (L=16384, R=0) and (L=-8192, R=-8192).
	path := writeWAV(t, dir, "st.wav", []int16{16384, 0, -8192, -8192}, 16000, 2)

	rec, err := audio.Load(path, audio.LoadOptions{TargetRate: 16000})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []float32{0.25, -0.25}
	if len(rec.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(rec.Samples), len(want))
	}
	for i := range want {
		if math.Abs(float64(rec.Samples[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: got %f, want %f", i, rec.Samples[i], want[i])
		}
	}
}

func TestLoadSampleRateMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeWAV(t, dir, "hz.wav", make([]int16, 100), 8000, 1)

	_, err := audio.Load(path, audio.LoadOptions{TargetRate: 16000, Resample: false})
	if !errors.Is(err, audio.ErrSampleRateMismatch) {
		t.Fatalf("err = %v, want ErrSampleRateMismatch", err)
	}
}

func TestLoadUnreadable(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
	}{
		{"missing riff", []byte("not a wav file at all, definitely")},
		{"too short", []byte("RIFF")},
		{"truncated data", func() []byte {
			w := buildWAV(make([]int16, 100), 16000, 1)
			return w[:len(w)-50]
		}()},
		{"no data chunk", buildWAV(nil, 16000, 1)[:36]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad_"+tc.name+".wav")
			if err := os.WriteFile(path, tc.data, 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := audio.Load(path, audio.LoadOptions{TargetRate: 16000})
			if !errors.Is(err, audio.ErrUnreadableAudio) {
				t.Errorf("err = %v, want ErrUnreadableAudio", err)
			}
		})
	}

	t.Run("nonexistent file", func(t *testing.T) {
		_, err := audio.Load(filepath.Join(dir, "nope.wav"), audio.LoadOptions{TargetRate: 16000})
		if !errors.Is(err, audio.ErrUnreadableAudio) {
			t.Errorf("err = %v, want ErrUnreadableAudio", err)
		}
	})
}
