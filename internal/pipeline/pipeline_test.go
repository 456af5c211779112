package pipeline_test

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/taglish/masr/internal/config"
	"github.com/taglish/masr/internal/dataset"
	"github.com/taglish/masr/internal/diarize"
	"github.com/taglish/masr/internal/observe"
	"github.com/taglish/masr/internal/pipeline"
	"github.com/taglish/masr/pkg/featurecache"
	embmock "github.com/taglish/masr/pkg/provider/embedder/mock"
	extmock "github.com/taglish/masr/pkg/provider/extractor/mock"
)

// writeWAV writes a 16-bit PCM mono WAV file.
func writeWAV(t *testing.T, path string, samples []float32, rate int) {
	t.Helper()
	data := make([]byte, 44+2*len(samples))
	copy(data[0:4], "RIFF")
	binary.LittleEndian.PutUint32(data[4:8], uint32(36+2*len(samples)))
	copy(data[8:12], "WAVE")
	copy(data[12:16], "fmt ")
	binary.LittleEndian.PutUint32(data[16:20], 16)
	binary.LittleEndian.PutUint16(data[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(data[22:24], 1) // mono
	binary.LittleEndian.PutUint32(data[24:28], uint32(rate))
	binary.LittleEndian.PutUint32(data[28:32], uint32(rate*2))
	binary.LittleEndian.PutUint16(data[32:34], 2)
	binary.LittleEndian.PutUint16(data[34:36], 16)
	copy(data[36:40], "data")
	binary.LittleEndian.PutUint32(data[40:44], uint32(2*len(samples)))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[44+2*i:], uint16(int16(s*32767)))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// tone returns a sine wave of the given duration in seconds.
func tone(seconds float64, rate int, amp float64) []float32 {
	n := int(seconds * float64(rate))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

// testConfig returns a config pointing at fresh temp directories, with
// ratios that keep every split non-empty for six recordings.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workers = 2
	cfg.Data.InputDir = t.TempDir()
	cfg.Data.CacheDir = t.TempDir()
	cfg.Data.SplitsFile = filepath.Join(t.TempDir(), "splits.yaml")
	cfg.Data.TrainSplit = 0.5
	cfg.Data.ValSplit = 0.25
	cfg.Data.TestSplit = 0.25
	cfg.Audio.TrimSilence = false
	cfg.Segment.Length = 1.0
	cfg.Segment.Overlap = 0.5
	cfg.Segment.MinLength = 0.25
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, ext *extmock.Extractor, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	cache, err := featurecache.Open(featurecache.Options{Dir: cfg.Data.CacheDir})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	opts = append(opts, pipeline.WithMetrics(m))

	p, err := pipeline.New(cfg, cache, ext, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func writeCorpus(t *testing.T, dir string, n int, seconds float64, rate int) {
	t.Helper()
	names := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	for i := range n {
		writeWAV(t, filepath.Join(dir, names[i]+".wav"), tone(seconds, rate, 0.5), rate)
	}
}

func TestRun_HappyPath(t *testing.T) {
	cfg := testConfig(t)
	writeCorpus(t, cfg.Data.InputDir, 6, 2.0, cfg.Audio.SampleRate)

	p := newPipeline(t, cfg, &extmock.Extractor{})
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Report.Processed != 6 {
		t.Errorf("processed = %d, want 6", res.Report.Processed)
	}
	if len(res.Report.Skipped) != 0 {
		t.Errorf("skipped = %v, want none", res.Report.Skipped)
	}
	// 2 s at 1 s windows with 0.5 s hop: [0,1) [0.5,1.5) [1,2), no tail.
	if want := 6 * 3; len(res.Items) != want {
		t.Errorf("items = %d, want %d", len(res.Items), want)
	}
	if len(res.Assignment) != 6 {
		t.Errorf("assignment covers %d recordings, want 6", len(res.Assignment))
	}
	for _, split := range []dataset.Split{dataset.SplitTrain, dataset.SplitVal, dataset.SplitTest} {
		if len(res.Assignment.IDs(split)) == 0 {
			t.Errorf("split %q is empty", split)
		}
	}
	for _, it := range res.Items {
		if it.SpeakerLabel != -1 {
			t.Errorf("item %s/%d has label %d without diarization", it.RecordingID, it.SegmentIndex, it.SpeakerLabel)
		}
	}
}

func TestRun_CorruptFileIsolated(t *testing.T) {
	cfg := testConfig(t)
	writeCorpus(t, cfg.Data.InputDir, 6, 2.0, cfg.Audio.SampleRate)
	badPath := filepath.Join(cfg.Data.InputDir, "broken.wav")
	if err := os.WriteFile(badPath, []byte("not a wav at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newPipeline(t, cfg, &extmock.Extractor{})
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Report.Processed != 6 {
		t.Errorf("processed = %d, want 6", res.Report.Processed)
	}
	if len(res.Report.Skipped) != 1 {
		t.Fatalf("skipped = %v, want exactly the corrupt file", res.Report.Skipped)
	}
	got := res.Report.Skipped[0]
	if got.Path != badPath || got.Reason != pipeline.ReasonUnreadable {
		t.Errorf("skipped = %+v, want {%s %s}", got, badPath, pipeline.ReasonUnreadable)
	}
	if _, ok := res.Assignment["broken"]; ok {
		t.Error("corrupt recording leaked into the split assignment")
	}
}

func TestRun_AllCorrupt(t *testing.T) {
	cfg := testConfig(t)
	for _, name := range []string{"a.wav", "b.wav"} {
		if err := os.WriteFile(filepath.Join(cfg.Data.InputDir, name), []byte("junk"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p := newPipeline(t, cfg, &extmock.Extractor{})
	_, err := p.Run(context.Background())
	if !errors.Is(err, dataset.ErrEmptySplit) {
		t.Errorf("Run error = %v, want ErrEmptySplit", err)
	}
}

func TestRun_SampleRateMismatchSkip(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audio.Resample = false
	writeCorpus(t, cfg.Data.InputDir, 6, 2.0, cfg.Audio.SampleRate)
	writeWAV(t, filepath.Join(cfg.Data.InputDir, "offrate.wav"), tone(2.0, 8000, 0.5), 8000)

	p := newPipeline(t, cfg, &extmock.Extractor{})
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Report.Skipped) != 1 || res.Report.Skipped[0].Reason != pipeline.ReasonSampleRateMismatch {
		t.Errorf("skipped = %v, want one %s entry", res.Report.Skipped, pipeline.ReasonSampleRateMismatch)
	}
}

func TestRun_TooShortSkip(t *testing.T) {
	cfg := testConfig(t)
	writeCorpus(t, cfg.Data.InputDir, 6, 2.0, cfg.Audio.SampleRate)
	writeWAV(t, filepath.Join(cfg.Data.InputDir, "stub.wav"), tone(0.2, cfg.Audio.SampleRate, 0.5), cfg.Audio.SampleRate)

	p := newPipeline(t, cfg, &extmock.Extractor{})
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Report.Skipped) != 1 || res.Report.Skipped[0].Reason != pipeline.ReasonTooShort {
		t.Errorf("skipped = %v, want one %s entry", res.Report.Skipped, pipeline.ReasonTooShort)
	}
}

func TestRun_CacheReusedAcrossRuns(t *testing.T) {
	cfg := testConfig(t)
	writeCorpus(t, cfg.Data.InputDir, 6, 2.0, cfg.Audio.SampleRate)

	ext := &extmock.Extractor{}
	p := newPipeline(t, cfg, ext)
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := ext.Calls()
	if first == 0 {
		t.Fatal("extractor never called on first run")
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := ext.Calls(); got != first {
		t.Errorf("extractor calls after second run = %d, want %d (all cache hits)", got, first)
	}
}

func TestRun_SplitsFilePinned(t *testing.T) {
	cfg := testConfig(t)
	writeCorpus(t, cfg.Data.InputDir, 6, 2.0, cfg.Audio.SampleRate)

	p := newPipeline(t, cfg, &extmock.Extractor{})
	res1, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Grow the corpus and rerun: existing recordings must keep their split.
	writeCorpus(t, cfg.Data.InputDir, 8, 2.0, cfg.Audio.SampleRate)
	res2, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	for id, split := range res1.Assignment {
		if res2.Assignment[id] != split {
			t.Errorf("recording %s moved from %s to %s across runs", id, split, res2.Assignment[id])
		}
	}
	if len(res2.Assignment) != 8 {
		t.Errorf("assignment covers %d recordings, want 8", len(res2.Assignment))
	}
}

func TestRun_DiarizationLabels(t *testing.T) {
	cfg := testConfig(t)
	writeCorpus(t, cfg.Data.InputDir, 6, 2.0, cfg.Audio.SampleRate)

	d, err := diarize.New(&embmock.Provider{}, diarize.Options{
		MinSpeakers: cfg.Diarization.MinSpeakers,
		MaxSpeakers: cfg.Diarization.MaxSpeakers,
		Seed:        cfg.Data.Seed,
	})
	if err != nil {
		t.Fatalf("diarize.New: %v", err)
	}

	p := newPipeline(t, cfg, &extmock.Extractor{}, pipeline.WithDiarizer(d))
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, it := range res.Items {
		if it.SpeakerLabel < 0 {
			t.Errorf("item %s/%d unlabelled with diarization enabled", it.RecordingID, it.SegmentIndex)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	writeCorpus(t, cfg.Data.InputDir, 6, 2.0, cfg.Audio.SampleRate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(t, cfg, &extmock.Extractor{})
	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}
