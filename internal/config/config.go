// Package config provides the configuration schema, loader, and validation
// for the MASR preprocessing pipeline.
//
// Every tunable consumed by the pipeline is a named option here; no component
// reads ambient state. The loaded Config is immutable by convention — it is
// passed by pointer to component constructors and never mutated afterwards.
package config

import (
	"time"

	"github.com/taglish/masr/pkg/audio"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ExtractorName selects the feature-extraction implementation.
type ExtractorName string

const (
	// ExtractorFbank is the log mel filterbank front-end.
	ExtractorFbank ExtractorName = "fbank"

	// ExtractorMock is the deterministic test extractor.
	ExtractorMock ExtractorName = "mock"
)

// IsValid reports whether e is a recognised extractor name.
func (e ExtractorName) IsValid() bool {
	return e == ExtractorFbank || e == ExtractorMock
}

// Config is the root configuration, typically loaded from YAML via [Load].
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the optional listen address for the Prometheus metrics
	// and health endpoint (e.g. ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// Workers bounds preprocessing parallelism (one recording per task).
	Workers int `yaml:"workers"`

	Data        DataConfig        `yaml:"data"`
	Audio       AudioConfig       `yaml:"audio"`
	Segment     SegmentConfig     `yaml:"segment"`
	Features    FeaturesConfig    `yaml:"features"`
	Diarization DiarizationConfig `yaml:"diarization"`
	SpeakerDB   SpeakerDBConfig   `yaml:"speakerdb"`
}

// DataConfig locates the corpus and fixes the dataset contract.
type DataConfig struct {
	// InputDir holds the raw WAV corpus.
	InputDir string `yaml:"input_dir"`

	// CacheDir holds the feature cache.
	CacheDir string `yaml:"cache_dir"`

	// SplitsFile persists the split assignment so re-runs cannot silently
	// shift train/val/test composition.
	SplitsFile string `yaml:"splits_file"`

	// TrainSplit, ValSplit and TestSplit are corpus fractions; they must sum
	// to 1.0.
	TrainSplit float64 `yaml:"train_split"`
	ValSplit   float64 `yaml:"val_split"`
	TestSplit  float64 `yaml:"test_split"`

	// Seed drives split assignment and train-batch shuffling. Fixed seed and
	// fixed corpus give identical splits and batch order across runs.
	Seed int64 `yaml:"seed"`

	// BatchSize is the number of segments per batch.
	BatchSize int `yaml:"batch_size"`

	// MinDuration filters out recordings shorter than this (seconds) after
	// trimming.
	MinDuration float64 `yaml:"min_duration"`

	// MaxDuration caps recording length in seconds; longer input is
	// truncated with a warning rather than rejected.
	MaxDuration float64 `yaml:"max_duration"`
}

// AudioConfig controls decoding, trimming and normalization.
type AudioConfig struct {
	// SampleRate is the canonical rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// Resample enables deterministic resampling of off-rate input. When
	// false, off-rate files are skipped with a sample-rate-mismatch reason.
	Resample bool `yaml:"resample"`

	// TrimSilence toggles edge-silence removal.
	TrimSilence bool `yaml:"trim_silence"`

	// SilenceThreshold is the RMS energy below which audio counts as silent.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// MinSilence is the shortest edge-silence span (seconds) that gets
	// trimmed.
	MinSilence float64 `yaml:"min_silence"`

	// Normalize selects the amplitude normalization mode: peak, rms or off.
	Normalize audio.NormalizeMode `yaml:"normalize"`

	// RMSTarget is the target level for rms normalization.
	RMSTarget float64 `yaml:"rms_target"`
}

// SegmentConfig controls windowing. All values are seconds.
type SegmentConfig struct {
	Length    float64 `yaml:"length"`
	Overlap   float64 `yaml:"overlap"`
	MinLength float64 `yaml:"min_length"`
}

// Options converts the seconds-based YAML values into segmenter options.
func (s SegmentConfig) Options() audio.SegmentOptions {
	return audio.SegmentOptions{
		Length:    secs(s.Length),
		Overlap:   secs(s.Overlap),
		MinLength: secs(s.MinLength),
	}
}

// FeaturesConfig selects and parameterises the feature extractor.
type FeaturesConfig struct {
	Extractor ExtractorName `yaml:"extractor"`
	NumMels   int           `yaml:"num_mels"`
}

// DiarizationConfig bounds the speaker-count search for clustering.
type DiarizationConfig struct {
	MinSpeakers int `yaml:"min_speakers"`
	MaxSpeakers int `yaml:"max_speakers"`
}

// SpeakerDBConfig points at the optional pgvector speaker registry.
type SpeakerDBConfig struct {
	// DSN is a PostgreSQL connection string. Empty disables the registry.
	DSN string `yaml:"dsn"`
}

// Default returns the configuration applied before the YAML file is decoded
// over it. Values mirror configs/example.yaml.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Workers:  4,
		Data: DataConfig{
			InputDir:    "data/raw",
			CacheDir:    "data/cache",
			SplitsFile:  "data/splits.yaml",
			TrainSplit:  0.8,
			ValSplit:    0.1,
			TestSplit:   0.1,
			Seed:        42,
			BatchSize:   8,
			MinDuration: 0.5,
			MaxDuration: 30,
		},
		Audio: AudioConfig{
			SampleRate:       16000,
			Resample:         true,
			TrimSilence:      true,
			SilenceThreshold: 0.05,
			MinSilence:       0.2,
			Normalize:        audio.NormalizePeak,
			RMSTarget:        0.1,
		},
		Segment: SegmentConfig{
			Length:    3.0,
			Overlap:   1.5,
			MinLength: 0.5,
		},
		Features: FeaturesConfig{
			Extractor: ExtractorFbank,
			NumMels:   80,
		},
		Diarization: DiarizationConfig{
			MinSpeakers: 1,
			MaxSpeakers: 4,
		},
	}
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
