package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and validates
// the result. Unknown fields are rejected so typos fail loudly instead of
// silently falling back to defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and returns a
// joined error listing every failure found. Fatal misconfiguration —
// anything that would dispatch broken work to the preprocessing pool — is
// caught here, before any worker starts.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers %d must be at least 1", cfg.Workers))
	}

	// Data
	d := cfg.Data
	if d.InputDir == "" {
		errs = append(errs, errors.New("data.input_dir must not be empty"))
	}
	if d.CacheDir == "" {
		errs = append(errs, errors.New("data.cache_dir must not be empty"))
	}
	if sum := d.TrainSplit + d.ValSplit + d.TestSplit; math.Abs(sum-1) > 1e-6 {
		errs = append(errs, fmt.Errorf("split ratios sum to %.4f, want 1.0", sum))
	}
	for name, v := range map[string]float64{
		"data.train_split": d.TrainSplit,
		"data.val_split":   d.ValSplit,
		"data.test_split":  d.TestSplit,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s %.4f must be in [0, 1]", name, v))
		}
	}
	if d.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("data.batch_size %d must be at least 1", d.BatchSize))
	}
	if d.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("data.min_duration %.2f must not be negative", d.MinDuration))
	}
	if d.MaxDuration > 0 && d.MaxDuration < d.MinDuration {
		errs = append(errs, fmt.Errorf("data.max_duration %.2f is below data.min_duration %.2f", d.MaxDuration, d.MinDuration))
	}

	// Audio
	a := cfg.Audio
	if a.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", a.SampleRate))
	}
	if a.SilenceThreshold < 0 || a.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.silence_threshold %.3f must be in [0, 1]", a.SilenceThreshold))
	}
	if a.MinSilence < 0 {
		errs = append(errs, fmt.Errorf("audio.min_silence %.3f must not be negative", a.MinSilence))
	}
	if a.Normalize != "" && !a.Normalize.IsValid() {
		errs = append(errs, fmt.Errorf("audio.normalize %q is invalid; valid values: peak, rms, off", a.Normalize))
	}
	if a.RMSTarget <= 0 || a.RMSTarget > 1 {
		errs = append(errs, fmt.Errorf("audio.rms_target %.3f must be in (0, 1]", a.RMSTarget))
	}

	// Segment — L-O <= 0 is the classic way to hang a windowing loop, so it
	// is rejected here rather than at segmentation time.
	if err := cfg.Segment.Options().Check(); err != nil {
		errs = append(errs, err)
	}

	// Features
	if !cfg.Features.Extractor.IsValid() {
		errs = append(errs, fmt.Errorf("features.extractor %q is invalid; valid values: fbank, mock", cfg.Features.Extractor))
	}
	if cfg.Features.NumMels < 1 {
		errs = append(errs, fmt.Errorf("features.num_mels %d must be at least 1", cfg.Features.NumMels))
	}

	// Diarization
	dz := cfg.Diarization
	if dz.MinSpeakers < 1 {
		errs = append(errs, fmt.Errorf("diarization.min_speakers %d must be at least 1", dz.MinSpeakers))
	}
	if dz.MaxSpeakers < dz.MinSpeakers {
		errs = append(errs, fmt.Errorf("diarization.max_speakers %d is below diarization.min_speakers %d", dz.MaxSpeakers, dz.MinSpeakers))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
