// Package whisper implements recognizer.Provider with the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/taglish/masr/pkg/provider/recognizer"
)

// modelSampleRate is the only rate whisper.cpp accepts.
const modelSampleRate = 16000

// Provider runs whisper.cpp inference. The model is loaded once and shared;
// each Transcribe call creates its own context, so concurrent calls are safe.
type Provider struct {
	model    whisperlib.Model
	language string
}

var _ recognizer.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithLanguage sets the transcription language code (e.g. "en", "tl").
// Defaults to "auto", which lets the model detect per segment — the right
// setting for code-switched audio.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New loads the whisper.cpp model at modelPath. Call Close when done.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &Provider{model: model, language: "auto"}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the model.
func (p *Provider) Close() error {
	if p.model != nil {
		err := p.model.Close()
		p.model = nil
		return err
	}
	return nil
}

// Transcribe runs inference over the waveform. sampleRate must be 16000;
// resample upstream rather than here so the result stays deterministic with
// the rest of the pipeline.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, sampleRate int) (recognizer.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Transcript{}, err
	}
	if sampleRate != modelSampleRate {
		return recognizer.Transcript{}, fmt.Errorf("whisper: sample rate %d unsupported, want %d", sampleRate, modelSampleRate)
	}

	// Whisper contexts are not thread-safe; the model is. One context per call.
	wctx, err := p.model.NewContext()
	if err != nil {
		return recognizer.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whisper: failed to set language, using model default", "language", p.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return recognizer.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return recognizer.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return recognizer.Transcript{
		Text:     strings.Join(parts, " "),
		Language: wctx.DetectedLanguage(),
	}, nil
}
