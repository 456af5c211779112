// Package pipeline orchestrates preprocessing: it walks the input corpus,
// decodes and cleans each recording, segments it, fills the feature cache,
// optionally diarizes, and hands the surviving segments to dataset splitting.
//
// Recordings are processed concurrently with a bounded worker pool. Failures
// are isolated per file: a corrupt WAV ends up in the run report, never in
// the dataset, and never aborts the run. Infrastructure failures (cache,
// extractor, cancellation) do abort.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taglish/masr/internal/config"
	"github.com/taglish/masr/internal/dataset"
	"github.com/taglish/masr/internal/diarize"
	"github.com/taglish/masr/internal/observe"
	"github.com/taglish/masr/pkg/audio"
	"github.com/taglish/masr/pkg/featurecache"
	"github.com/taglish/masr/pkg/provider/extractor"
)

// Pipeline runs preprocessing for one configuration. Construct with [New];
// the zero value is not usable.
type Pipeline struct {
	cfg     *config.Config
	cache   *featurecache.Cache
	ext     extractor.Extractor
	diar    *diarize.Diarizer
	metrics *observe.Metrics
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithDiarizer enables per-recording speaker diarization. Segments get dense
// speaker labels local to their recording; without a diarizer every label
// is -1.
func WithDiarizer(d *diarize.Diarizer) Option {
	return func(p *Pipeline) { p.diar = d }
}

// WithMetrics overrides the metrics instance, mainly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New wires a Pipeline from its collaborators. cfg is treated as immutable.
func New(cfg *config.Config, cache *featurecache.Cache, ext extractor.Extractor, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config must not be nil")
	}
	if cache == nil {
		return nil, errors.New("pipeline: cache must not be nil")
	}
	if ext == nil {
		return nil, errors.New("pipeline: extractor must not be nil")
	}
	p := &Pipeline{cfg: cfg, cache: cache, ext: ext}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p, nil
}

// Result is the outcome of one preprocessing run.
type Result struct {
	// Items holds every batchable segment that survived preprocessing.
	Items []dataset.Item

	// Assignment maps recording IDs to their split.
	Assignment dataset.Assignment

	// Report summarises the run, including every skipped file.
	Report Report
}

// Run executes the full pipeline. It returns an error when no audio survives
// preprocessing (wrapping [dataset.ErrEmptySplit]), when the context is
// cancelled, or on cache or extractor failure. Per-file decode problems are
// reported, not returned.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.Run")
	defer span.End()

	paths, err := listWAVs(p.cfg.Data.InputDir)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		items   []dataset.Item
		skipped []SkippedFile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, path := range paths {
		g.Go(func() error {
			recItems, skip, err := p.processRecording(gctx, path)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if skip != nil {
				skipped = append(skipped, *skip)
				return nil
			}
			items = append(items, recItems...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(skipped, func(a, b SkippedFile) int {
		return strings.Compare(a.Path, b.Path)
	})

	ids := recordingIDs(items)
	if len(ids) == 0 {
		return nil, fmt.Errorf("pipeline: no recordings survived preprocessing: %w", dataset.ErrEmptySplit)
	}

	assignment, err := p.assignSplits(ids)
	if err != nil {
		return nil, err
	}
	for _, split := range []dataset.Split{dataset.SplitTrain, dataset.SplitVal, dataset.SplitTest} {
		if len(assignment.IDs(split)) == 0 {
			return nil, fmt.Errorf("pipeline: split %q: %w", split, dataset.ErrEmptySplit)
		}
	}

	return &Result{
		Items:      items,
		Assignment: assignment,
		Report: Report{
			Processed: len(ids),
			Segments:  len(items),
			Skipped:   skipped,
		},
	}, nil
}

// processRecording runs the per-file stages. A non-nil SkippedFile means the
// recording was dropped for a reportable reason; a non-nil error aborts the
// whole run.
func (p *Pipeline) processRecording(ctx context.Context, path string) ([]dataset.Item, *SkippedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p.metrics.ActiveWorkers.Add(ctx, 1)
	defer p.metrics.ActiveWorkers.Add(ctx, -1)

	log := observe.Logger(ctx).With(slog.String("path", path))
	loadStart := time.Now()

	rec, err := audio.Load(path, audio.LoadOptions{
		TargetRate: p.cfg.Audio.SampleRate,
		Resample:   p.cfg.Audio.Resample,
	})
	if err != nil {
		reason := ReasonUnreadable
		if errors.Is(err, audio.ErrSampleRateMismatch) {
			reason = ReasonSampleRateMismatch
		}
		log.Warn("skipping recording", slog.String("reason", reason), slog.Any("error", err))
		p.metrics.RecordSkip(ctx, reason)
		return nil, &SkippedFile{Path: path, Reason: reason}, nil
	}

	if p.cfg.Audio.TrimSilence {
		audio.TrimSilence(rec, audio.TrimOptions{
			Threshold:  p.cfg.Audio.SilenceThreshold,
			MinSilence: time.Duration(p.cfg.Audio.MinSilence * float64(time.Second)),
		})
	}
	audio.Normalize(rec.Samples, p.cfg.Audio.Normalize, p.cfg.Audio.RMSTarget)

	if maxLen := int(p.cfg.Data.MaxDuration * float64(rec.SampleRate)); maxLen > 0 && len(rec.Samples) > maxLen {
		log.Warn("truncating long recording",
			slog.Duration("duration", rec.Duration()),
			slog.Float64("max_seconds", p.cfg.Data.MaxDuration))
		rec.Samples = rec.Samples[:maxLen]
	}

	if rec.Duration() < time.Duration(p.cfg.Data.MinDuration*float64(time.Second)) {
		reason := ReasonTooShort
		if rec.WasFullySilent {
			reason = ReasonFullySilent
		}
		log.Warn("skipping recording", slog.String("reason", reason),
			slog.Duration("duration", rec.Duration()))
		p.metrics.RecordSkip(ctx, reason)
		return nil, &SkippedFile{Path: path, Reason: reason}, nil
	}

	segments := slices.Collect(audio.Segments(rec, p.cfg.Segment.Options()))
	if len(segments) == 0 {
		log.Warn("skipping recording", slog.String("reason", ReasonTooShort),
			slog.Duration("duration", rec.Duration()))
		p.metrics.RecordSkip(ctx, ReasonTooShort)
		return nil, &SkippedFile{Path: path, Reason: ReasonTooShort}, nil
	}
	p.metrics.LoadDuration.Record(ctx, time.Since(loadStart).Seconds())
	p.metrics.SegmentsProduced.Add(ctx, int64(len(segments)))

	for _, seg := range segments {
		extractStart := time.Now()
		_, hit, err := p.cache.GetOrCompute(ctx, seg.RecordingID, seg.Index, seg.Samples, rec.SampleRate, p.ext)
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: features for %s segment %d: %w", seg.RecordingID, seg.Index, err)
		}
		p.metrics.RecordCacheLookup(ctx, hit)
		if !hit {
			p.metrics.ExtractDuration.Record(ctx, time.Since(extractStart).Seconds())
		}
	}

	labels := p.diarizeLabels(ctx, log, segments, rec.SampleRate)

	items := make([]dataset.Item, len(segments))
	for i, seg := range segments {
		items[i] = dataset.Item{
			RecordingID:  seg.RecordingID,
			SegmentIndex: seg.Index,
			Samples:      seg.Samples,
			SpeakerLabel: labels[i],
		}
	}

	p.metrics.RecordingsProcessed.Add(ctx, 1)
	log.Info("recording processed",
		slog.Int("segments", len(segments)),
		slog.Duration("duration", rec.Duration()),
		slog.Bool("fully_silent", rec.WasFullySilent))
	return items, nil, nil
}

// diarizeLabels returns one speaker label per segment, or all -1 when
// diarization is disabled or fails. A diarization failure degrades the labels
// rather than dropping the recording.
func (p *Pipeline) diarizeLabels(ctx context.Context, log *slog.Logger, segments []audio.Segment, sampleRate int) []int {
	labels := make([]int, len(segments))
	for i := range labels {
		labels[i] = -1
	}
	if p.diar == nil {
		return labels
	}

	start := time.Now()
	res, err := p.diar.Run(ctx, segments, sampleRate)
	if err != nil {
		log.Warn("diarization failed, segments left unlabelled", slog.Any("error", err))
		return labels
	}
	p.metrics.DiarizeDuration.Record(ctx, time.Since(start).Seconds())
	copy(labels, res.Labels)
	return labels
}

// assignSplits reuses the persisted split assignment when its seed matches,
// so re-runs over a grown corpus never move an already-assigned recording
// between splits. New IDs are assigned deterministically and the file is
// rewritten.
func (p *Pipeline) assignSplits(ids []string) (dataset.Assignment, error) {
	fresh := dataset.Assign(ids, dataset.Ratios{
		Train: p.cfg.Data.TrainSplit,
		Val:   p.cfg.Data.ValSplit,
		Test:  p.cfg.Data.TestSplit,
	}, p.cfg.Data.Seed)

	prev, prevSeed, err := dataset.LoadAssignment(p.cfg.Data.SplitsFile)
	if err == nil && prevSeed == p.cfg.Data.Seed {
		for id, split := range prev {
			if _, ok := fresh[id]; ok {
				fresh[id] = split
			}
		}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("pipeline: read splits file: %w", err)
	}

	if err := fresh.Save(p.cfg.Data.SplitsFile, p.cfg.Data.Seed); err != nil {
		return nil, fmt.Errorf("pipeline: write splits file: %w", err)
	}
	return fresh, nil
}

// listWAVs returns the sorted .wav paths directly under dir.
func listWAVs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read input dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

// recordingIDs returns the sorted unique recording IDs present in items.
func recordingIDs(items []dataset.Item) []string {
	seen := make(map[string]struct{}, len(items))
	var ids []string
	for _, it := range items {
		if _, ok := seen[it.RecordingID]; ok {
			continue
		}
		seen[it.RecordingID] = struct{}{}
		ids = append(ids, it.RecordingID)
	}
	slices.Sort(ids)
	return ids
}
