package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taglish/masr/internal/diarize"
	"github.com/taglish/masr/internal/observe"
	"github.com/taglish/masr/internal/pipeline"
	"github.com/taglish/masr/pkg/featurecache"
	"github.com/taglish/masr/pkg/provider/embedder/fbankstat"
)

var preprocessDiarize bool

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Run the full preprocessing pipeline over the input corpus",
	Long: `Run the full preprocessing pipeline.

Every WAV file in the input directory is decoded, trimmed, normalized,
segmented into overlapping windows, and its acoustic features are extracted
into the on-disk cache. Surviving recordings are assigned to train/val/test
splits; the assignment is persisted next to the corpus so re-runs never move
a recording between splits.

Corrupt or off-rate files are skipped and listed in the run report. The
command fails when any split would end up empty.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutCtx); err != nil {
				slog.Warn("telemetry shutdown", "err", err)
			}
		}()

		cache, err := featurecache.Open(featurecache.Options{Dir: cfg.Data.CacheDir})
		if err != nil {
			return err
		}
		defer cache.Close()

		ext, err := newExtractor(cfg)
		if err != nil {
			return err
		}

		var opts []pipeline.Option
		if preprocessDiarize {
			emb, err := fbankstat.New(cfg.Features.NumMels)
			if err != nil {
				return err
			}
			d, err := diarize.New(emb, diarize.Options{
				MinSpeakers: cfg.Diarization.MinSpeakers,
				MaxSpeakers: cfg.Diarization.MaxSpeakers,
				Seed:        cfg.Data.Seed,
			})
			if err != nil {
				return err
			}
			opts = append(opts, pipeline.WithDiarizer(d))
		}

		p, err := pipeline.New(cfg, cache, ext, opts...)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return observe.Serve(gctx, cfg.MetricsAddr, observe.Checker{
				Name: "cache",
				Check: func(context.Context) error {
					_, err := cache.Len()
					return err
				},
			})
		})

		var res *pipeline.Result
		g.Go(func() error {
			defer stop() // pipeline done, release the metrics server
			var err error
			res, err = p.Run(gctx)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		printReport(res.Report)
		return nil
	},
}

func printReport(r pipeline.Report) {
	fmt.Printf("processed %d recordings into %d segments\n", r.Processed, r.Segments)
	if len(r.Skipped) == 0 {
		return
	}
	fmt.Printf("skipped %d files:\n", len(r.Skipped))
	for _, s := range r.Skipped {
		fmt.Printf("  %-24s %s\n", s.Reason, s.Path)
	}
	fmt.Fprintln(os.Stderr, "some files were skipped; see report above")
}

func init() {
	preprocessCmd.Flags().BoolVar(&preprocessDiarize, "diarize", false, "label segments with per-recording speaker clusters")
	rootCmd.AddCommand(preprocessCmd)
}
