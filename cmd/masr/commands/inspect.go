package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taglish/masr/internal/dataset"
	"github.com/taglish/masr/internal/pipeline"
	"github.com/taglish/masr/pkg/featurecache"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Examine split assignments and batch composition",
}

var inspectSplitsCmd = &cobra.Command{
	Use:   "splits",
	Short: "Show the persisted train/val/test assignment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		assignment, seed, err := dataset.LoadAssignment(cfg.Data.SplitsFile)
		if err != nil {
			return err
		}
		fmt.Printf("seed: %d\n", seed)
		for _, split := range []dataset.Split{dataset.SplitTrain, dataset.SplitVal, dataset.SplitTest} {
			ids := assignment.IDs(split)
			fmt.Printf("%s (%d):\n", split, len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
		}
		return nil
	},
}

var (
	inspectSplit string
	inspectEpoch int
	inspectLimit int
)

var inspectBatchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Show batch shapes for one split",
	Long: `Show batch shapes for one split.

Re-runs the pipeline (cheap once the feature cache is warm) to rebuild the
item list, then prints the composition of the first batches in deterministic
iteration order. The train split is shuffled per epoch; val and test are
always served in sorted order.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		split := dataset.Split(inspectSplit)
		if !split.IsValid() {
			return fmt.Errorf("unknown split %q", inspectSplit)
		}

		cache, err := featurecache.Open(featurecache.Options{Dir: cfg.Data.CacheDir})
		if err != nil {
			return err
		}
		defer cache.Close()

		ext, err := newExtractor(cfg)
		if err != nil {
			return err
		}
		p, err := pipeline.New(cfg, cache, ext)
		if err != nil {
			return err
		}
		res, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}

		items := itemsForSplit(res, split)
		b, err := dataset.NewBatcher(split, items, cfg.Data.BatchSize, cfg.Data.Seed)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d segments, %d per batch, epoch %d\n", split, b.Len(), cfg.Data.BatchSize, inspectEpoch)
		n := 0
		for batch := range b.Batches(inspectEpoch) {
			if n >= inspectLimit {
				break
			}
			fmt.Printf("batch %d: %d items, padded length %d\n", n, len(batch.Items), len(batch.Waveforms[0]))
			for i, it := range batch.Items {
				fmt.Printf("  %s/%d len=%d speaker=%d\n", it.RecordingID, it.SegmentIndex, batch.Lengths[i], it.SpeakerLabel)
			}
			n++
		}
		return nil
	},
}

// itemsForSplit filters the pipeline result down to one split's items.
func itemsForSplit(res *pipeline.Result, split dataset.Split) []dataset.Item {
	var out []dataset.Item
	for _, it := range res.Items {
		if res.Assignment[it.RecordingID] == split {
			out = append(out, it)
		}
	}
	return out
}

func init() {
	inspectBatchesCmd.Flags().StringVar(&inspectSplit, "split", string(dataset.SplitTrain), "split to iterate (train, val, test)")
	inspectBatchesCmd.Flags().IntVar(&inspectEpoch, "epoch", 0, "epoch number driving the train shuffle")
	inspectBatchesCmd.Flags().IntVar(&inspectLimit, "limit", 3, "number of batches to print")
	inspectCmd.AddCommand(inspectSplitsCmd, inspectBatchesCmd)
	rootCmd.AddCommand(inspectCmd)
}
