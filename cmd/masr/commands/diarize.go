package commands

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/taglish/masr/internal/diarize"
	"github.com/taglish/masr/internal/speakerdb"
	"github.com/taglish/masr/pkg/audio"
	"github.com/taglish/masr/pkg/provider/embedder/fbankstat"
)

var diarizeSpeakers int

var diarizeCmd = &cobra.Command{
	Use:   "diarize <file.wav>",
	Short: "Cluster one recording into speakers",
	Long: `Cluster one recording into speakers.

The recording is cleaned and segmented like in the pipeline, each segment is
embedded, and the embeddings are clustered. Without --speakers the speaker
count is searched within the configured bounds.

When a speaker registry DSN is configured, each cluster is matched against
registered speakers and printed with the nearest name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, segments, err := loadAndSegment(args[0])
		if err != nil {
			return err
		}

		emb, err := fbankstat.New(cfg.Features.NumMels)
		if err != nil {
			return err
		}
		d, err := diarize.New(emb, diarize.Options{
			MinSpeakers: cfg.Diarization.MinSpeakers,
			MaxSpeakers: cfg.Diarization.MaxSpeakers,
			NumSpeakers: diarizeSpeakers,
			Seed:        cfg.Data.Seed,
		})
		if err != nil {
			return err
		}

		res, err := d.Run(cmd.Context(), segments, rec.SampleRate)
		if err != nil {
			return err
		}

		names, err := clusterNames(cmd, res, emb.Dimensions())
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d speakers\n", rec.ID, res.NumSpeakers)
		for i, seg := range segments {
			start := time.Duration(float64(seg.Start) / float64(rec.SampleRate) * float64(time.Second))
			end := time.Duration(float64(seg.End) / float64(rec.SampleRate) * float64(time.Second))
			fmt.Printf("  %8s - %8s  %s\n", start.Round(time.Millisecond), end.Round(time.Millisecond), names[res.Labels[i]])
		}
		return nil
	},
}

// clusterNames maps cluster indices to display names. Clusters resolve to
// registry names when a speaker DB is configured and a registered speaker is
// nearby, otherwise to "speaker N".
func clusterNames(cmd *cobra.Command, res *diarize.Result, dims int) (map[int]string, error) {
	names := make(map[int]string, res.NumSpeakers)
	for i := range res.NumSpeakers {
		names[i] = fmt.Sprintf("speaker %d", i)
	}
	if cfg.SpeakerDB.DSN == "" {
		return names, nil
	}

	store, err := speakerdb.New(cmd.Context(), cfg.SpeakerDB.DSN, dims)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	for i := range res.NumSpeakers {
		centroid := clusterCentroid(res, i)
		if centroid == nil {
			continue
		}
		matches, err := store.Nearest(cmd.Context(), centroid, 1)
		if err != nil {
			return nil, err
		}
		if len(matches) == 1 {
			names[i] = matches[0].Speaker.Name
		}
	}
	return names, nil
}

// clusterCentroid averages the embeddings assigned to one cluster.
func clusterCentroid(res *diarize.Result, cluster int) []float32 {
	var sum []float32
	n := 0
	for i, label := range res.Labels {
		if label != cluster {
			continue
		}
		if sum == nil {
			sum = slices.Clone(res.Embeddings[i])
		} else {
			for j, v := range res.Embeddings[i] {
				sum[j] += v
			}
		}
		n++
	}
	if n == 0 {
		return nil
	}
	for j := range sum {
		sum[j] /= float32(n)
	}
	return sum
}

// loadAndSegment runs the per-recording pipeline stages on a single file.
func loadAndSegment(path string) (*audio.Recording, []audio.Segment, error) {
	rec, err := audio.Load(path, audio.LoadOptions{
		TargetRate: cfg.Audio.SampleRate,
		Resample:   cfg.Audio.Resample,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Audio.TrimSilence {
		audio.TrimSilence(rec, audio.TrimOptions{
			Threshold:  cfg.Audio.SilenceThreshold,
			MinSilence: time.Duration(cfg.Audio.MinSilence * float64(time.Second)),
		})
	}
	audio.Normalize(rec.Samples, cfg.Audio.Normalize, cfg.Audio.RMSTarget)

	segments := slices.Collect(audio.Segments(rec, cfg.Segment.Options()))
	if len(segments) == 0 {
		return nil, nil, fmt.Errorf("%s: too short to segment", path)
	}
	return rec, segments, nil
}

func init() {
	diarizeCmd.Flags().IntVar(&diarizeSpeakers, "speakers", 0, "pin the speaker count (0 searches the configured range)")
	rootCmd.AddCommand(diarizeCmd)
}
