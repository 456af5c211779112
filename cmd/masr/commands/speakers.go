package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taglish/masr/internal/speakerdb"
	"github.com/taglish/masr/pkg/provider/embedder/fbankstat"
)

var speakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "Manage the pgvector speaker registry",
}

var speakersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered speakers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openSpeakerDB(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		speakers, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range speakers {
			fmt.Printf("%s  %s  (%d dims)\n", s.ID, s.Name, len(s.Embedding))
		}
		return nil
	},
}

var speakersRegisterCmd = &cobra.Command{
	Use:   "register <name> <file.wav>",
	Short: "Register a speaker from a reference recording",
	Long: `Register a speaker from a reference recording.

The recording should contain a single speaker. Its segments are embedded and
averaged into one voice print, which is stored (or refreshed) under the given
name.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, path := args[0], args[1]

		rec, segments, err := loadAndSegment(path)
		if err != nil {
			return err
		}

		emb, err := fbankstat.New(cfg.Features.NumMels)
		if err != nil {
			return err
		}

		var sum []float32
		for _, seg := range segments {
			v, err := emb.Embed(cmd.Context(), seg.Samples, rec.SampleRate)
			if err != nil {
				return err
			}
			if sum == nil {
				sum = make([]float32, len(v))
			}
			for j, x := range v {
				sum[j] += x
			}
		}
		for j := range sum {
			sum[j] /= float32(len(segments))
		}

		store, err := openSpeakerDB(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.Upsert(cmd.Context(), name, sum)
		if err != nil {
			return err
		}
		fmt.Printf("registered %s as %s\n", name, id)
		return nil
	},
}

func openSpeakerDB(cmd *cobra.Command) (*speakerdb.Store, error) {
	if cfg.SpeakerDB.DSN == "" {
		return nil, errors.New("speaker registry not configured, set speakerdb.dsn")
	}
	emb, err := fbankstat.New(cfg.Features.NumMels)
	if err != nil {
		return nil, err
	}
	return speakerdb.New(cmd.Context(), cfg.SpeakerDB.DSN, emb.Dimensions())
}

func init() {
	speakersCmd.AddCommand(speakersListCmd, speakersRegisterCmd)
	rootCmd.AddCommand(speakersCmd)
}
