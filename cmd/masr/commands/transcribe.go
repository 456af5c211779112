package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taglish/masr/pkg/provider/recognizer/whisper"
)

var (
	transcribeModel    string
	transcribeLanguage string
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file.wav>",
	Short: "Transcribe one recording with a whisper.cpp model",
	Long: `Transcribe one recording with a whisper.cpp model.

The recording is cleaned like in the pipeline and transcribed as a whole.
Language defaults to auto detection, which handles code-switched speech by
reporting the dominant language.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if transcribeModel == "" {
			return fmt.Errorf("a whisper.cpp model is required, use --model")
		}

		rec, _, err := loadAndSegment(args[0])
		if err != nil {
			return err
		}

		rcg, err := whisper.New(transcribeModel, whisper.WithLanguage(transcribeLanguage))
		if err != nil {
			return err
		}
		defer rcg.Close()

		tr, err := rcg.Transcribe(cmd.Context(), rec.Samples, rec.SampleRate)
		if err != nil {
			return err
		}
		fmt.Printf("language: %s\n%s\n", tr.Language, tr.Text)
		return nil
	},
}

func init() {
	transcribeCmd.Flags().StringVar(&transcribeModel, "model", "", "path to the ggml whisper model file")
	transcribeCmd.Flags().StringVar(&transcribeLanguage, "language", "auto", "transcription language (auto detects)")
	rootCmd.AddCommand(transcribeCmd)
}
