// Package commands implements the masr CLI.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taglish/masr/internal/config"
	"github.com/taglish/masr/pkg/provider/extractor"
	"github.com/taglish/masr/pkg/provider/extractor/fbank"
	extmock "github.com/taglish/masr/pkg/provider/extractor/mock"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "masr",
	Short:         "Speech corpus preprocessing and batching for MASR fine-tuning",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("config file %q not found — copy configs/example.yaml to get started", cfgPath)
			}
			return err
		}
		slog.SetDefault(newLogger(cfg.LogLevel))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML configuration file")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newExtractor builds the configured feature extractor.
func newExtractor(cfg *config.Config) (extractor.Extractor, error) {
	switch cfg.Features.Extractor {
	case config.ExtractorFbank:
		return fbank.New(cfg.Features.NumMels)
	case config.ExtractorMock:
		return &extmock.Extractor{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", cfg.Features.Extractor)
	}
}
