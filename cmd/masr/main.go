// Command masr preprocesses a bilingual speech corpus for model fine-tuning:
// it decodes and cleans WAV recordings, segments them, extracts and caches
// acoustic features, assigns dataset splits, and serves batches. It also
// offers speaker diarization and transcription utilities.
//
// Usage:
//
//	masr [flags] <command> [args]
//
// Commands:
//
//	preprocess - run the full preprocessing pipeline over the input corpus
//	inspect    - examine split assignments and batch composition
//	diarize    - cluster one recording into speakers
//	speakers   - manage the pgvector speaker registry
//	transcribe - transcribe one recording with a whisper.cpp model
package main

import (
	"fmt"
	"os"

	"github.com/taglish/masr/cmd/masr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
