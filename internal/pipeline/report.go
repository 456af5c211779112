package pipeline

// Skip reasons reported for recordings that were dropped before batching.
const (
	ReasonUnreadable         = "unreadable"
	ReasonSampleRateMismatch = "sample_rate_mismatch"
	ReasonTooShort           = "too_short"
	ReasonFullySilent        = "fully_silent"
)

// SkippedFile records one dropped recording and why.
type SkippedFile struct {
	Path   string `yaml:"path"`
	Reason string `yaml:"reason"`
}

// Report summarises a preprocessing run. Processed counts recordings that
// produced at least one segment; Skipped lists every dropped file so a run
// over a partially corrupt corpus stays auditable.
type Report struct {
	Processed int           `yaml:"processed"`
	Segments  int           `yaml:"segments"`
	Skipped   []SkippedFile `yaml:"skipped,omitempty"`
}
