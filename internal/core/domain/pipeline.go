package domain

import "time"

// StageName identifies a pipeline stage.
type StageName string

// Pipeline stages, in execution order.
const (
	StageExtract   StageName = "extract"
	StageNormalise StageName = "normalise"
	StagePaginate  StageName = "paginate"
)

// String returns the string representation.
func (s StageName) String() string {
	return string(s)
}

// StageResult records one executed stage.
type StageResult struct {
	// Stage is the stage that ran.
	Stage StageName

	// Order is the logical position at which the stage completed.
	Order int

	// Attempts is how many times the stage was tried.
	Attempts int
}

// ExtractedMessage is the intermediate form produced by text extraction.
// Fields keeps the source keys untouched; normalisation coerces them.
type ExtractedMessage struct {
	// Ordinal is the position within the submission.
	Ordinal int

	// HasOrdinal is false when the source could not place the message.
	HasOrdinal bool

	// Source names the parser or "list" for structured submissions.
	Source string

	// Fields are the raw message attributes.
	Fields map[string]any
}

// Extraction is the output of the text extraction stage.
type Extraction struct {
	// Type is the declared or implied content type.
	Type string

	// Messages are the extracted records in source order.
	Messages []ExtractedMessage
}

// PaginationMode selects how page size is measured.
type PaginationMode string

// Available pagination modes.
const (
	// PaginateByCount bounds each page by number of messages.
	PaginateByCount PaginationMode = "count"

	// PaginateByBytes bounds each page by total body bytes.
	PaginateByBytes PaginationMode = "bytes"
)

// IsValid returns true if the mode is recognised.
func (m PaginationMode) IsValid() bool {
	return m == PaginateByCount || m == PaginateByBytes
}

// Pagination defaults.
const (
	DefaultPageMessages = 1000
	DefaultPageBytes    = 64 * 1024
)

// PaginationConfig bounds page size.
type PaginationConfig struct {
	Mode        PaginationMode
	MaxMessages int
	MaxBytes    int
}

// RetryConfig configures per-stage retries on transient failure.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// PipelineConfig configures the transformation pipeline.
type PipelineConfig struct {
	// Timeout is the end-to-end deadline for one submission.
	Timeout time.Duration

	// Workers is the number of stage workers shared by all submissions.
	Workers int

	// QueueSize bounds stage jobs waiting for a worker.
	QueueSize int

	Pagination PaginationConfig
	Retry      RetryConfig
}

// DefaultPipelineConfig returns sensible defaults for the pipeline.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Timeout:   2 * time.Minute,
		Workers:   8,
		QueueSize: 64,
		Pagination: PaginationConfig{
			Mode:        PaginateByCount,
			MaxMessages: DefaultPageMessages,
			MaxBytes:    DefaultPageBytes,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// PipelineInput is one submission entering the pipeline.
type PipelineInput struct {
	Fingerprint  Fingerprint
	DeclaredType string
	Content      Content
}

// PipelineOutput is the completed work of all three stages.
type PipelineOutput struct {
	// Type is the declared or implied content type.
	Type string

	// Pages are the paginated messages in order.
	Pages []Page

	// MessageCount is the number of normalised messages.
	MessageCount int

	// Stages records each stage in the order it completed.
	Stages []StageResult
}

// Provenance returns the stage names in execution order.
func (o *PipelineOutput) Provenance() []StageName {
	names := make([]StageName, len(o.Stages))
	for i, s := range o.Stages {
		names[i] = s.Stage
	}
	return names
}
