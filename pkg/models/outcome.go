package models

import "time"

// OutcomeStatus classifies the final result of processing one input file.
type OutcomeStatus string

const (
	// StatusArchived means the invoice was parsed, registered and written
	// to the archive.
	StatusArchived OutcomeStatus = "ARCHIVED"

	// StatusSkippedDuplicate means the fingerprint was already registered.
	StatusSkippedDuplicate OutcomeStatus = "SKIPPED_DUPLICATE"

	// StatusSkippedUnsupported means the file is not an invoice candidate:
	// unknown extension, or a metadata/notification companion that is only
	// archived alongside its invoice.
	StatusSkippedUnsupported OutcomeStatus = "SKIPPED_UNSUPPORTED"

	// StatusSkippedNotInPortfolio means the invoice parsed correctly but
	// neither party matches a configured client.
	StatusSkippedNotInPortfolio OutcomeStatus = "SKIPPED_NOT_IN_PORTFOLIO"

	// StatusFailed means decoding, parsing or writing failed.
	StatusFailed OutcomeStatus = "FAILED"
)

// IsSkip reports whether the status is a normal, expected skip rather
// than a failure.
func (s OutcomeStatus) IsSkip() bool {
	switch s {
	case StatusSkippedDuplicate, StatusSkippedUnsupported, StatusSkippedNotInPortfolio:
		return true
	}
	return false
}

// ProcessingOutcome is the per-file result handed to the reporting layer.
// Exactly one outcome is produced for every input file.
type ProcessingOutcome struct {
	FileName   string        `json:"file_name"`
	Status     OutcomeStatus `json:"status"`
	Category   string        `json:"category"`
	Detail     string        `json:"detail,omitempty"`
	Strategy   string        `json:"decode_strategy,omitempty"`
	Attempts   []string      `json:"decode_attempts,omitempty"`
	ClientName string        `json:"client_name,omitempty"`
	Year       int           `json:"invoice_year,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// RunStats aggregates outcomes for a whole batch.
type RunStats struct {
	Total          int `json:"total"`
	Archived       int `json:"archived"`
	Duplicates     int `json:"duplicates"`
	Unsupported    int `json:"unsupported"`
	NotInPortfolio int `json:"not_in_portfolio"`
	Failed         int `json:"failed"`
}

// Add counts one outcome into the stats.
func (s *RunStats) Add(o ProcessingOutcome) {
	s.Total++
	switch o.Status {
	case StatusArchived:
		s.Archived++
	case StatusSkippedDuplicate:
		s.Duplicates++
	case StatusSkippedUnsupported:
		s.Unsupported++
	case StatusSkippedNotInPortfolio:
		s.NotInPortfolio++
	case StatusFailed:
		s.Failed++
	}
}
