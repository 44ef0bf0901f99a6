package models

import (
	"strings"
	"time"
)

// FrontTextColumn is the export column that always carries the input's front text
const FrontTextColumn = "front_text"

// Sentinel values written in place of generated content when a record degrades
const (
	SentinelFieldMissing          = "[field missing]"
	SentinelParseErrorPrefix      = "[parse error: "
	SentinelGenerationErrorPrefix = "[generation error: "
)

// InputRecord is one unit of work loaded from the input file.
// Back is only populated for two-column (enhancement) inputs.
type InputRecord struct {
	Front string
	Back  string
}

// ResultRecord maps export column names to values for one input record
type ResultRecord map[string]string

// Values returns the record's values in the given column order
func (r ResultRecord) Values(columns []string) []string {
	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = r[col]
	}
	return values
}

// HasSentinel reports whether any value in the record is a sentinel marker
func (r ResultRecord) HasSentinel() bool {
	for _, v := range r {
		if IsSentinel(v) {
			return true
		}
	}
	return false
}

// IsSentinel reports whether a value is one of the degraded-record markers
func IsSentinel(v string) bool {
	return v == SentinelFieldMissing ||
		(strings.HasPrefix(v, SentinelParseErrorPrefix) && strings.HasSuffix(v, "]")) ||
		(strings.HasPrefix(v, SentinelGenerationErrorPrefix) && strings.HasSuffix(v, "]"))
}

// ParseErrorSentinel formats a parse-error marker around a diagnostic message
func ParseErrorSentinel(msg string) string {
	return SentinelParseErrorPrefix + msg + "]"
}

// GenerationErrorSentinel formats a generation-error marker around a diagnostic message
func GenerationErrorSentinel(msg string) string {
	return SentinelGenerationErrorPrefix + msg + "]"
}

// RecordOutcome classifies how a single record finished
type RecordOutcome string

const (
	OutcomeSuccess         RecordOutcome = "success"
	OutcomeFieldMissing    RecordOutcome = "field_missing"
	OutcomeParseError      RecordOutcome = "parse_error"
	OutcomeGenerationError RecordOutcome = "generation_error"
)

// SessionStats tracks statistics for a generation run
type SessionStats struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalRecords    int
	ResumedCount    int // Rows restored from the checkpoint
	ProcessedCount  int // Rows generated during this run
	SuccessCount    int
	DegradedCount   int // Rows carrying at least one sentinel
	RetryCount      int
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

// ExportSummary describes a finished export
type ExportSummary struct {
	Path       string
	Total      int
	ErrorCount int
	Columns    []string
}
