// Package journal provides reading and parsing of OpenEPS pinpad journal
// log files (jrnlNNNN.txt), including expansion of the repeat-compression
// markers the logger emits for identical consecutive lines.
package journal

import "time"

// Category is one of the seven fixed journal line categories.
type Category string

const (
	CategoryTCPIP  Category = "TCP/IP"
	CategoryDLLIn  Category = "DLL-IN"
	CategoryDLLEx  Category = "DLL-EX"
	CategorySerial Category = "SERIAL"
	CategorySvrEPS Category = "SVREPS"
	CategoryMetric Category = "METRIC"
	CategoryMTXPOS Category = "MTXPOS"
)

// Entry is a single parsed journal line.
type Entry struct {
	// LineNumber is the 1-based line number in the source file.
	LineNumber int

	// Timestamp is the parsed line timestamp (millisecond precision,
	// no timezone information in the source format).
	Timestamp time.Time

	// Category is the journal channel the line was written to.
	Category Category

	// Message is the remainder of the line with trailing whitespace removed.
	Message string

	// IsExpanded is true for entries materialized from a repeat directive.
	IsExpanded bool

	// ExpansionCount is the repeat count the entry was materialized with (1
	// for entries read directly from the file).
	ExpansionCount int

	// SourceFile is the file name the entry came from.
	SourceFile string
}

// RepeatDirective is a parsed "(Above N Lines Repeated M Times)" marker.
// Directives are consumed by the Expander and never stored.
type RepeatDirective struct {
	// LineCount is how many preceding entries to replay (1 for "Above Line").
	LineCount int

	// RepeatCount is how many times to replay them.
	RepeatCount int

	// LineNumber is the 1-based line number of the marker itself.
	LineNumber int
}

// FileMetadata describes a journal file, extracted from its name and size.
type FileMetadata struct {
	// FilePath is the absolute path to the file.
	FilePath string

	// FileName is the base name of the file.
	FileName string

	// Lane is the zero-padded lane number encoded in the file name
	// ("" if unknown).
	Lane string

	// LogDate is the journal date in YYYY-MM-DD form. Taken from the file
	// name when present, otherwise from the first parseable line.
	LogDate string

	// FileSize is the file size in bytes.
	FileSize int64

	// LineCount is the total line count, if counted.
	LineCount int
}
