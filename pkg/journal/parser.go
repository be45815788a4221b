package journal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Standard journal line: MM/DD/YY HH:MM:SS.mmm CATEGORY message
var linePattern = regexp.MustCompile(
	`^(\d{2}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\.\d{3})` +
		` (TCP/IP|DLL-IN|DLL-EX|SERIAL|SVREPS|METRIC|MTXPOS)` +
		` (.*)$`)

// Repeat compression markers:
//
//	"                  (Above Line Repeated 609 Times)"
//	"                  (Above 2 Lines Repeated 1 Times)"
var repeatPattern = regexp.MustCompile(`^\s+\(Above (\d+ )?Lines? Repeated (\d+) Times?\)$`)

// TimestampLayout is the journal timestamp format.
const TimestampLayout = "01/02/06 15:04:05.000"

// Parser parses individual journal lines into structured values.
type Parser struct {
	sourceFile string
}

// NewParser creates a parser. sourceFile is recorded on every entry.
func NewParser(sourceFile string) *Parser {
	return &Parser{sourceFile: sourceFile}
}

// ParseLine parses a single raw line. Exactly one of the returns is non-nil
// for a recognized line; both are nil for blank or unrecognized lines
// (continuation lines, binary noise), which is not an error.
func (p *Parser) ParseLine(raw string, lineNumber int) (*Entry, *RepeatDirective) {
	// The repeat marker carries no timestamp, so it must be tried first.
	if m := repeatPattern.FindStringSubmatch(raw); m != nil {
		lineCount := 1
		if m[1] != "" {
			n, err := strconv.Atoi(strings.TrimSpace(m[1]))
			if err != nil {
				return nil, nil
			}
			lineCount = n
		}
		repeatCount, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, nil
		}
		return nil, &RepeatDirective{
			LineCount:   lineCount,
			RepeatCount: repeatCount,
			LineNumber:  lineNumber,
		}
	}

	m := linePattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, nil
	}

	ts, err := time.Parse(TimestampLayout, m[1])
	if err != nil {
		// Treated the same as an unrecognized line.
		return nil, nil
	}

	return &Entry{
		LineNumber:     lineNumber,
		Timestamp:      ts,
		Category:       Category(m[2]),
		Message:        strings.TrimRight(m[3], " \t\r\n"),
		ExpansionCount: 1,
		SourceFile:     p.sourceFile,
	}, nil
}
