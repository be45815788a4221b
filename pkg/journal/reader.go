package journal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// Reader streams parsed entries from a single journal file. Repeat
// directives are expanded inline unless disabled. Returns io.EOF from Next
// once the file is exhausted.
type Reader struct {
	path     string
	meta     FileMetadata
	expand   bool
	lookback int

	file     *os.File
	scanner  *bufio.Scanner
	parser   *Parser
	expander *Expander
	lineNum  int
	pending  []*Entry
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithoutExpansion disables repeat-directive expansion; directives are
// silently discarded.
func WithoutExpansion() ReaderOption {
	return func(r *Reader) { r.expand = false }
}

// WithLookback sets the expander ring buffer capacity.
func WithLookback(n int) ReaderOption {
	return func(r *Reader) { r.lookback = n }
}

// NewReader creates a Reader for the given journal file. The file is opened
// on the first call to Next.
func NewReader(path string, opts ...ReaderOption) *Reader {
	r := &Reader{
		path:     path,
		expand:   true,
		lookback: DefaultLookback,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.meta = ExtractFileMetadata(path)
	r.parser = NewParser(r.meta.FileName)
	r.expander = NewExpander(r.lookback)
	return r
}

// Metadata returns the filename-derived metadata for the journal file.
func (r *Reader) Metadata() FileMetadata {
	return r.meta
}

// Next returns the next parsed entry. Unrecognized lines are skipped.
// Returns io.EOF when the file is exhausted.
func (r *Reader) Next(ctx context.Context) (*Entry, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if len(r.pending) > 0 {
			e := r.pending[0]
			r.pending = r.pending[1:]
			return e, nil
		}

		if r.scanner == nil {
			if err := r.open(); err != nil {
				return nil, err
			}
		}

		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", r.path, err)
			}
			return nil, io.EOF
		}
		r.lineNum++
		line := sanitizeLine(r.scanner.Text())

		entry, directive := r.parser.ParseLine(line, r.lineNum)
		switch {
		case entry != nil:
			if r.expand {
				r.expander.Push(entry)
			}
			return entry, nil
		case directive != nil && r.expand:
			expanded := r.expander.Expand(directive)
			if len(expanded) > 0 {
				r.pending = expanded
			}
		}
		// Unrecognized line, or a directive with insufficient history: skip.
	}
}

// ReadAll materializes every entry in the file.
func (r *Reader) ReadAll(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	for {
		e, err := r.Next(ctx)
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		r.scanner = nil
		return err
	}
	return nil
}

func (r *Reader) open() error {
	f, err := os.Open(r.path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return fmt.Errorf("opening journal file %s: %w", r.path, err)
	}
	if info, err := f.Stat(); err == nil {
		r.meta.FileSize = info.Size()
	}
	r.file = f
	r.scanner = bufio.NewScanner(f)
	r.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max line size
	r.lineNum = 0
	return nil
}

// sanitizeLine replaces invalid UTF-8 bytes; journal files occasionally
// contain raw binary from serial traces.
func sanitizeLine(line string) string {
	if utf8.ValidString(line) {
		return line
	}
	return strings.ToValidUTF8(line, string(utf8.RuneError))
}
