// Package pipeline wires the full per-file analysis chain: read and expand
// the journal, extract the lane identity, and run the four segmentation
// engines over the materialized entry stream. Each Run owns all of its
// state, so callers may process many files concurrently.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openeps/jrnlyzer/pkg/diagnose"
	"github.com/openeps/jrnlyzer/pkg/identity"
	"github.com/openeps/jrnlyzer/pkg/journal"
	"github.com/openeps/jrnlyzer/pkg/segment"
)

// Result is everything the analysis chain derives from one journal file.
type Result struct {
	Metadata     journal.FileMetadata
	Identity     *identity.Identity
	Entries      []*journal.Entry
	Transactions []*segment.Transaction
	Cascades     []*segment.ErrorCascade
	HealthChecks []*segment.HealthCheck
	Timeline     []segment.AliveTransition
	StateHistory []segment.StateChange
}

// FileData adapts the result for the rule engine.
func (r *Result) FileData() *diagnose.FileData {
	return &diagnose.FileData{
		Entries:      r.Entries,
		Transactions: r.Transactions,
		Cascades:     r.Cascades,
		HealthChecks: r.HealthChecks,
		Timeline:     r.Timeline,
	}
}

type options struct {
	lookback      int
	maxScanLines  int
	cascadeMaxGap time.Duration
	expand        bool
	logger        *zap.Logger
}

// Option configures a pipeline run.
type Option func(*options)

// WithLookback sets the repeat-expansion ring buffer size.
func WithLookback(n int) Option {
	return func(o *options) { o.lookback = n }
}

// WithMaxScanLines caps how deep the identity extractor scans.
func WithMaxScanLines(n int) Option {
	return func(o *options) { o.maxScanLines = n }
}

// WithCascadeMaxGap sets the error cascade clustering gap.
func WithCascadeMaxGap(d time.Duration) Option {
	return func(o *options) { o.cascadeMaxGap = d }
}

// WithoutExpansion disables repeat-directive expansion.
func WithoutExpansion() Option {
	return func(o *options) { o.expand = false }
}

// WithLogger attaches a logger to the run.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run analyzes one journal file end to end.
func Run(ctx context.Context, path string, opts ...Option) (*Result, error) {
	o := options{
		lookback:      journal.DefaultLookback,
		maxScanLines:  identity.DefaultMaxScanLines,
		cascadeMaxGap: segment.DefaultCascadeMaxGap,
		expand:        true,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	readerOpts := []journal.ReaderOption{journal.WithLookback(o.lookback)}
	if !o.expand {
		readerOpts = append(readerOpts, journal.WithoutExpansion())
	}
	reader := journal.NewReader(path, readerOpts...)
	defer reader.Close()

	entries, err := reader.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", path, err)
	}

	result := &Result{
		Metadata: reader.Metadata(),
		Entries:  entries,
	}

	// Identity scans the raw file so unparseable header lines still
	// contribute, and hashes the content along the way.
	extractor := identity.NewExtractor(o.maxScanLines)
	if id, err := extractor.FromFile(path); err == nil {
		result.Identity = id
	} else {
		o.logger.Warn("identity rescan failed, using parsed entries", zap.String("file", path), zap.Error(err))
		result.Identity = extractor.FromEntries(entries)
	}

	txn := segment.NewTransactionSegmenter()
	scat := segment.NewStateMachine()
	cascade := segment.NewCascadeDetector(o.cascadeMaxGap)
	health := segment.NewHealthSegmenter()

	for _, e := range entries {
		if t := txn.Process(e); t != nil {
			result.Transactions = append(result.Transactions, t)
		}
		scat.Process(e)
		if c := cascade.Process(e); c != nil {
			result.Cascades = append(result.Cascades, c)
		}
		if hc := health.Process(e); hc != nil {
			result.HealthChecks = append(result.HealthChecks, hc)
		}
	}
	if t := txn.Flush(); t != nil {
		result.Transactions = append(result.Transactions, t)
	}
	if c := cascade.Flush(); c != nil {
		result.Cascades = append(result.Cascades, c)
	}
	health.Flush()

	result.Timeline = scat.AliveHistory
	result.StateHistory = scat.StateHistory

	o.logger.Debug("journal analyzed",
		zap.String("file", path),
		zap.Int("entries", len(entries)),
		zap.Int("transactions", len(result.Transactions)),
		zap.Int("cascades", len(result.Cascades)),
		zap.Int("health_checks", len(result.HealthChecks)))

	return result, nil
}

// Diagnose runs the rule engine over an analyzed file.
func Diagnose(result *Result, win diagnose.Window) []diagnose.Issue {
	return diagnose.NewEngine().Analyze(result.FileData(), win)
}
