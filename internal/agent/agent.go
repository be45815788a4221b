// Package agent watches a drop directory for journal files and ingests each
// one once it stops growing. Copies from lanes arrive over slow links, so a
// file is only picked up after a settle interval with no further writes.
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/openeps/jrnlyzer/internal/storage"
	"github.com/openeps/jrnlyzer/pkg/pipeline"
)

// DefaultPattern matches lane journal files.
const DefaultPattern = "jrnl*.txt"

// DefaultSettle is how long a file must be quiet before ingestion.
const DefaultSettle = 2 * time.Second

// Agent ties the directory watcher to the analysis pipeline and store.
type Agent struct {
	dir     string
	pattern string
	settle  time.Duration
	store   *storage.Store
	log     *zap.Logger

	// pending maps path to the time of its last observed write.
	pending map[string]time.Time
}

// Option configures the agent.
type Option func(*Agent)

// WithPattern overrides the file name glob.
func WithPattern(pattern string) Option {
	return func(a *Agent) { a.pattern = pattern }
}

// WithSettle overrides the quiet interval before ingestion.
func WithSettle(d time.Duration) Option {
	return func(a *Agent) { a.settle = d }
}

// New creates an agent watching dir and writing into store.
func New(dir string, store *storage.Store, logger *zap.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		dir:     dir,
		pattern: DefaultPattern,
		settle:  DefaultSettle,
		store:   store,
		log:     logger,
		pending: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run watches the directory until the context is cancelled. Files already
// present at startup are queued immediately.
func (a *Agent) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(a.dir); err != nil {
		return fmt.Errorf("watching %s: %w", a.dir, err)
	}

	if err := a.sweepExisting(); err != nil {
		return err
	}

	ticker := time.NewTicker(a.settle / 2)
	defer ticker.Stop()

	a.log.Info("watching for journal files",
		zap.String("dir", a.dir),
		zap.String("pattern", a.pattern),
		zap.Duration("settle", a.settle))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if a.matches(ev.Name) {
				a.pending[ev.Name] = time.Now()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watcher error", zap.Error(err))
		case <-ticker.C:
			a.ingestSettled(ctx)
		}
	}
}

// sweepExisting queues files already present in the directory.
func (a *Agent) sweepExisting() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", a.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(a.dir, e.Name())
		if a.matches(path) {
			a.pending[path] = time.Time{}
		}
	}
	return nil
}

func (a *Agent) matches(path string) bool {
	ok, err := doublestar.Match(a.pattern, filepath.Base(path))
	return err == nil && ok
}

// ingestSettled processes every pending file that has been quiet long
// enough.
func (a *Agent) ingestSettled(ctx context.Context) {
	now := time.Now()
	for path, lastWrite := range a.pending {
		if now.Sub(lastWrite) < a.settle {
			continue
		}
		delete(a.pending, path)
		if err := a.ingest(ctx, path); err != nil {
			a.log.Error("ingest failed", zap.String("file", path), zap.Error(err))
		}
	}
}

// ingest analyzes one file and persists the result, skipping files whose
// path and size were already seen.
func (a *Agent) ingest(ctx context.Context, path string) error {
	result, err := pipeline.Run(ctx, path, pipeline.WithLogger(a.log))
	if err != nil {
		return err
	}

	fileID := storage.FileID(result.Metadata)
	seen, err := a.store.Exists(ctx, fileID)
	if err != nil {
		return err
	}
	if seen {
		a.log.Debug("already ingested, skipping",
			zap.String("file", path), zap.String("file_id", fileID))
		return nil
	}

	if _, err := a.store.SaveResult(ctx, result); err != nil {
		return err
	}
	a.log.Info("journal file ingested",
		zap.String("file", path),
		zap.String("file_id", fileID),
		zap.String("lane", result.Metadata.Lane))
	return nil
}
