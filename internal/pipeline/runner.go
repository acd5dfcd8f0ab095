// Package pipeline runs the batch dilepton selection: it fans input files
// out over a bounded worker pool, streams events through the three channel
// selectors, and collects histograms and yield counters into a single
// result set with snapshot and CSV outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/checkpoint"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/event"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/histogram"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/selection"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/source"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/internal/yield"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/config"
	pkgerrors "github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/errors"
	"github.com/cms-opendata-validation/2011-doubleelectron-doublemu-mueg-ttbar/pkg/metrics"
)

// Runner executes one batch selection job.
type Runner struct {
	cfg         config.JobConfig
	logger      *slog.Logger
	metrics     *metrics.Metrics
	checkpoints *checkpoint.Store
	publisher   PairPublisher
}

// Option configures optional Runner collaborators.
type Option func(*Runner)

// WithCheckpoints enables skip-and-resume over already-processed files.
func WithCheckpoints(store *checkpoint.Store) Option {
	return func(r *Runner) { r.checkpoints = store }
}

// WithPublisher enables publishing every selected pair downstream.
func WithPublisher(p PairPublisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// NewRunner creates a Runner for the given job configuration.
func NewRunner(cfg config.JobConfig, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		logger:  logger.With("component", "pipeline"),
		metrics: m,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Summary reports what a completed job produced.
type Summary struct {
	Files        int         `json:"files"`
	FilesSkipped int         `json:"files_skipped"`
	Stats        yield.Stats `json:"stats"`
	SnapshotFile string      `json:"snapshot_file"`
}

// Run processes every file matched by the job's input globs and writes the
// histogram snapshot and CSV exports into the output directory.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	files, err := expandGlobs(r.cfg.InputGlobs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: globs %v", pkgerrors.ErrNoInput, r.cfg.InputGlobs)
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	r.logger.Info("starting selection job",
		"files", len(files),
		"workers", workers,
		"output_dir", r.cfg.OutputDir,
	)

	book := histogram.NewBook()
	agg := yield.NewAggregator()
	var mu sync.Mutex
	var skipped int

	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			if r.skipCheckpointed(gctx, path) {
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			localBook, localAgg, err := r.processFile(gctx, path)
			if err != nil {
				r.metrics.FilesProcessed.WithLabelValues("error").Inc()
				return fmt.Errorf("processing %s: %w", path, err)
			}

			mu.Lock()
			mergeErr := book.Merge(localBook)
			agg.Merge(localAgg)
			mu.Unlock()
			if mergeErr != nil {
				return mergeErr
			}

			r.metrics.FilesProcessed.WithLabelValues("ok").Inc()
			r.markDone(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshotName, err := r.writeOutputs(book)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Files:        len(files),
		FilesSkipped: skipped,
		Stats:        agg.Stats(),
		SnapshotFile: snapshotName,
	}
	r.logger.Info("selection job finished",
		"files", summary.Files,
		"files_skipped", summary.FilesSkipped,
		"events_read", summary.Stats.EventsRead,
		"events_invalid", summary.Stats.EventsInvalid,
		"snapshot", summary.SnapshotFile,
	)
	return summary, nil
}

// skipCheckpointed reports whether the file was already processed by an
// earlier run. Checkpoint read errors degrade to reprocessing the file.
func (r *Runner) skipCheckpointed(ctx context.Context, path string) bool {
	if r.checkpoints == nil || !r.cfg.Checkpoints {
		return false
	}
	done, err := r.checkpoints.IsDone(ctx, path)
	if err != nil {
		r.logger.Warn("checkpoint lookup failed, reprocessing file", "path", path, "error", err)
		return false
	}
	if done {
		r.logger.Info("skipping checkpointed file", "path", path)
		r.metrics.CheckpointSkips.Inc()
		r.metrics.FilesProcessed.WithLabelValues("skipped").Inc()
	}
	return done
}

func (r *Runner) markDone(ctx context.Context, path string) {
	if r.checkpoints == nil || !r.cfg.Checkpoints {
		return
	}
	if err := r.checkpoints.MarkDone(ctx, path); err != nil {
		r.logger.Warn("failed to checkpoint file", "path", path, "error", err)
	}
}

// processFile streams one event file into a private book and aggregator.
// Invalid records are counted and skipped; I/O errors abort the file.
func (r *Runner) processFile(ctx context.Context, path string) (*histogram.Book, *yield.Aggregator, error) {
	src, err := source.OpenFile(path, r.cfg.MaxLeptons)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	book := histogram.NewBook()
	agg := yield.NewAggregator()
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return book, agg, nil
		}
		if err != nil {
			if errors.Is(err, pkgerrors.ErrInvalidRecord) {
				r.logger.Warn("skipping invalid record", "error", err)
				r.metrics.EventsReadTotal.WithLabelValues("file").Inc()
				r.metrics.EventsInvalidTotal.Inc()
				agg.RecordEvent(false)
				continue
			}
			return nil, nil, err
		}
		r.metrics.EventsReadTotal.WithLabelValues("file").Inc()
		agg.RecordEvent(true)
		r.selectEvent(ctx, ev, book, agg)
	}
}

// selectEvent runs all three channel selectors over one event and records
// any selected pairs. Publish failures are logged, never fatal.
func (r *Runner) selectEvent(ctx context.Context, ev *event.Event, book *histogram.Book, agg *yield.Aggregator) {
	r.metrics.EventsInFlight.Inc()
	defer r.metrics.EventsInFlight.Dec()

	book.FillEvent(ev)
	r.metrics.LeptonMultiplicity.WithLabelValues("electron").Observe(float64(len(ev.Electrons)))
	r.metrics.LeptonMultiplicity.WithLabelValues("muon").Observe(float64(len(ev.Muons)))

	start := time.Now()
	for _, ch := range selection.Channels {
		best := selection.NewResult()
		ch.Select(ev, best)
		if !best.Valid() {
			continue
		}
		book.FillPair(ch, best)
		agg.RecordSelection(ch, best.SumPt)
		r.metrics.PairsSelectedTotal.WithLabelValues(string(ch)).Inc()
		r.publishPair(ctx, ev, ch, best)
	}
	r.metrics.SelectionDuration.Observe(time.Since(start).Seconds())
}

func (r *Runner) publishPair(ctx context.Context, ev *event.Event, ch selection.Channel, best *selection.Result) {
	if r.publisher == nil || !r.cfg.PublishPairs {
		return
	}
	if err := r.publisher.PublishPair(ctx, NewPairRecord(ev, ch, best)); err != nil {
		r.logger.Warn("failed to publish pair",
			"run", ev.Run,
			"event", ev.Number,
			"channel", ch,
			"error", err,
		)
		r.metrics.PairsPublished.WithLabelValues("error").Inc()
		return
	}
	r.metrics.PairsPublished.WithLabelValues("ok").Inc()
}

func (r *Runner) writeOutputs(book *histogram.Book) (string, error) {
	name, err := histogram.WriteSnapshot(r.cfg.OutputDir, book)
	if err != nil {
		r.metrics.SnapshotsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("writing histogram snapshot: %w", err)
	}
	r.metrics.SnapshotsTotal.WithLabelValues("ok").Inc()

	if err := book.ExportCSV(filepath.Join(r.cfg.OutputDir, "csv")); err != nil {
		return "", fmt.Errorf("exporting histogram CSVs: %w", err)
	}
	return name, nil
}

// expandGlobs resolves the job's input globs to a deduplicated, sorted file
// list. Paths without glob metacharacters pass through filepath.Glob intact.
func expandGlobs(globs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range globs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad input glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}
