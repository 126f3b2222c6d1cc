// Package batch drives the distance pipeline over an input file in
// fixed-size batches, checkpointing each batch before advancing so an
// interrupted run can resume without recomputing finished work.
package batch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ddtlab/distance-cli/internal/model"
)

// CheckpointStore is the slice of the session store the processor needs.
type CheckpointStore interface {
	Create(ctx context.Context, sessionID string, totalRows, batchSize int) (*model.SessionManifest, error)
	LoadManifest(ctx context.Context, sessionID string) (*model.SessionManifest, error)
	CommitBatch(ctx context.Context, rec model.BatchRecord) error
	LoadPartialResults(ctx context.Context, sessionID string) ([]model.BatchRecord, error)
}

// RowValidator produces the reconciled result for one address pair.
type RowValidator interface {
	Validate(ctx context.Context, pair model.AddressPair) model.RowResult
}

// Config tunes batch partitioning and in-batch parallelism.
type Config struct {
	Size        int
	Concurrency int
}

// DefaultConfig returns the standard batch shape.
func DefaultConfig() Config {
	return Config{Size: 50, Concurrency: 5}
}

// ProgressFunc is called after each durable batch with the number of
// completed rows and the total. May be nil.
type ProgressFunc func(completed, total int)

// Processor runs address pairs through the validator batch by batch.
type Processor struct {
	store     CheckpointStore
	validator RowValidator
	cfg       Config
}

// NewProcessor creates a Processor. Non-positive config values fall back
// to the defaults.
func NewProcessor(store CheckpointStore, validator RowValidator, cfg Config) *Processor {
	def := DefaultConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Processor{store: store, validator: validator, cfg: cfg}
}

// Run processes pairs under the given session, resuming from the last
// checkpoint if the session already exists. Batches run strictly in input
// order; rows within a batch run concurrently. Cancellation is honored at
// batch boundaries, so the last committed batch stays durable.
func (p *Processor) Run(ctx context.Context, sessionID string, pairs []model.AddressPair, progress ProgressFunc) ([]model.RowResult, error) {
	manifest, err := p.store.LoadManifest(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		manifest, err = p.store.Create(ctx, sessionID, len(pairs), p.cfg.Size)
		if err != nil {
			return nil, err
		}
		zap.L().Info("session created",
			zap.String("session", sessionID),
			zap.Int("rows", len(pairs)),
			zap.Int("batches", manifest.TotalBatches()),
		)
	} else {
		if manifest.TotalRows != len(pairs) || manifest.BatchSize != p.cfg.Size {
			return nil, eris.Errorf(
				"batch: session %s was created for %d rows in batches of %d, got %d rows in batches of %d",
				sessionID, manifest.TotalRows, manifest.BatchSize, len(pairs), p.cfg.Size,
			)
		}
		zap.L().Info("session resumed",
			zap.String("session", sessionID),
			zap.Int("completed_batches", len(manifest.Completed)),
			zap.Int("total_batches", manifest.TotalBatches()),
		)
	}

	done := make(map[int][]model.RowResult, len(manifest.Completed))
	if len(manifest.Completed) > 0 {
		records, err := p.store.LoadPartialResults(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			done[rec.Index] = rec.Rows
		}
	}

	total := len(pairs)
	results := make([]model.RowResult, 0, total)

	for idx := 0; idx*p.cfg.Size < total; idx++ {
		start := idx * p.cfg.Size
		end := min(start+p.cfg.Size, total)

		if rows, ok := done[idx]; ok {
			results = append(results, rows...)
			continue
		}

		// Cancellation takes effect between batches only.
		if err := ctx.Err(); err != nil {
			return results, eris.Wrapf(err, "batch: run aborted before batch %d (%d rows durable)", idx, len(results))
		}

		rows, err := p.runBatch(ctx, pairs[start:end])
		if err != nil {
			return results, err
		}

		// A finished batch commits even if cancellation arrived while it
		// was running; the run then stops at the next boundary check.
		rec := model.BatchRecord{SessionID: sessionID, Index: idx, Rows: rows}
		if err := p.store.CommitBatch(context.WithoutCancel(ctx), rec); err != nil {
			return results, eris.Wrapf(err, "batch: checkpoint batch %d failed (%d rows durable)", idx, len(results))
		}
		results = append(results, rows...)

		zap.L().Info("batch completed",
			zap.String("session", sessionID),
			zap.Int("batch", idx),
			zap.Int("rows_done", len(results)),
			zap.Int("rows_total", total),
		)
		if progress != nil {
			progress(len(results), total)
		}
	}

	return results, nil
}

// runBatch validates one batch's rows with bounded concurrency, preserving
// input order in the returned slice.
func (p *Processor) runBatch(ctx context.Context, pairs []model.AddressPair) ([]model.RowResult, error) {
	rows := make([]model.RowResult, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, pair := range pairs {
		g.Go(func() error {
			rows[i] = p.validator.Validate(gctx, pair)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch: run batch")
	}
	return rows, nil
}
