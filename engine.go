package medley

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BuildReport summarizes one BuildAllIndexes call: the counts a caller
// needs to sanity-check a build. It carries no warnings.
type BuildReport struct {
	RecordsHashed       int
	FingerprintsEmitted int
	DistinctMatchingIDs int
	Duration            time.Duration
}

// Engine wires DirectiveParser/RecordHasher/ClusterBuilder/IndexWriter/
// QueryEngine into the Caller API (spec §6). It holds no per-build state
// between calls — every method is safe to call concurrently for
// different index paths.
type Engine struct {
	opener StoreOpener
	cfg    EngineConfig
	log    *zap.Logger
}

// NewEngine constructs an Engine. A nil logger falls back to zap.NewNop.
func NewEngine(opener StoreOpener, cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{opener: opener, cfg: cfg, log: logger}
}

// BuildAllIndexes implements the build half of the Caller API: hash every
// record under plan, cluster the resulting fingerprints, and publish all
// four indexes at paths.
func (e *Engine) BuildAllIndexes(ctx context.Context, records iter.Seq[SourceRecord], plan Plan, maxEditDistance int, paths IndexPaths) (BuildReport, error) {
	start := time.Now()

	lookups, recordCount, err := e.hashAll(ctx, records, plan, maxEditDistance)
	if err != nil {
		return BuildReport{}, err
	}
	e.log.Info("hashed records", zap.Int("records", recordCount), zap.Int("lookups", len(lookups)))

	matches, err := BuildClusters(lookups, e.cfg.ClusterLocalThreshold)
	if err != nil {
		return BuildReport{}, fmt.Errorf("medley: clustering failed: %w", err)
	}

	distinct := make(map[MatchingID]struct{})
	for _, m := range matches {
		distinct[m.MatchingID] = struct{}{}
	}
	clusterSizeGauge.Set(float64(len(distinct)))
	clustersBuiltTotal.Inc()

	writer := NewIndexWriter(e.opener)
	if err := writer.PublishAll(ctx, paths, lookups, matches); err != nil {
		e.log.Error("publish failed", zap.Error(err))
		return BuildReport{}, err
	}

	report := BuildReport{
		RecordsHashed:       recordCount,
		FingerprintsEmitted: len(lookups),
		DistinctMatchingIDs: len(distinct),
		Duration:            time.Since(start),
	}
	buildDurationSeconds.Observe(report.Duration.Seconds())
	e.log.Info("build complete",
		zap.Int("recordsHashed", report.RecordsHashed),
		zap.Int("fingerprintsEmitted", report.FingerprintsEmitted),
		zap.Int("distinctMatchingIds", report.DistinctMatchingIDs),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// hashAll fans C4 out over a fixed worker pool (EngineConfig.Workers),
// checking ctx between batches — the in-process analogue of the spec's
// "suspend at shuffle boundaries" cancellation model.
func (e *Engine) hashAll(ctx context.Context, records iter.Seq[SourceRecord], plan Plan, maxEditDistance int) ([]LookupPair, int, error) {
	const batchSize = 256

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var batches [][]SourceRecord
	batch := make([]SourceRecord, 0, batchSize)
	recordCount := 0
	for r := range records {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		batch = append(batch, r)
		recordCount++
		if len(batch) == batchSize {
			batches = append(batches, batch)
			batch = make([]SourceRecord, 0, batchSize)
		}
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}

	jobs := make(chan []SourceRecord)
	results := make(chan []LookupPair, len(batches))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for b := range jobs {
				var out []LookupPair
				for _, r := range b {
					out = append(out, HashRecord(r, plan, maxEditDistance)...)
				}
				results <- out
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, b := range batches {
			if ctx.Err() != nil {
				return
			}
			jobs <- b
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	seen := make(map[Hash]map[ID]struct{})
	var collected []LookupPair
	for out := range results {
		for _, lp := range out {
			if seen[lp.Hash] == nil {
				seen[lp.Hash] = make(map[ID]struct{})
			}
			if _, dup := seen[lp.Hash][lp.ID]; dup {
				continue
			}
			seen[lp.Hash][lp.ID] = struct{}{}
			collected = append(collected, lp)
		}
	}

	if ctx.Err() != nil {
		return nil, 0, ctx.Err()
	}

	fingerprintsEmittedTotal.Add(float64(len(collected)))
	recordsHashedTotal.Add(float64(recordCount))
	return collected, recordCount, nil
}

// FindRelatedByIds implements Q1 of the Caller API.
func (e *Engine) FindRelatedByIds(ctx context.Context, ids []ID, paths IndexPaths) (iter.Seq[RelatedByID], error) {
	qe, err := NewQueryEngine(e.opener, e.cfg.QueryCacheSize, e.cfg.FanoutLimit)
	if err != nil {
		return nil, err
	}
	rows, report, err := qe.FindRelatedByIds(ctx, ids, paths)
	if err != nil {
		return nil, err
	}
	recordLookupOverflows(report.Overflows)
	return slices.Values(rows), nil
}

// FindRelatedByExample implements Q2 of the Caller API.
func (e *Engine) FindRelatedByExample(ctx context.Context, examples []SourceRecord, plan Plan, editDistance int, paths IndexPaths) (iter.Seq[ID], error) {
	qe, err := NewQueryEngine(e.opener, e.cfg.QueryCacheSize, e.cfg.FanoutLimit)
	if err != nil {
		return nil, err
	}
	ids, report, err := qe.FindRelatedByExample(ctx, examples, plan, editDistance, paths)
	if err != nil {
		return nil, err
	}
	recordLookupOverflows(report.Overflows)
	return slices.Values(ids), nil
}
