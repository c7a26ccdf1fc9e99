// Package service wires the label curation and mask generation pipeline:
// catalog loading, assignment selection, parallel rasterization and result
// persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lacunalabels/maskgen/internal/adapters/mq/worker"
	"github.com/lacunalabels/maskgen/internal/adapters/raster"
	"github.com/lacunalabels/maskgen/internal/adapters/repository"
	"github.com/lacunalabels/maskgen/internal/config"
	"github.com/lacunalabels/maskgen/internal/domain/catalog"
	"github.com/lacunalabels/maskgen/internal/domain/model"
	"github.com/lacunalabels/maskgen/internal/domain/selection"
	"github.com/lacunalabels/maskgen/internal/domain/types"
	"github.com/lacunalabels/maskgen/pkg/logger"
	"github.com/lacunalabels/maskgen/pkg/metrics"
)

// Pipeline stages reported through Progress.
const (
	StageIdle      = "idle"
	StageLoad      = "load"
	StageSelect    = "select"
	StageRasterize = "rasterize"
	StageWrite     = "write"
	StageDone      = "done"
	StageFailed    = "failed"
)

// Service runs the pipeline once per Run call.
type Service struct {
	mu sync.Mutex

	cfg        *config.Config
	rasterizer worker.Rasterizer
	tracker    *types.Tracker
	newRunID   func() string

	logger logger.Logger
}

// New constructs a Service for cfg.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	s := &Service{
		cfg:      cfg,
		tracker:  &types.Tracker{},
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.tracker.SetStage(StageIdle)
	return s, nil
}

// Progress returns the current run progress. It is safe to call while Run
// is executing.
func (s *Service) Progress() types.Progress {
	return s.tracker.Snapshot()
}

// Run executes the pipeline. Input, policy and resource problems abort the
// run before any mask is written; per-assignment problems are reported in
// the result catalog and counted in the summary.
func (s *Service) Run(ctx context.Context) (types.RunSummary, error) {
	if !s.mu.TryLock() {
		return types.RunSummary{}, ErrBusy
	}
	defer s.mu.Unlock()

	start := time.Now()
	summary := types.RunSummary{RunID: s.newRunID()}
	log := s.logger

	err := s.run(ctx, &summary)
	summary.Duration = time.Since(start)
	metrics.UpdateRunDuration(summary.Duration.Seconds())
	if err != nil {
		s.tracker.SetStage(StageFailed)
		log.Error(ctx, "pipeline run failed",
			logger.String("run_id", summary.RunID),
			logger.Error(err),
		)
		return summary, err
	}

	s.tracker.SetStage(StageDone)
	s.writeMetricsSnapshot(ctx)
	log.Info(ctx, "pipeline run finished",
		logger.String("run_id", summary.RunID),
		logger.Int("selected", summary.Selected),
		logger.Int("ok", summary.OK),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", summary.Failed),
		logger.Duration("took", summary.Duration),
	)
	return summary, nil
}

func (s *Service) run(ctx context.Context, summary *types.RunSummary) error {
	cfg := s.cfg
	summary.ResultFile = cfg.Path(cfg.ResultFile)
	if cfg.ResultDB != "" {
		summary.ResultDB = cfg.Path(cfg.ResultDB)
	}

	if err := EnsureLayout(cfg.DataDir); err != nil {
		return err
	}

	s.tracker.SetStage(StageLoad)
	records, err := s.loadAssignments(ctx)
	if err != nil {
		return err
	}

	s.tracker.SetStage(StageSelect)
	labels, err := s.selectAssignments(ctx, records)
	if err != nil {
		return err
	}
	summary.Selected = labels.Len()
	rank := selection.Summarize(labels, cfg.RankField)
	summary.RankMean, summary.RankStdDev = rank.Mean, rank.StdDev
	if labels.Len() == 0 {
		return fmt.Errorf("%w: %w", ErrPolicy, worker.ErrEmptyCatalog)
	}

	r, err := s.buildRasterizer(ctx)
	if err != nil {
		return err
	}

	s.tracker.SetStage(StageRasterize)
	orch, err := worker.NewOrchestrator(cfg.WorkerCount,
		worker.WithQueueSize(cfg.QueueSize),
		worker.WithRunTaskTimeout(cfg.TaskTimeout),
		worker.WithProgressInterval(cfg.ProgressInterval),
		worker.WithProgress(s.tracker),
		worker.WithRunID(summary.RunID),
	)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "rasterizing selected assignments",
		logger.Int("records", labels.Len()),
		logger.Int("workers", orch.Concurrency()),
	)
	results, err := orch.Run(ctx, labels.Records(), r)
	if err != nil {
		return err
	}
	tally(summary, results)

	s.tracker.SetStage(StageWrite)
	if err := s.saveResults(ctx, summary, results); err != nil {
		return err
	}
	// Results of an interrupted run are kept, but the run still fails.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

// loadAssignments reads both catalogs, merges them and converts the rows.
func (s *Service) loadAssignments(ctx context.Context) ([]model.Assignment, error) {
	cfg := s.cfg
	annotations, err := repository.ReadTable(cfg.Path(cfg.CatalogFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	chips, err := repository.ReadTable(cfg.Path(cfg.ChipCatalogFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	metrics.UpdateCatalogRecords("raw", annotations.Len())

	merged, err := catalog.Merge(annotations, chips, cfg.DropColumns, cfg.KeepColumns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	metrics.UpdateCatalogRecords("merged", merged.Len())

	records, err := catalog.ToAssignments(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	s.logger.Info(ctx, "catalog loaded",
		logger.Int("annotations", annotations.Len()),
		logger.Int("chips", chips.Len()),
		logger.Int("merged", len(records)),
	)
	return records, nil
}

func (s *Service) selectAssignments(ctx context.Context, records []model.Assignment) (*selection.LabelCatalog, error) {
	cfg := s.cfg
	groups, err := cfg.ParsedGroups()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicy, err)
	}
	labels, err := selection.Select(records, groups, cfg.RankField, cfg.StatusExclusions,
		selection.WithAllowOverlap(cfg.AllowGroupOverlap),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicy, err)
	}

	st := labels.Stats()
	metrics.UpdateCatalogRecords("eligible", st.Input-st.Excluded)
	metrics.UpdateCatalogRecords("selected", st.Selected)
	metrics.RecordSelectionExcluded(st.Excluded)
	metrics.RecordSelectionDropped("ungrouped", st.Ungrouped)
	metrics.RecordSelectionDropped("reduced", st.Reduced)
	metrics.RecordSelectionDropped("duplicate_site", st.DuplicateSites)

	fields := []logger.Field{
		logger.Int("input", st.Input),
		logger.Int("excluded", st.Excluded),
		logger.Int("ungrouped", st.Ungrouped),
		logger.Int("reduced", st.Reduced),
		logger.Int("duplicate_sites", st.DuplicateSites),
		logger.Int("selected", st.Selected),
	}
	for i, g := range groups {
		fields = append(fields, logger.Int(g.String(), st.PerGroup[i]))
	}
	s.logger.Info(ctx, "assignments selected", fields...)
	return labels, nil
}

// buildRasterizer loads the field geometries and binds the three-class
// rasterizer unless one was injected.
func (s *Service) buildRasterizer(ctx context.Context) (worker.Rasterizer, error) {
	if s.rasterizer != nil {
		return s.rasterizer, nil
	}
	cfg := s.cfg
	path := cfg.Path(cfg.FieldsFile)
	fields, err := raster.LoadFields(path)
	if err != nil {
		if errors.Is(err, raster.ErrFieldsNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrResource, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	s.logger.Info(ctx, "field geometries loaded",
		logger.String("path", path),
		logger.Int("polygons", fields.Len()),
	)

	r, err := raster.NewThreeClass(fields, cfg.Path(cfg.ImagesDir), cfg.Path(cfg.MasksDir),
		raster.WithSourceColumn(cfg.SrcCol),
		raster.WithOverwrite(cfg.Overwrite),
		raster.WithVerbose(cfg.Verbose),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	return r, nil
}

func (s *Service) saveResults(ctx context.Context, summary *types.RunSummary, results []model.MaskResult) error {
	stores := []repository.Store{repository.NewCSVStore(summary.ResultFile)}
	if summary.ResultDB != "" {
		db, err := repository.OpenSQLite(summary.ResultDB)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOutput, err)
		}
		stores = append(stores, db)
	}

	// Results of an interrupted run are still persisted.
	saveCtx := context.WithoutCancel(ctx)
	var errs []error
	for _, st := range stores {
		if err := st.SaveResults(saveCtx, summary.RunID, results); err != nil {
			errs = append(errs, err)
		}
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	s.logger.Info(ctx, "results written",
		logger.String("csv", summary.ResultFile),
		logger.String("db", summary.ResultDB),
		logger.Int("rows", len(results)),
	)
	return nil
}

func (s *Service) writeMetricsSnapshot(ctx context.Context) {
	path := filepath.Join(s.cfg.DataDir, DirLogs, "metrics.prom")
	if err := metrics.WriteTextfile(path); err != nil {
		s.logger.Warn(ctx, "metrics snapshot not written", logger.Error(err))
	}
}

func tally(summary *types.RunSummary, results []model.MaskResult) {
	for i := range results {
		switch results[i].Outcome {
		case model.OutcomeOK:
			summary.OK++
		case model.OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
			summary.FailedSites = append(summary.FailedSites, results[i].Assignment.Name)
		}
	}
}
