package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gudang-ops/gudang-ops/internal/jobs"
	"github.com/gudang-ops/gudang-ops/internal/warehouse"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OwnerLister enumerates owners the nightly jobs fan out over.
type OwnerLister interface {
	ListOwners(ctx context.Context) ([]string, error)
}

// SyncReportJob builds warehouse sync reports in the background.
type SyncReportJob struct {
	engines *warehouse.Engines
	owners  OwnerLister
	logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSyncReportJob constructs the job.
func NewSyncReportJob(engines *warehouse.Engines, owners OwnerLister, logger *slog.Logger) *SyncReportJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncReportJob{engines: engines, owners: owners, logger: logger}
}

func (j *SyncReportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// Handle processes TaskWarehouseSyncReport tasks. Failures per owner are
// logged and the remaining owners still run; only a fan-out failure retries
// the whole task.
func (j *SyncReportJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SyncReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskWarehouseSyncReport)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	owners := []string{payload.OwnerID}
	if payload.OwnerID == "" {
		var err error
		owners, err = j.owners.ListOwners(ctx)
		if err != nil {
			resultErr = err
			return resultErr
		}
	}

	for _, owner := range owners {
		report, err := j.engines.For(owner).GenerateSyncReport(ctx)
		if err != nil {
			j.logger.Error("sync report", slog.String("owner_id", owner), slog.Any("error", err))
			continue
		}
		j.logger.Info("sync report built",
			slog.String("owner_id", owner),
			slog.Int("recalculated", len(report.Results)),
			slog.Int("consistency_issues", len(report.Consistency.Issues)),
			slog.Int("integrity_issues", len(report.Integrity.Issues)),
		)
	}
	return nil
}

// RecalculateJob recomputes average costs from history on demand.
type RecalculateJob struct {
	engines *warehouse.Engines
	logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRecalculateJob constructs the job.
func NewRecalculateJob(engines *warehouse.Engines, logger *slog.Logger) *RecalculateJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecalculateJob{engines: engines, logger: logger}
}

func (j *RecalculateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// Handle processes TaskWarehouseRecalculate tasks. Version conflicts are
// returned as errors so asynq backs off and runs the task again.
func (j *RecalculateJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RecalculatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OwnerID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskWarehouseRecalculate)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	results, err := j.engines.For(payload.OwnerID).RecalculateAllWAC(ctx, warehouse.RecalcOptions{ItemID: payload.ItemID})
	if err != nil {
		if errors.Is(err, warehouse.ErrVersionConflict) {
			j.logger.Warn("recalculate contention, will retry", slog.String("owner_id", payload.OwnerID))
		}
		resultErr = err
		return resultErr
	}

	changed := 0
	for _, res := range results {
		if res.Status == warehouse.SyncStatusSuccess {
			changed++
		}
	}
	j.logger.Info("recalculate finished",
		slog.String("owner_id", payload.OwnerID),
		slog.Int("materials", len(results)),
		slog.Int("corrected", changed),
	)
	return nil
}
