package warehouse

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Recalculation persists only when the history-derived cost moves by more
// than this absolute amount, to avoid churning versions over float noise.
const recalcPersistThreshold = 0.01

// Orchestrator is the facade over the sync engine: purchase apply/reverse,
// history-based recalculation and repair, audits, combined reports and
// aggregate statistics. One instance serves one owner.
type Orchestrator struct {
	store     Store
	sync      *Synchronizer
	validator *Validator
	events    EventSink
	metrics   Metrics
	cache     *ReportCache
	ownerID   string
	now       func() time.Time
	reports   singleflight.Group
}

// Options groups optional orchestrator collaborators.
type Options struct {
	Events  EventSink
	Metrics Metrics
	Cache   *ReportCache
}

// NewOrchestrator builds the facade scoped to one owner.
func NewOrchestrator(store Store, ownerID string, opts Options) *Orchestrator {
	events := opts.Events
	if events == nil {
		events = NopSink{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Orchestrator{
		store:     store,
		sync:      NewSynchronizer(store, ownerID, events, metrics),
		validator: NewValidator(store, ownerID),
		events:    events,
		metrics:   metrics,
		cache:     opts.Cache,
		ownerID:   ownerID,
		now:       time.Now,
	}
}

// ApplyPurchase posts a completed purchase against inventory.
func (o *Orchestrator) ApplyPurchase(ctx context.Context, p Purchase) ([]SyncResult, error) {
	results, err := o.sync.Apply(ctx, p)
	if err != nil {
		return nil, err
	}
	o.invalidateReports(ctx)
	return results, nil
}

// ReversePurchase undoes a cancelled purchase's effect on inventory.
func (o *Orchestrator) ReversePurchase(ctx context.Context, p Purchase) ([]SyncResult, error) {
	results, err := o.sync.Reverse(ctx, p)
	if err != nil {
		return nil, err
	}
	o.invalidateReports(ctx)
	return results, nil
}

// RecalculateAllWAC recomputes average costs purely from completed-purchase
// history, ignoring the incremental path entirely, and persists values that
// moved by more than recalcPersistThreshold. Persistence is guarded by
// optimistic concurrency: a version mismatch aborts with ErrVersionConflict
// and the caller is expected to retry.
func (o *Orchestrator) RecalculateAllWAC(ctx context.Context, opts RecalcOptions) ([]SyncResult, error) {
	if o.ownerID == "" {
		return nil, ErrOwnerRequired
	}

	var materials []Material
	if opts.ItemID != "" {
		m, err := o.store.GetMaterial(ctx, o.ownerID, opts.ItemID)
		if err != nil {
			return nil, fmt.Errorf("recalculate %s: %w", opts.ItemID, err)
		}
		materials = []Material{m}
	} else {
		var err error
		materials, err = o.store.ListMaterials(ctx, o.ownerID)
		if err != nil {
			return nil, fmt.Errorf("recalculate: list materials: %w", err)
		}
	}

	purchases, err := o.store.ListCompletedPurchases(ctx, o.ownerID)
	if err != nil {
		return nil, fmt.Errorf("recalculate: list purchases: %w", err)
	}

	results := make([]SyncResult, 0, len(materials))
	persisted := false
	for _, m := range materials {
		res, wrote, err := o.recalculateOne(ctx, m, purchases, opts.DryRun)
		if err != nil {
			return results, err
		}
		persisted = persisted || wrote
		results = append(results, res)
	}
	if persisted {
		o.invalidateReports(ctx)
	}
	return results, nil
}

func (o *Orchestrator) recalculateOne(ctx context.Context, m Material, purchases []Purchase, dryRun bool) (SyncResult, bool, error) {
	res := SyncResult{
		MaterialID: m.ID,
		Name:       m.Name,
		OldWAC:     m.WAC,
		NewWAC:     m.WAC,
		OldStock:   m.Stock,
		NewStock:   m.Stock,
	}

	totalQty, totalValue := SumPurchaseHistory(m, purchases)
	if totalQty <= 0 {
		res.Status = SyncStatusSkipped
		res.Message = "no completed purchase history"
		return res, false, nil
	}

	recomputed := totalValue / totalQty
	if math.IsNaN(recomputed) || math.IsInf(recomputed, 0) || recomputed < 0 {
		res.Status = SyncStatusError
		res.Message = fmt.Sprintf("history yields unusable cost %v", recomputed)
		return res, false, nil
	}

	res.NewWAC = recomputed
	if math.Abs(recomputed-m.WAC) <= recalcPersistThreshold {
		res.Status = SyncStatusSkipped
		res.Message = "recorded cost already matches history"
		return res, false, nil
	}

	if dryRun {
		res.Status = SyncStatusSuccess
		res.Message = "dry run, not persisted"
		return res, false, nil
	}

	if err := o.store.UpdateMaterialWAC(ctx, o.ownerID, m.ID, recomputed, m.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			o.metrics.VersionConflict()
			o.events.Warn(ctx, Event{
				Op:         "recalculate",
				MaterialID: m.ID,
				Material:   m.Name,
				Message:    "concurrent modification, aborting without overwrite",
			})
			return res, false, fmt.Errorf("recalculate %s: %w", m.ID, ErrVersionConflict)
		}
		res.Status = SyncStatusError
		res.Message = err.Error()
		return res, false, nil
	}

	o.events.Info(ctx, Event{
		Op:         "recalculate",
		MaterialID: m.ID,
		Material:   m.Name,
		Message:    fmt.Sprintf("cost corrected %.4f -> %.4f from %d history units", m.WAC, recomputed, int64(totalQty)),
	})
	res.Status = SyncStatusSuccess
	return res, true, nil
}

// FixWarehouseItem repairs a single material from purchase history.
func (o *Orchestrator) FixWarehouseItem(ctx context.Context, itemID string) (SyncResult, error) {
	results, err := o.RecalculateAllWAC(ctx, RecalcOptions{ItemID: itemID})
	if err != nil {
		return SyncResult{}, err
	}
	if len(results) == 0 {
		return SyncResult{}, ErrMaterialNotFound
	}
	return results[0], nil
}

// ValidateIntegrity runs the read-only integrity pass.
func (o *Orchestrator) ValidateIntegrity(ctx context.Context) (IntegrityReport, error) {
	return o.validator.CheckIntegrity(ctx)
}

// CheckConsistency runs the read-only drift audit.
func (o *Orchestrator) CheckConsistency(ctx context.Context) (ConsistencyReport, error) {
	report, err := o.validator.CheckConsistency(ctx)
	if err != nil {
		return ConsistencyReport{}, err
	}
	for _, issue := range report.Issues {
		o.metrics.DriftDetected(issue.Severity)
	}
	return report, nil
}

const reportCacheKind = "sync-report"

// GenerateSyncReport runs recalculation, the consistency audit and the
// integrity audit concurrently and combines them. Identical concurrent
// requests collapse into one build, and results are cached until the next
// inventory mutation.
func (o *Orchestrator) GenerateSyncReport(ctx context.Context) (SyncReport, error) {
	var cached SyncReport
	if err := o.cache.Get(ctx, o.ownerID, reportCacheKind, &cached); err == nil {
		return cached, nil
	}

	built, err, _ := o.reports.Do(o.ownerID, func() (any, error) {
		return o.buildSyncReport(ctx)
	})
	if err != nil {
		return SyncReport{}, err
	}
	report := built.(SyncReport)

	if err := o.cache.Set(ctx, o.ownerID, reportCacheKind, report); err != nil {
		o.events.Warn(ctx, Event{Op: "report", Message: "cache write failed", Warnings: []string{err.Error()}})
	}
	return report, nil
}

func (o *Orchestrator) buildSyncReport(ctx context.Context) (SyncReport, error) {
	report := SyncReport{GeneratedAt: o.now(), OwnerID: o.ownerID}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, err := o.RecalculateAllWAC(ctx, RecalcOptions{})
		if err != nil {
			return err
		}
		report.Results = results
		return nil
	})
	g.Go(func() error {
		consistency, err := o.CheckConsistency(ctx)
		if err != nil {
			return err
		}
		report.Consistency = consistency
		return nil
	})
	g.Go(func() error {
		integrity, err := o.ValidateIntegrity(ctx)
		if err != nil {
			return err
		}
		report.Integrity = integrity
		return nil
	})
	if err := g.Wait(); err != nil {
		return SyncReport{}, err
	}
	return report, nil
}

const statsCacheKind = "stats"

// WarehouseStats aggregates dashboard counters over the owner's materials.
func (o *Orchestrator) WarehouseStats(ctx context.Context) (Stats, error) {
	if o.ownerID == "" {
		return Stats{}, ErrOwnerRequired
	}

	var cached Stats
	if err := o.cache.Get(ctx, o.ownerID, statsCacheKind, &cached); err == nil {
		return cached, nil
	}

	materials, err := o.store.ListMaterials(ctx, o.ownerID)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: list materials: %w", err)
	}

	stats := Stats{TotalItems: len(materials)}
	for _, m := range materials {
		if m.Stock < 0 {
			stats.NegativeStock++
		}
		if m.MinStock > 0 && m.Stock <= m.MinStock {
			stats.LowStock++
		}
		if m.WAC <= 0 {
			stats.MissingWAC++
		}
		if value := m.WAC * m.Stock; value > 0 {
			stats.TotalValue += value
		}
	}

	if err := o.cache.Set(ctx, o.ownerID, statsCacheKind, stats); err != nil {
		o.events.Warn(ctx, Event{Op: "stats", Message: "cache write failed", Warnings: []string{err.Error()}})
	}
	return stats, nil
}

// LowStockItems lists materials at or below their minimum stock threshold.
func (o *Orchestrator) LowStockItems(ctx context.Context) ([]Material, error) {
	if o.ownerID == "" {
		return nil, ErrOwnerRequired
	}
	materials, err := o.store.ListMaterials(ctx, o.ownerID)
	if err != nil {
		return nil, fmt.Errorf("low stock: list materials: %w", err)
	}
	var low []Material
	for _, m := range materials {
		if m.MinStock > 0 && m.Stock <= m.MinStock {
			low = append(low, m)
		}
	}
	return low, nil
}

func (o *Orchestrator) invalidateReports(ctx context.Context) {
	if err := o.cache.Bump(ctx); err != nil {
		o.events.Warn(ctx, Event{Op: "cache", Message: "invalidate failed", Warnings: []string{err.Error()}})
	}
}
