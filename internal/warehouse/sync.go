package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Synchronizer posts a purchase's effect on inventory (apply) or undoes it
// (reverse). Line items are processed sequentially because later items may
// reference a material an earlier item in the same purchase just touched.
// There is no cross-item transaction: a failure on one line item is recorded
// and the remaining items still proceed.
type Synchronizer struct {
	store    Store
	resolver *Resolver
	events   EventSink
	metrics  Metrics
	ownerID  string
	now      func() time.Time
}

// NewSynchronizer builds a Synchronizer scoped to one owner. Passing a nil
// sink or metrics disables the respective output.
func NewSynchronizer(store Store, ownerID string, events EventSink, metrics Metrics) *Synchronizer {
	if events == nil {
		events = NopSink{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Synchronizer{
		store:    store,
		resolver: NewResolver(store, ownerID),
		events:   events,
		metrics:  metrics,
		ownerID:  ownerID,
		now:      time.Now,
	}
}

// Apply posts a completed purchase against inventory. One result per line
// item; errors and skips are reported in the results, not returned, so a bad
// line never blocks the rest of the purchase.
func (s *Synchronizer) Apply(ctx context.Context, p Purchase) ([]SyncResult, error) {
	return s.run(ctx, p, false)
}

// Reverse undoes a previously applied purchase with negated quantities. Line
// items whose material no longer exists are treated as already reconciled
// and skipped.
func (s *Synchronizer) Reverse(ctx context.Context, p Purchase) ([]SyncResult, error) {
	return s.run(ctx, p, true)
}

func (s *Synchronizer) run(ctx context.Context, p Purchase, reverse bool) ([]SyncResult, error) {
	if s.ownerID == "" {
		return nil, ErrOwnerRequired
	}
	op := "apply"
	if reverse {
		op = "reverse"
	}

	results := make([]SyncResult, 0, len(p.Items))
	for _, raw := range p.Items {
		item := raw.Canonical()
		res := s.processItem(ctx, op, p, item, reverse)
		s.metrics.LineProcessed(op, res.Status)
		results = append(results, res)
	}
	return results, nil
}

func (s *Synchronizer) processItem(ctx context.Context, op string, p Purchase, item LineItem, reverse bool) SyncResult {
	if item.Qty <= 0 || item.Name == "" {
		s.events.Warn(ctx, Event{
			Op:         op,
			PurchaseID: p.ID,
			Material:   item.Name,
			Message:    "skipping line item with no usable quantity or name",
		})
		return SyncResult{Name: item.Name, Status: SyncStatusSkipped, Message: "invalid quantity or blank name"}
	}

	material, confidence, err := s.resolver.Resolve(ctx, item)
	if err != nil {
		s.events.Warn(ctx, Event{Op: op, PurchaseID: p.ID, Material: item.Name, Message: "resolve failed", Warnings: []string{err.Error()}})
		return SyncResult{Name: item.Name, Status: SyncStatusError, Message: err.Error()}
	}

	delta := item.Qty
	if reverse {
		delta = -item.Qty
	}

	if material == nil {
		if reverse {
			// Reversing a purchase for a material that no longer exists is
			// not an error; the books are already reconciled.
			s.events.Warn(ctx, Event{Op: op, PurchaseID: p.ID, Material: item.Name, Message: "material not found on reversal, no-op"})
			return SyncResult{Name: item.Name, Status: SyncStatusSkipped, Message: "material not found, nothing to reverse"}
		}
		return s.createMaterial(ctx, p, item)
	}

	calc := CalculateWAC(material.WAC, material.Stock, delta, item.UnitPrice)
	if ok, warnings := ValidateWACSanity(material.WAC, material.Stock, delta, item.UnitPrice, calc.NewWAC); !ok {
		calc.Warnings = append(calc.Warnings, warnings...)
	}
	if len(calc.Warnings) > 0 {
		s.events.Warn(ctx, Event{
			Op:         op,
			PurchaseID: p.ID,
			MaterialID: material.ID,
			Material:   material.Name,
			Message:    "average cost warnings",
			Warnings:   calc.Warnings,
		})
	}

	old := *material
	material.Stock = calc.NewStock
	material.WAC = calc.NewWAC
	if !reverse {
		if item.UnitPrice > 0 {
			material.UnitPrice = item.UnitPrice
		}
		material.Supplier = mergeSupplier(material.Supplier, p.Supplier)
	}
	material.UpdatedAt = s.now()

	if err := s.store.UpdateMaterial(ctx, *material); err != nil {
		s.events.Warn(ctx, Event{
			Op:         op,
			PurchaseID: p.ID,
			MaterialID: material.ID,
			Material:   material.Name,
			Message:    "persist failed, continuing with remaining items",
			Warnings:   []string{err.Error()},
		})
		return SyncResult{
			MaterialID: material.ID,
			Name:       material.Name,
			OldWAC:     old.WAC,
			OldStock:   old.Stock,
			Status:     SyncStatusError,
			Message:    err.Error(),
		}
	}

	s.events.Info(ctx, Event{
		Op:         op,
		PurchaseID: p.ID,
		MaterialID: material.ID,
		Material:   material.Name,
		Message:    fmt.Sprintf("%s via %s: stock %.4f -> %.4f, wac %.4f -> %.4f", op, confidence, old.Stock, calc.NewStock, old.WAC, calc.NewWAC),
	})
	return SyncResult{
		MaterialID: material.ID,
		Name:       material.Name,
		OldWAC:     old.WAC,
		NewWAC:     calc.NewWAC,
		OldStock:   old.Stock,
		NewStock:   calc.NewStock,
		Status:     SyncStatusSuccess,
	}
}

func (s *Synchronizer) createMaterial(ctx context.Context, p Purchase, item LineItem) SyncResult {
	now := s.now()
	m := Material{
		ID:        uuid.NewString(),
		OwnerID:   s.ownerID,
		Name:      item.Name,
		Unit:      item.Unit,
		Stock:     item.Qty,
		UnitPrice: item.UnitPrice,
		WAC:       item.UnitPrice,
		Supplier:  p.Supplier,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertMaterial(ctx, m); err != nil {
		s.events.Warn(ctx, Event{
			Op:         "apply",
			PurchaseID: p.ID,
			Material:   item.Name,
			Message:    "create material failed, continuing with remaining items",
			Warnings:   []string{err.Error()},
		})
		return SyncResult{Name: item.Name, Status: SyncStatusError, Message: err.Error()}
	}

	s.events.Info(ctx, Event{
		Op:         "apply",
		PurchaseID: p.ID,
		MaterialID: m.ID,
		Material:   m.Name,
		Message:    fmt.Sprintf("created material with stock %.4f at cost %.4f", m.Stock, m.WAC),
	})
	return SyncResult{
		MaterialID: m.ID,
		Name:       m.Name,
		NewWAC:     m.WAC,
		NewStock:   m.Stock,
		Status:     SyncStatusSuccess,
		Message:    "created",
	}
}

// mergeSupplier appends supplier to existing unless it is already present as
// a case-insensitive substring. Materials restocked from several suppliers
// accumulate them as a comma-separated label.
func mergeSupplier(existing, supplier string) string {
	supplier = strings.TrimSpace(supplier)
	if supplier == "" {
		return existing
	}
	if existing == "" {
		return supplier
	}
	if strings.Contains(strings.ToLower(existing), strings.ToLower(supplier)) {
		return existing
	}
	return existing + ", " + supplier
}
