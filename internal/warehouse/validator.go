package warehouse

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Drift thresholds for the consistency pass, relative to the recorded cost.
const (
	driftReportThreshold = 0.10
	driftMediumThreshold = 0.15
	driftHighThreshold   = 0.50
)

// Validator runs read-only audits over an owner's inventory and purchase
// history. Both passes produce structured reports and never mutate state.
type Validator struct {
	store   Store
	ownerID string
	now     func() time.Time
}

// NewValidator builds a Validator scoped to one owner.
func NewValidator(store Store, ownerID string) *Validator {
	return &Validator{store: store, ownerID: ownerID, now: time.Now}
}

// CheckIntegrity flags structurally suspect materials: negative stock,
// unusable prices, duplicate names, missing units and expired items.
func (v *Validator) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	if v.ownerID == "" {
		return IntegrityReport{}, ErrOwnerRequired
	}
	materials, err := v.store.ListMaterials(ctx, v.ownerID)
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("integrity: list materials: %w", err)
	}

	now := v.now()
	report := IntegrityReport{CheckedAt: now, Total: len(materials)}

	seenNames := make(map[string]string, len(materials))
	for _, m := range materials {
		if m.Stock < 0 {
			report.Issues = append(report.Issues, IntegrityIssue{
				MaterialID: m.ID, Name: m.Name, Severity: SeverityHigh,
				Message: fmt.Sprintf("negative stock %.4f", m.Stock),
			})
		}
		if m.UnitPrice <= 0 {
			report.Issues = append(report.Issues, IntegrityIssue{
				MaterialID: m.ID, Name: m.Name, Severity: SeverityLow,
				Message: "unit price is not positive",
			})
		}
		if m.WAC <= 0 {
			report.Issues = append(report.Issues, IntegrityIssue{
				MaterialID: m.ID, Name: m.Name, Severity: SeverityLow,
				Message: "average cost is not positive",
			})
		}
		if m.Unit == "" {
			severity := SeverityLow
			if m.Stock > 0 {
				// Stocked materials without a unit break resolution for
				// every future purchase that names them.
				severity = SeverityMedium
			}
			report.Issues = append(report.Issues, IntegrityIssue{
				MaterialID: m.ID, Name: m.Name, Severity: severity,
				Message: "missing unit of measure",
			})
		}
		if m.ExpiresAt != nil && m.ExpiresAt.Before(now) && m.Stock > 0 {
			report.Issues = append(report.Issues, IntegrityIssue{
				MaterialID: m.ID, Name: m.Name, Severity: SeverityMedium,
				Message: fmt.Sprintf("expired on %s with stock remaining", m.ExpiresAt.Format("2006-01-02")),
			})
		}
		name := foldCase(m.Name)
		if otherID, dup := seenNames[name]; dup {
			report.Issues = append(report.Issues, IntegrityIssue{
				MaterialID: m.ID, Name: m.Name, Severity: SeverityLow,
				Message: fmt.Sprintf("duplicate name, also used by %s", otherID),
			})
		} else {
			seenNames[name] = m.ID
		}
	}

	report.Healthy = len(report.Issues) == 0
	return report, nil
}

// CheckConsistency recomputes each material's average cost from the full
// completed-purchase history and reports drift beyond the thresholds above.
func (v *Validator) CheckConsistency(ctx context.Context) (ConsistencyReport, error) {
	if v.ownerID == "" {
		return ConsistencyReport{}, ErrOwnerRequired
	}
	materials, err := v.store.ListMaterials(ctx, v.ownerID)
	if err != nil {
		return ConsistencyReport{}, fmt.Errorf("consistency: list materials: %w", err)
	}
	purchases, err := v.store.ListCompletedPurchases(ctx, v.ownerID)
	if err != nil {
		return ConsistencyReport{}, fmt.Errorf("consistency: list purchases: %w", err)
	}

	report := ConsistencyReport{CheckedAt: v.now(), Total: len(materials)}
	for _, m := range materials {
		if issue := v.auditMaterial(m, purchases); issue != nil {
			report.Issues = append(report.Issues, *issue)
		}
	}
	report.Healthy = len(report.Issues) == 0
	return report, nil
}

func (v *Validator) auditMaterial(m Material, purchases []Purchase) *ConsistencyIssue {
	totalQty, totalValue := SumPurchaseHistory(m, purchases)

	issue := ConsistencyIssue{MaterialID: m.ID, Name: m.Name, RecordedWAC: m.WAC, Severity: SeverityLow}

	if m.Name == "" || m.Unit == "" {
		issue.Issues = append(issue.Issues, "missing name or unit")
		issue.Suggestions = append(issue.Suggestions, "fill in the material's name and unit so purchases can resolve to it")
		issue.Severity = SeverityMedium
	}

	if totalQty <= 0 {
		if m.Stock > 0 {
			issue.Issues = append(issue.Issues, fmt.Sprintf("stock %.4f with no completed purchase history", m.Stock))
			issue.Suggestions = append(issue.Suggestions, "record the originating purchase or adjust the opening stock")
			issue.Severity = escalate(issue.Severity, SeverityMedium)
		}
		if len(issue.Issues) == 0 {
			return nil
		}
		return &issue
	}

	recomputed := totalValue / totalQty
	issue.RecomputedWAC = recomputed

	if m.WAC > 0 {
		drift := math.Abs(m.WAC-recomputed) / m.WAC
		if drift > driftReportThreshold {
			issue.Issues = append(issue.Issues, fmt.Sprintf(
				"recorded cost %.4f drifts %.1f%% from history-derived %.4f", m.WAC, drift*100, recomputed))
			issue.Suggestions = append(issue.Suggestions, "run a recalculation for this item")
			switch {
			case drift >= driftHighThreshold:
				issue.Severity = escalate(issue.Severity, SeverityHigh)
			case drift >= driftMediumThreshold:
				issue.Severity = escalate(issue.Severity, SeverityMedium)
			}
			if len(issue.Issues) > 1 {
				// Drift on top of another finding compounds the risk.
				issue.Severity = SeverityHigh
			}
		}
	} else if m.Stock > 0 {
		issue.Issues = append(issue.Issues, "stocked material with no recorded average cost")
		issue.Suggestions = append(issue.Suggestions, "run a recalculation for this item")
		issue.Severity = escalate(issue.Severity, SeverityMedium)
	}

	if len(issue.Issues) == 0 {
		return nil
	}
	return &issue
}

// SumPurchaseHistory totals quantity and value of every completed-purchase
// line item resolving to m, trying the stored identifier aliases first and
// falling back to name+unit matching.
func SumPurchaseHistory(m Material, purchases []Purchase) (totalQty, totalValue float64) {
	for _, p := range purchases {
		for _, raw := range p.Items {
			item := raw.Canonical()
			if item.Qty <= 0 || !lineMatchesMaterial(item, m) {
				continue
			}
			totalQty += item.Qty
			totalValue += item.Qty * item.UnitPrice
		}
	}
	return totalQty, totalValue
}

func lineMatchesMaterial(item LineItem, m Material) bool {
	if item.MaterialID != "" {
		return item.MaterialID == m.ID
	}
	if item.Name == "" || m.Name == "" {
		return false
	}
	if foldCase(item.Name) != foldCase(m.Name) {
		return false
	}
	// Unit only disambiguates when both sides carry one.
	if item.Unit != "" && m.Unit != "" {
		return SameUnit(item.Unit, m.Unit)
	}
	return true
}

func escalate(current, proposed Severity) Severity {
	rank := map[Severity]int{SeverityLow: 0, SeverityMedium: 1, SeverityHigh: 2}
	if rank[proposed] > rank[current] {
		return proposed
	}
	return current
}
