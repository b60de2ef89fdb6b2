package warehouse

import (
	"fmt"
	"math"
)

// WACResult carries the outcome of a weighted-average-cost update.
type WACResult struct {
	NewWAC   float64
	NewStock float64
	// PreservedPrice holds the cost baseline to keep across a stock-out.
	// Only meaningful when Preserved is true.
	PreservedPrice float64
	Preserved      bool
	Warnings       []string
}

// CalculateWAC computes the new weighted average cost and stock level after a
// stock delta. Pure; never panics. The edge cases are checked in this exact
// order so that depletion and fresh-stock rules win over the blend formula and
// no division by zero can occur.
func CalculateWAC(oldWAC, oldStock, deltaQty, unitPrice float64) WACResult {
	newStock := oldStock + deltaQty

	// Depleted or over-reversed: keep the last known positive price so the
	// next purchase has a sane cost baseline instead of starting from zero.
	if newStock <= 0 {
		preserved := oldWAC
		if preserved <= 0 {
			preserved = unitPrice
		}
		return WACResult{
			NewWAC:         preserved,
			NewStock:       newStock,
			PreservedPrice: preserved,
			Preserved:      true,
			Warnings: []string{
				fmt.Sprintf("stock depleted (%.4f), preserving price %.4f", newStock, preserved),
			},
		}
	}

	// First stock for a fresh or previously-depleted material.
	if oldStock <= 0 {
		return sanitizeWAC(unitPrice, newStock, oldWAC, unitPrice, nil)
	}

	// Stock added with no usable price, e.g. a bonus or free sample.
	if deltaQty > 0 && unitPrice <= 0 {
		return WACResult{
			NewWAC:   oldWAC,
			NewStock: newStock,
			Warnings: []string{"zero-price addition, keeping previous average cost"},
		}
	}

	blended := (oldStock*oldWAC + deltaQty*unitPrice) / newStock
	return sanitizeWAC(blended, newStock, oldWAC, unitPrice, nil)
}

// sanitizeWAC guards against non-finite or negative results and falls back to
// the last usable price.
func sanitizeWAC(wac, newStock, oldWAC, unitPrice float64, warnings []string) WACResult {
	if math.IsNaN(wac) || math.IsInf(wac, 0) || wac < 0 {
		fallback := oldWAC
		if fallback <= 0 {
			fallback = unitPrice
		}
		warnings = append(warnings, fmt.Sprintf("unusable average cost %v, falling back to %.4f", wac, fallback))
		wac = fallback
	}
	return WACResult{NewWAC: wac, NewStock: newStock, Warnings: warnings}
}

// Sanity-check tolerances for ValidateWACSanity.
const (
	conservationAbsTolerance = 0.01
	conservationRelTolerance = 0.0001
	boundLowerFactor         = 0.9
	boundUpperFactor         = 1.1
)

// ValidateWACSanity audits a computed WAC against the inputs that produced it.
// Violations are reported as warnings, never rejected: this is an audit
// signal for drift review, not a gate.
func ValidateWACSanity(oldWAC, oldStock, deltaQty, unitPrice, newWAC float64) (bool, []string) {
	var warnings []string

	newStock := oldStock + deltaQty
	if newStock > 0 {
		expectedValue := oldStock*oldWAC + deltaQty*unitPrice
		actualValue := newStock * newWAC
		tolerance := math.Max(conservationAbsTolerance, math.Abs(expectedValue)*conservationRelTolerance)
		if diff := math.Abs(expectedValue - actualValue); diff > tolerance {
			warnings = append(warnings, fmt.Sprintf(
				"value not conserved: expected %.4f got %.4f (diff %.4f)", expectedValue, actualValue, diff))
		}
	}

	if oldWAC > 0 && unitPrice > 0 {
		lower := boundLowerFactor * math.Min(oldWAC, unitPrice)
		upper := boundUpperFactor * math.Max(oldWAC, unitPrice)
		if newWAC < lower || newWAC > upper {
			warnings = append(warnings, fmt.Sprintf(
				"average cost %.4f outside expected band [%.4f, %.4f]", newWAC, lower, upper))
		}
	}

	return len(warnings) == 0, warnings
}
