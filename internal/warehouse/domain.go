package warehouse

import (
	"errors"
	"time"
)

// Material is a warehouse-tracked inventory item (ingredient or supply).
type Material struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Category  string     `json:"category,omitempty"`
	Unit      string     `json:"unit"`
	Stock     float64    `json:"stock"`
	UnitPrice float64    `json:"unit_price"`
	WAC       float64    `json:"wac"`
	MinStock  float64    `json:"min_stock"`
	Supplier  string     `json:"supplier,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Purchase is the engine's view of a purchase record: header fields plus the
// raw line items as they were stored, aliases and all.
type Purchase struct {
	ID       string
	OwnerID  string
	Supplier string
	Items    []RawLineItem
}

// MatchConfidence tags how a line item was resolved to a material.
type MatchConfidence string

const (
	// MatchByID means the stored material reference resolved directly.
	MatchByID MatchConfidence = "ID_MATCH"
	// MatchByName means resolution fell back to name (and maybe unit) matching.
	MatchByName MatchConfidence = "NAME_MATCH"
	// MatchNewItem means no existing material fits and one must be created.
	MatchNewItem MatchConfidence = "NEW_ITEM"
)

// SyncStatus enumerates per-material sync outcomes.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
	SyncStatusSkipped SyncStatus = "skipped"
)

// SyncResult records the outcome of one apply/reverse/recalculation attempt.
type SyncResult struct {
	MaterialID string     `json:"material_id,omitempty"`
	Name       string     `json:"name"`
	OldWAC     float64    `json:"old_wac"`
	NewWAC     float64    `json:"new_wac"`
	OldStock   float64    `json:"old_stock"`
	NewStock   float64    `json:"new_stock"`
	Status     SyncStatus `json:"status"`
	Message    string     `json:"message,omitempty"`
}

// Severity grades validation findings.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IntegrityIssue is a single finding from the integrity pass.
type IntegrityIssue struct {
	MaterialID string   `json:"material_id"`
	Name       string   `json:"name"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
}

// IntegrityReport is the read-only result of the integrity pass.
type IntegrityReport struct {
	CheckedAt time.Time        `json:"checked_at"`
	Total     int              `json:"total"`
	Issues    []IntegrityIssue `json:"issues"`
	Healthy   bool             `json:"healthy"`
}

// ConsistencyIssue lists drift findings for one material.
type ConsistencyIssue struct {
	MaterialID    string   `json:"material_id"`
	Name          string   `json:"name"`
	Issues        []string `json:"issues"`
	Severity      Severity `json:"severity"`
	Suggestions   []string `json:"suggestions"`
	RecordedWAC   float64  `json:"recorded_wac"`
	RecomputedWAC float64  `json:"recomputed_wac"`
}

// ConsistencyReport is the read-only result of the consistency pass.
type ConsistencyReport struct {
	CheckedAt time.Time          `json:"checked_at"`
	Total     int                `json:"total"`
	Issues    []ConsistencyIssue `json:"issues"`
	Healthy   bool               `json:"healthy"`
}

// SyncReport combines recalculation, consistency and integrity results.
type SyncReport struct {
	GeneratedAt time.Time         `json:"generated_at"`
	OwnerID     string            `json:"owner_id"`
	Results     []SyncResult      `json:"results"`
	Consistency ConsistencyReport `json:"consistency"`
	Integrity   IntegrityReport   `json:"integrity"`
}

// Stats aggregates warehouse counters for dashboards.
type Stats struct {
	TotalItems    int     `json:"total_items"`
	LowStock      int     `json:"low_stock"`
	NegativeStock int     `json:"negative_stock"`
	MissingWAC    int     `json:"missing_wac"`
	TotalValue    float64 `json:"total_value"`
}

// RecalcOptions narrows a recalculation run.
type RecalcOptions struct {
	// ItemID limits the run to a single material when set.
	ItemID string
	// DryRun computes results without persisting them.
	DryRun bool
}

// ErrMaterialNotFound indicates a missing material row.
var ErrMaterialNotFound = errors.New("warehouse: material not found")

// ErrVersionConflict indicates a concurrent writer won the race; retry.
var ErrVersionConflict = errors.New("warehouse: version conflict, retry")

// ErrOwnerRequired indicates a missing owner scope.
var ErrOwnerRequired = errors.New("warehouse: owner id required")
