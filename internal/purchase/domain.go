package purchase

import (
	"errors"
	"time"

	"github.com/gudang-ops/gudang-ops/internal/warehouse"
)

// Status enumerates the purchase lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CanTransition encodes the lifecycle rules: completed is reachable only
// from pending, and cancelled from anything not already cancelled.
func (s Status) CanTransition(to Status) bool {
	switch to {
	case StatusCompleted:
		return s == StatusPending
	case StatusCancelled:
		return s != StatusCancelled
	default:
		return false
	}
}

// Purchase is a supplier purchase with its ordered line items. Line items
// are stored as written, historical field aliases included; the warehouse
// engine canonicalizes them at ingestion time.
type Purchase struct {
	ID          string                    `json:"id"`
	OwnerID     string                    `json:"owner_id"`
	Supplier    string                    `json:"supplier"`
	Status      Status                    `json:"status"`
	Items       []warehouse.RawLineItem   `json:"items"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	CancelledAt *time.Time                `json:"cancelled_at,omitempty"`
}

// Record converts to the engine's purchase view.
func (p Purchase) Record() warehouse.Purchase {
	return warehouse.Purchase{ID: p.ID, OwnerID: p.OwnerID, Supplier: p.Supplier, Items: p.Items}
}

// ErrNotFound indicates a missing purchase row.
var ErrNotFound = errors.New("purchase: not found")

// ErrInvalidTransition indicates a forbidden status change.
var ErrInvalidTransition = errors.New("purchase: invalid status transition")

// ErrNoItems indicates a purchase without line items.
var ErrNoItems = errors.New("purchase: at least one line item required")
