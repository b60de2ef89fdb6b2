package warehouse

import "context"

// Store abstracts the transactional data store the engine runs against. All
// lookups are scoped to an owner; implementations must treat the owner id as
// a mandatory filter, never a hint.
type Store interface {
	// GetMaterial returns the material with the given id, or ErrMaterialNotFound.
	GetMaterial(ctx context.Context, ownerID, id string) (Material, error)
	// FindMaterialsByName returns materials whose name matches name
	// case-insensitively, exact matches and substring matches alike.
	FindMaterialsByName(ctx context.Context, ownerID, name string) ([]Material, error)
	// ListMaterials returns every material the owner has.
	ListMaterials(ctx context.Context, ownerID string) ([]Material, error)
	// InsertMaterial creates a new material row at version 1.
	InsertMaterial(ctx context.Context, m Material) error
	// UpdateMaterial persists material state and bumps its version by one.
	UpdateMaterial(ctx context.Context, m Material) error
	// UpdateMaterialWAC conditionally writes a recomputed average cost. The
	// update applies only while the row still carries expectedVersion;
	// otherwise ErrVersionConflict is returned and nothing is written.
	UpdateMaterialWAC(ctx context.Context, ownerID, id string, wac float64, expectedVersion int64) error
	// ListCompletedPurchases returns the owner's completed purchases with
	// their ordered line items.
	ListCompletedPurchases(ctx context.Context, ownerID string) ([]Purchase, error)
}
