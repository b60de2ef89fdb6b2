package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists materials in PostgreSQL and reads purchase history for
// the audit and recalculation paths.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrDuplicateMaterial indicates a unique-constraint violation on insert.
var ErrDuplicateMaterial = errors.New("warehouse: material already exists")

const materialColumns = `id, owner_id, name, category, unit, stock, unit_price, wac,
	min_stock, supplier, expires_at, version, created_at, updated_at`

func (r *Repository) GetMaterial(ctx context.Context, ownerID, id string) (Material, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE owner_id = $1 AND id = $2`,
		ownerID, id)
	m, err := scanMaterial(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, ErrMaterialNotFound
		}
		return Material{}, fmt.Errorf("warehouse: get material: %w", err)
	}
	return m, nil
}

func (r *Repository) FindMaterialsByName(ctx context.Context, ownerID, name string) ([]Material, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+materialColumns+` FROM materials
		 WHERE owner_id = $1 AND name ILIKE '%' || $2 || '%'
		 ORDER BY created_at`,
		ownerID, name)
	if err != nil {
		return nil, fmt.Errorf("warehouse: find by name: %w", err)
	}
	defer rows.Close()
	return collectMaterials(rows)
}

func (r *Repository) ListMaterials(ctx context.Context, ownerID string) ([]Material, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE owner_id = $1 ORDER BY name`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("warehouse: list materials: %w", err)
	}
	defer rows.Close()
	return collectMaterials(rows)
}

func (r *Repository) InsertMaterial(ctx context.Context, m Material) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO materials (id, owner_id, name, category, unit, stock, unit_price, wac,
			min_stock, supplier, expires_at, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $12)`,
		m.ID, m.OwnerID, m.Name, m.Category, m.Unit, m.Stock, m.UnitPrice, m.WAC,
		m.MinStock, m.Supplier, m.ExpiresAt, m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateMaterial
		}
		return fmt.Errorf("warehouse: insert material: %w", err)
	}
	return nil
}

// UpdateMaterial is the blind write used by the incremental apply/reverse
// path; the version still advances so the recalculation path can detect the
// concurrent change.
func (r *Repository) UpdateMaterial(ctx context.Context, m Material) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE materials
		 SET name = $3, category = $4, unit = $5, stock = $6, unit_price = $7, wac = $8,
			 min_stock = $9, supplier = $10, expires_at = $11,
			 version = version + 1, updated_at = $12
		 WHERE owner_id = $1 AND id = $2`,
		m.OwnerID, m.ID, m.Name, m.Category, m.Unit, m.Stock, m.UnitPrice, m.WAC,
		m.MinStock, m.Supplier, m.ExpiresAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("warehouse: update material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

// UpdateMaterialWAC is the compare-and-swap write used by recalculation. No
// row changes when the version moved under us.
func (r *Repository) UpdateMaterialWAC(ctx context.Context, ownerID, id string, wac float64, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE materials
		 SET wac = $3, version = version + 1, updated_at = now()
		 WHERE owner_id = $1 AND id = $2 AND version = $4`,
		ownerID, id, wac, expectedVersion)
	if err != nil {
		return fmt.Errorf("warehouse: cas update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *Repository) ListCompletedPurchases(ctx context.Context, ownerID string) ([]Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, supplier, items
		 FROM purchases
		 WHERE owner_id = $1 AND status = 'completed'
		 ORDER BY created_at`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("warehouse: list completed purchases: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var (
			p   Purchase
			raw []byte
		)
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Supplier, &raw); err != nil {
			return nil, fmt.Errorf("warehouse: scan purchase: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p.Items); err != nil {
				return nil, fmt.Errorf("warehouse: decode line items for %s: %w", p.ID, err)
			}
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// ListOwners returns every owner id with at least one material; the nightly
// report job fans out over this.
func (r *Repository) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT owner_id FROM materials ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("warehouse: list owners: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("warehouse: scan owner: %w", err)
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func scanMaterial(row pgx.Row) (Material, error) {
	var m Material
	err := row.Scan(&m.ID, &m.OwnerID, &m.Name, &m.Category, &m.Unit, &m.Stock,
		&m.UnitPrice, &m.WAC, &m.MinStock, &m.Supplier, &m.ExpiresAt,
		&m.Version, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func collectMaterials(rows pgx.Rows) ([]Material, error) {
	var materials []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("warehouse: scan material: %w", err)
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}
