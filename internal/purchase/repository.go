package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists purchases in PostgreSQL. Line items live in a JSONB
// column: the payloads are written as received, which is exactly how the
// historical field aliases survive in the data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, p Purchase) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("purchase: encode items: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO purchases (id, owner_id, supplier, status, items, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		p.ID, p.OwnerID, p.Supplier, p.Status, items, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("purchase: insert: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, ownerID, id string) (Purchase, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, supplier, status, items, created_at, updated_at, completed_at, cancelled_at
		 FROM purchases WHERE owner_id = $1 AND id = $2`,
		ownerID, id)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, ErrNotFound
		}
		return Purchase{}, fmt.Errorf("purchase: get: %w", err)
	}
	return p, nil
}

func (r *Repository) List(ctx context.Context, ownerID string, status Status) ([]Purchase, error) {
	query := `SELECT id, owner_id, supplier, status, items, created_at, updated_at, completed_at, cancelled_at
		 FROM purchases WHERE owner_id = $1`
	args := []any{ownerID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("purchase: list: %w", err)
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("purchase: scan: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, ownerID, id string, from, to Status, at time.Time) error {
	stampColumn := ""
	switch to {
	case StatusCompleted:
		stampColumn = ", completed_at = $5"
	case StatusCancelled:
		stampColumn = ", cancelled_at = $5"
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE purchases SET status = $4, updated_at = $5`+stampColumn+`
		 WHERE owner_id = $1 AND id = $2 AND status = $3`,
		ownerID, id, from, to, at)
	if err != nil {
		return fmt.Errorf("purchase: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var (
		p   Purchase
		raw []byte
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Supplier, &p.Status, &raw,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt, &p.CancelledAt)
	if err != nil {
		return Purchase{}, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p.Items); err != nil {
			return Purchase{}, fmt.Errorf("decode items: %w", err)
		}
	}
	return p, nil
}
