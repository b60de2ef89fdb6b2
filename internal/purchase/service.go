package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gudang-ops/gudang-ops/internal/shared"
	"github.com/gudang-ops/gudang-ops/internal/warehouse"
)

// RepositoryPort abstracts purchase persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, p Purchase) error
	Get(ctx context.Context, ownerID, id string) (Purchase, error)
	List(ctx context.Context, ownerID string, status Status) ([]Purchase, error)
	// UpdateStatus transitions the purchase only while it still holds the
	// from status; zero rows changed maps to ErrInvalidTransition.
	UpdateStatus(ctx context.Context, ownerID, id string, from, to Status, at time.Time) error
}

// Engines hands out the per-owner sync orchestrator.
type Engines interface {
	For(ownerID string) *warehouse.Orchestrator
}

// Service drives the purchase lifecycle. Completion triggers exactly one
// inventory apply pass, cancellation of a completed purchase exactly one
// reverse pass; the idempotency store guards against redelivered
// completion/cancellation events racing the status check.
type Service struct {
	repo        RepositoryPort
	engines     Engines
	idempotency *shared.IdempotencyStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. The idempotency store is optional.
func NewService(repo RepositoryPort, engines Engines, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, engines: engines, idempotency: idem, logger: logger, now: time.Now}
}

// CreateInput describes a new pending purchase.
type CreateInput struct {
	OwnerID  string
	Supplier string
	Items    []warehouse.RawLineItem
}

// Create stores a new purchase in pending state.
func (s *Service) Create(ctx context.Context, input CreateInput) (Purchase, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return Purchase{}, warehouse.ErrOwnerRequired
	}
	if len(input.Items) == 0 {
		return Purchase{}, ErrNoItems
	}

	now := s.now()
	p := Purchase{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		Supplier:  strings.TrimSpace(input.Supplier),
		Status:    StatusPending,
		Items:     input.Items,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return Purchase{}, fmt.Errorf("create purchase: %w", err)
	}
	return p, nil
}

// Get loads one purchase.
func (s *Service) Get(ctx context.Context, ownerID, id string) (Purchase, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// List returns the owner's purchases, optionally filtered by status.
func (s *Service) List(ctx context.Context, ownerID string, status Status) ([]Purchase, error) {
	return s.repo.List(ctx, ownerID, status)
}

// Complete transitions pending -> completed and posts the purchase against
// inventory.
func (s *Service) Complete(ctx context.Context, ownerID, id string) (Purchase, []warehouse.SyncResult, error) {
	p, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return Purchase{}, nil, err
	}
	if !p.Status.CanTransition(StatusCompleted) {
		return Purchase{}, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusCompleted)
	}

	key := "purchase:complete:" + id
	guarded, err := s.guard(ctx, key)
	if err != nil {
		return Purchase{}, nil, err
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, ownerID, id, StatusPending, StatusCompleted, now); err != nil {
		s.unguard(ctx, guarded, key)
		return Purchase{}, nil, err
	}
	p.Status = StatusCompleted
	p.UpdatedAt = now
	p.CompletedAt = &now

	results, err := s.engines.For(ownerID).ApplyPurchase(ctx, p.Record())
	if err != nil {
		// The purchase stays completed; the apply pass can be repaired via
		// recalculation. Surface the failure to the caller regardless.
		s.logger.Error("apply purchase", slog.String("purchase_id", id), slog.Any("error", err))
		return p, results, fmt.Errorf("complete %s: apply: %w", id, err)
	}
	return p, results, nil
}

// Cancel transitions to cancelled and, when the purchase had been completed,
// reverses its inventory effect with identical items and negated quantities.
func (s *Service) Cancel(ctx context.Context, ownerID, id string) (Purchase, []warehouse.SyncResult, error) {
	p, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return Purchase{}, nil, err
	}
	if !p.Status.CanTransition(StatusCancelled) {
		return Purchase{}, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, StatusCancelled)
	}
	wasCompleted := p.Status == StatusCompleted

	key := "purchase:cancel:" + id
	guarded, err := s.guard(ctx, key)
	if err != nil {
		return Purchase{}, nil, err
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, ownerID, id, p.Status, StatusCancelled, now); err != nil {
		s.unguard(ctx, guarded, key)
		return Purchase{}, nil, err
	}
	p.Status = StatusCancelled
	p.UpdatedAt = now
	p.CancelledAt = &now

	if !wasCompleted {
		return p, nil, nil
	}

	results, err := s.engines.For(ownerID).ReversePurchase(ctx, p.Record())
	if err != nil {
		s.logger.Error("reverse purchase", slog.String("purchase_id", id), slog.Any("error", err))
		return p, results, fmt.Errorf("cancel %s: reverse: %w", id, err)
	}
	return p, results, nil
}

func (s *Service) guard(ctx context.Context, key string) (bool, error) {
	if s.idempotency == nil {
		return false, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "purchase"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return false, fmt.Errorf("%w: already processed", ErrInvalidTransition)
		}
		return false, err
	}
	return true, nil
}

func (s *Service) unguard(ctx context.Context, guarded bool, key string) {
	if !guarded {
		return
	}
	if err := s.idempotency.Delete(ctx, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}
