package warehouse

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/gudang-ops/gudang-ops/internal/platform/httpx"
)

// OwnerHeader names the request header carrying the tenant scope.
const OwnerHeader = "X-Owner-ID"

// Handler wires HTTP endpoints for the sync engine.
type Handler struct {
	logger   *slog.Logger
	engines  *Engines
	validate *validator.Validate
}

// NewHandler constructs the warehouse handler.
func NewHandler(logger *slog.Logger, engines *Engines) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engines: engines, validate: validator.New()}
}

// MountRoutes registers warehouse routes. Report generation walks the whole
// purchase history, so it carries its own rate limit.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/recalculate", h.handleRecalculate)
	r.Post("/items/{id}/fix", h.handleFixItem)
	r.Get("/integrity", h.handleIntegrity)
	r.Get("/consistency", h.handleConsistency)
	r.Get("/stats", h.handleStats)
	r.Get("/low-stock", h.handleLowStock)

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return r.Header.Get(OwnerHeader), nil
		})))
		r.Get("/report", h.handleReport)
	})
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(OwnerHeader)
	if err := h.validate.Var(owner, "required,uuid"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Owner", "a valid "+OwnerHeader+" header is required")
		return "", false
	}
	return owner, true
}

type recalculateRequest struct {
	ItemID string `json:"item_id" validate:"omitempty,uuid"`
	DryRun bool   `json:"dry_run"`
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req recalculateRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	results, err := h.engines.For(owner).RecalculateAllWAC(r.Context(), RecalcOptions{ItemID: req.ItemID, DryRun: req.DryRun})
	if err != nil {
		h.respondError(w, r, "recalculate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) handleFixItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "id")
	if err := h.validate.Var(itemID, "required,uuid"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Item", "item id must be a uuid")
		return
	}

	result, err := h.engines.For(owner).FixWarehouseItem(r.Context(), itemID)
	if err != nil {
		h.respondError(w, r, "fix item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	report, err := h.engines.For(owner).ValidateIntegrity(r.Context())
	if err != nil {
		h.respondError(w, r, "integrity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleConsistency(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	report, err := h.engines.For(owner).CheckConsistency(r.Context())
	if err != nil {
		h.respondError(w, r, "consistency", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	report, err := h.engines.For(owner).GenerateSyncReport(r.Context())
	if err != nil {
		h.respondError(w, r, "report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	stats, err := h.engines.For(owner).WarehouseStats(r.Context())
	if err != nil {
		h.respondError(w, r, "stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	items, err := h.engines.For(owner).LowStockItems(r.Context())
	if err != nil {
		h.respondError(w, r, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrMaterialNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrVersionConflict):
		// Retryable: a concurrent writer advanced the version first.
		httpx.Problem(w, http.StatusConflict, "Concurrent Modification", err.Error())
	case errors.Is(err, ErrOwnerRequired):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Owner", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
