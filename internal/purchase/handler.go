package purchase

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gudang-ops/gudang-ops/internal/platform/httpx"
	"github.com/gudang-ops/gudang-ops/internal/warehouse"
)

// Handler wires HTTP endpoints for the purchase lifecycle.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the purchase handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/complete", h.handleComplete)
	r.Post("/{id}/cancel", h.handleCancel)
}

type createItemRequest struct {
	MaterialID string  `json:"material_id" validate:"omitempty,uuid"`
	Name       string  `json:"name" validate:"required"`
	Unit       string  `json:"unit"`
	Qty        float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	Subtotal   float64 `json:"subtotal" validate:"gte=0"`
	Note       string  `json:"note"`
}

type createRequest struct {
	Supplier string              `json:"supplier" validate:"required"`
	Items    []createItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	items := make([]warehouse.RawLineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, warehouse.RawLineItem{
			MaterialID: item.MaterialID,
			Name:       item.Name,
			Unit:       item.Unit,
			Quantity:   item.Qty,
			UnitPrice:  item.UnitPrice,
			Subtotal:   item.Subtotal,
			Note:       item.Note,
		})
	}

	p, err := h.service.Create(r.Context(), CreateInput{OwnerID: owner, Supplier: req.Supplier, Items: items})
	if err != nil {
		h.respondError(w, "create purchase", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	status := Status(r.URL.Query().Get("status"))
	purchases, err := h.service.List(r.Context(), owner, status)
	if err != nil {
		h.respondError(w, "list purchases", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get purchase", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	p, results, err := h.service.Complete(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "complete purchase", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase": p, "results": results})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	p, results, err := h.service.Cancel(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "cancel purchase", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase": p, "results": results})
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(warehouse.OwnerHeader)
	if err := h.validate.Var(owner, "required,uuid"); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Owner", "a valid "+warehouse.OwnerHeader+" header is required")
		return "", false
	}
	return owner, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrNoItems), errors.Is(err, warehouse.ErrOwnerRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
