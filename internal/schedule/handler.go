package schedule

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gymdesk/gymdesk/internal/platform/httpx"
)

type batchService interface {
	List(ctx context.Context) ([]Batch, error)
	Create(ctx context.Context, in BatchInput) (*Batch, error)
	Update(ctx context.Context, id int64, patch BatchPatch) (*Batch, error)
}

// Handler exposes batch management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   batchService
	validator *validator.Validate
}

// NewHandler constructs the batch handler.
func NewHandler(logger *slog.Logger, service batchService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers batch routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Patch("/{id}", h.update)
}

type createBatchRequest struct {
	Name      string     `json:"name" validate:"required,max=80"`
	StartTime *TimeOfDay `json:"start_time" validate:"required"`
	EndTime   *TimeOfDay `json:"end_time" validate:"required"`
	Capacity  int        `json:"capacity" validate:"gte=0"`
	Active    *bool      `json:"active"`
}

type updateBatchRequest struct {
	Name      *string    `json:"name" validate:"omitempty,max=80"`
	StartTime *TimeOfDay `json:"start_time"`
	EndTime   *TimeOfDay `json:"end_time"`
	Capacity  *int       `json:"capacity" validate:"omitempty,gte=0"`
	Active    *bool      `json:"active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list batches", err)
		return
	}
	if batches == nil {
		batches = []Batch{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondValidation(w, err, fields)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	b, err := h.service.Create(r.Context(), BatchInput{
		Name:     req.Name,
		Start:    *req.StartTime,
		End:      *req.EndTime,
		Capacity: req.Capacity,
		Active:   active,
	})
	if err != nil {
		h.fail(w, "create batch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, b)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid batch id")
		return
	}
	var req updateBatchRequest
	if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondValidation(w, err, fields)
		return
	}
	b, err := h.service.Update(r.Context(), id, BatchPatch{
		Name:     req.Name,
		Start:    req.StartTime,
		End:      req.EndTime,
		Capacity: req.Capacity,
		Active:   req.Active,
	})
	if err != nil {
		h.fail(w, "update batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
