package membership

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/shared"
)

type memberService interface {
	Register(ctx context.Context, in NewMemberInput) (*Member, error)
	Get(ctx context.Context, id int64) (*Member, error)
	List(ctx context.Context, filter ListFilter) ([]Member, error)
	Stats(ctx context.Context) (map[Status]int, error)
	History(ctx context.Context, memberID int64) ([]Event, error)
	AssignBatch(ctx context.Context, memberID int64, batchID *int64, actorID int64) (*Member, error)
	Freeze(ctx context.Context, in FreezeInput) (*Member, error)
	Unfreeze(ctx context.Context, in UnfreezeInput) (*Member, error)
}

// Handler exposes member endpoints.
type Handler struct {
	logger    *slog.Logger
	service   memberService
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service memberService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers member routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.register)
	r.Get("/stats", h.stats)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Get("/history", h.history)
		r.Put("/batch", h.assignBatch)
		r.Post("/freeze", h.freeze)
		r.Post("/unfreeze", h.unfreeze)
	})
}

type registerRequest struct {
	Name        string      `json:"name" validate:"required,max=120"`
	Phone       string      `json:"phone" validate:"required,min=6,max=20"`
	Email       string      `json:"email" validate:"required,email"`
	DateOfBirth *civil.Date `json:"date_of_birth"`
	BatchID     *int64      `json:"batch_id" validate:"omitempty,gt=0"`
}

type batchRequest struct {
	BatchID *int64 `json:"batch_id" validate:"omitempty,gt=0"`
}

type freezeRequest struct {
	Reason       string      `json:"reason" validate:"required,max=500"`
	StartOn      *civil.Date `json:"start_on"`
	ExpectedDays *int        `json:"expected_days" validate:"omitempty,gte=0,lte=365"`
}

type unfreezeRequest struct {
	ExtraDays int `json:"extra_days" validate:"gte=0,lte=365"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	members, err := h.service.List(r.Context(), ListFilter{
		Status: Status(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, "list members", err)
		return
	}
	if members == nil {
		members = []Member{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondValidation(w, err, fields)
		return
	}
	m, err := h.service.Register(r.Context(), NewMemberInput{
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       req.Email,
		DateOfBirth: req.DateOfBirth,
		BatchID:     req.BatchID,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "register member", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, "member stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.memberID(w, r)
	if !ok {
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.memberID(w, r)
	if !ok {
		return
	}
	events, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, "member history", err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) assignBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondValidation(w, err, fields)
		return
	}
	m, err := h.service.AssignBatch(r.Context(), id, req.BatchID, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "assign batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) freeze(w http.ResponseWriter, r *http.Request) {
	id, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req freezeRequest
	if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondValidation(w, err, fields)
		return
	}
	m, err := h.service.Freeze(r.Context(), FreezeInput{
		MemberID:     id,
		Reason:       req.Reason,
		StartOn:      req.StartOn,
		ExpectedDays: req.ExpectedDays,
		ActorID:      shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "freeze member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) unfreeze(w http.ResponseWriter, r *http.Request) {
	id, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req unfreezeRequest
	if r.ContentLength != 0 {
		if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
			httpx.RespondValidation(w, err, fields)
			return
		}
	}
	m, err := h.service.Unfreeze(r.Context(), UnfreezeInput{
		MemberID:  id,
		ExtraDays: req.ExtraDays,
		ActorID:   shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "unfreeze member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) memberID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid member id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
