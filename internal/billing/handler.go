package billing

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gymdesk/gymdesk/internal/membership"
	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/shared"
)

// IdempotencyHeader names the client-supplied key for payment submissions.
const IdempotencyHeader = "Idempotency-Key"

type ledgerService interface {
	AddPeriod(ctx context.Context, in AddPeriodInput) (*Period, *membership.Member, error)
	RetractPeriod(ctx context.Context, in RetractInput) (*membership.Member, error)
	ListPeriods(ctx context.Context, memberID int64) ([]Period, error)
}

// Handler exposes ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	ledger    ledgerService
	validator *validator.Validate
}

// NewHandler constructs the billing handler.
func NewHandler(logger *slog.Logger, ledger ledgerService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, ledger: ledger, validator: validator.New()}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/members/{memberID}/periods", h.listPeriods)
	r.Post("/members/{memberID}/periods", h.addPeriod)
	r.Delete("/periods/{id}", h.retractPeriod)
}

type addPeriodRequest struct {
	Amount         int64       `json:"amount" validate:"required,gt=0"`
	DurationMonths int         `json:"duration_months" validate:"required,gte=1,lte=36"`
	Method         string      `json:"method" validate:"required,oneof=cash card upi bank_transfer"`
	StartOn        *civil.Date `json:"start_on"`
	Note           string      `json:"note" validate:"max=500"`
}

type retractRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type periodResponse struct {
	Period *Period            `json:"period"`
	Member *membership.Member `json:"member"`
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	periods, err := h.ledger.ListPeriods(r.Context(), memberID)
	if err != nil {
		h.fail(w, "list periods", err)
		return
	}
	if periods == nil {
		periods = []Period{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": periods})
}

func (h *Handler) addPeriod(w http.ResponseWriter, r *http.Request) {
	memberID, ok := pathID(w, r, "memberID")
	if !ok {
		return
	}
	var req addPeriodRequest
	if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondValidation(w, err, fields)
		return
	}
	period, member, err := h.ledger.AddPeriod(r.Context(), AddPeriodInput{
		MemberID:       memberID,
		Amount:         req.Amount,
		DurationMonths: req.DurationMonths,
		Method:         req.Method,
		StartOn:        req.StartOn,
		Note:           req.Note,
		ActorID:        shared.ActorFromContext(r.Context()),
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.fail(w, "add period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, periodResponse{Period: period, Member: member})
}

func (h *Handler) retractPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req retractRequest
	if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondValidation(w, err, fields)
		return
	}
	member, err := h.ledger.RetractPeriod(r.Context(), RetractInput{
		PeriodID: id,
		Reason:   req.Reason,
		ActorID:  shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "retract period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"member": member})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name)
		return 0, false
	}
	return id, true
}
