package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gymdesk/gymdesk/internal/platform/httpx"
	"github.com/gymdesk/gymdesk/internal/shared"
)

type checkInService interface {
	CheckIn(ctx context.Context, in CheckInInput) (*CheckInResult, error)
}

type staffService interface {
	Mark(ctx context.Context, in MarkInput) (*Record, error)
	Summary(ctx context.Context, from, to civil.Date) (*Summary, error)
}

type sweepRunner interface {
	Run(ctx context.Context, date *civil.Date) SweepResult
}

// Handler exposes attendance endpoints.
type Handler struct {
	logger    *slog.Logger
	gate      checkInService
	staff     staffService
	sweeper   sweepRunner
	validator *validator.Validate
	// checkInLimiter throttles the unauthenticated self check-in route.
	checkInLimiter func(http.Handler) http.Handler
}

// NewHandler constructs the attendance handler. checkInLimiter may be nil.
func NewHandler(logger *slog.Logger, gate checkInService, staff staffService, sweeper sweepRunner, checkInLimiter func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		gate:           gate,
		staff:          staff,
		sweeper:        sweeper,
		validator:      validator.New(),
		checkInLimiter: checkInLimiter,
	}
}

// MountRoutes registers attendance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.checkInLimiter != nil {
			r.Use(h.checkInLimiter)
		}
		r.Post("/check-in", h.checkIn)
	})
	r.Post("/mark", h.mark)
	r.Get("/summary", h.summary)
	r.Post("/sweep", h.sweep)
}

type checkInRequest struct {
	Phone     string   `json:"phone" validate:"required,min=6,max=20"`
	Email     string   `json:"email" validate:"required,email"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type markRequest struct {
	MemberID int64       `json:"member_id" validate:"required,gt=0"`
	Date     *civil.Date `json:"date"`
	Status   Status      `json:"status" validate:"required,oneof=present late absent excused"`
	Note     string      `json:"note" validate:"max=500"`
}

type sweepRequest struct {
	Date *civil.Date `json:"date"`
}

type sweepResponse struct {
	SweepResult
	Complete bool   `json:"complete"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondValidation(w, err, fields)
		return
	}
	res, err := h.gate.CheckIn(r.Context(), CheckInInput{
		Phone:     req.Phone,
		Email:     req.Email,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		h.fail(w, "check in", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) mark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if fields, err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondValidation(w, err, fields)
		return
	}
	rec, err := h.staff.Mark(r.Context(), MarkInput{
		MemberID: req.MemberID,
		Date:     req.Date,
		Status:   req.Status,
		Note:     req.Note,
		ActorID:  shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "mark attendance", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.staff.Summary(r.Context(), from, to)
	if err != nil {
		h.fail(w, "attendance summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	res := h.sweeper.Run(r.Context(), req.Date)
	out := sweepResponse{SweepResult: res, Complete: res.Err == nil}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var rej *Rejection
	if errors.As(err, &rej) {
		data := map[string]any{"gate": rej.Gate}
		for k, v := range rej.Data {
			data[k] = v
		}
		httpx.RespondErrorData(w, rej, data)
		return
	}
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseDateParam(r *http.Request, name string) (civil.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", shared.ErrBadRequest, name)
	}
	return d, nil
}
