package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/workstation-scheduler/internal/application"
	"github.com/example/workstation-scheduler/internal/calendar"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// defaultAvailabilityDays is the window length when the query omits days.
const defaultAvailabilityDays = 30

type reservationService interface {
	CreateSingle(ctx context.Context, params application.CreateSingleParams) (scheduler.Reservation, error)
	CreateBatch(ctx context.Context, params application.CreateBatchParams) ([]scheduler.Reservation, error)
	Cancel(ctx context.Context, params application.CancelParams) (scheduler.Reservation, error)
	Renew(ctx context.Context, params application.RenewParams) (scheduler.Reservation, error)
	QueryAvailability(ctx context.Context, params application.AvailabilityParams) ([]application.DayStatus, error)
	QueryMyActive(ctx context.Context, userID string, today calendar.Date) ([]scheduler.Reservation, error)
	ListResourceReservations(ctx context.Context, principal application.Principal, resourceID string, from calendar.Date) ([]scheduler.Reservation, error)
	Today() calendar.Date
}

// ReservationHandler serves the reservation and availability endpoints.
type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *ReservationHandler) CreateSingle(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req createReservationRequest
	fields, err := decodeRequest(r, &req)
	if err != nil {
		h.log(r.Context(), "CreateSingle", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields != nil {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	created, err := h.service.CreateSingle(r.Context(), application.CreateSingleParams{
		Principal:  principal,
		ResourceID: req.ResourceID,
		UserID:     req.UserID,
		Range:      calendar.Range{Start: calendar.MustParseDate(req.StartDate), End: calendar.MustParseDate(req.EndDate)},
		Purpose:    req.Purpose,
		Force:      req.Force,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(created)})
}

func (h *ReservationHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req batchReservationRequest
	fields, err := decodeRequest(r, &req)
	if err != nil {
		h.log(r.Context(), "CreateBatch", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode batch request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields != nil {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	days := make([]calendar.Date, 0, len(req.Dates))
	for _, value := range req.Dates {
		days = append(days, calendar.MustParseDate(value))
	}

	principal, _ := PrincipalFromContext(r.Context())
	created, err := h.service.CreateBatch(r.Context(), application.CreateBatchParams{
		Principal:  principal,
		ResourceID: req.ResourceID,
		UserID:     req.UserID,
		Days:       days,
		Purpose:    req.Purpose,
		Force:      req.Force,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationListResponse{Reservations: toReservationDTOs(created)})
}

func (h *ReservationHandler) Renew(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	renewed, err := h.service.Renew(r.Context(), application.RenewParams{Principal: principal, ReservationID: id})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(renewed)})
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if _, err := h.service.Cancel(r.Context(), application.CancelParams{Principal: principal, ReservationID: id}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ReservationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	reservations, err := h.service.QueryMyActive(r.Context(), principal.UserID, calendar.Date{})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationListResponse{Reservations: toReservationDTOs(reservations)})
}

func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	query := r.URL.Query()
	fields := make(map[string]string)

	start := h.service.Today()
	if value := strings.TrimSpace(query.Get("start")); value != "" {
		parsed, err := calendar.ParseDate(value)
		if err != nil {
			fields["start"] = "must be a YYYY-MM-DD date"
		}
		start = parsed
	}
	days := defaultAvailabilityDays
	if value := strings.TrimSpace(query.Get("days")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			fields["days"] = "must be a whole number"
		}
		days = parsed
	}
	if len(fields) > 0 {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	statuses, err := h.service.QueryAvailability(r.Context(), application.AvailabilityParams{
		ResourceID:   r.PathValue("id"),
		WindowStart:  start,
		WindowLength: days,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		ResourceID: r.PathValue("id"),
		Days:       statuses,
	})
}

func (h *ReservationHandler) ResourceReservations(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var from calendar.Date
	if value := strings.TrimSpace(r.URL.Query().Get("from")); value != "" {
		parsed, err := calendar.ParseDate(value)
		if err != nil {
			h.responder.writeValidation(r.Context(), w, map[string]string{"from": "must be a YYYY-MM-DD date"})
			return
		}
		from = parsed
	}

	principal, _ := PrincipalFromContext(r.Context())
	reservations, err := h.service.ListResourceReservations(r.Context(), principal, r.PathValue("id"), from)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationListResponse{Reservations: toReservationDTOs(reservations)})
}

type createReservationRequest struct {
	ResourceID string `json:"resource_id" validate:"required,max=64"`
	UserID     string `json:"user_id" validate:"omitempty,max=64"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Purpose    string `json:"purpose" validate:"max=500"`
	Force      bool   `json:"force"`
}

type batchReservationRequest struct {
	ResourceID string   `json:"resource_id" validate:"required,max=64"`
	UserID     string   `json:"user_id" validate:"omitempty,max=64"`
	Dates      []string `json:"dates" validate:"dive,datetime=2006-01-02"`
	Purpose    string   `json:"purpose" validate:"max=500"`
	Force      bool     `json:"force"`
}

type reservationDTO struct {
	ID            string    `json:"id"`
	ResourceID    string    `json:"resource_id"`
	UserID        string    `json:"user_id"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	Purpose       string    `json:"purpose,omitempty"`
	Status        string    `json:"status"`
	CreatedByRole string    `json:"created_by_role"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastRenewedAt time.Time `json:"last_renewed_at"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type reservationListResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type availabilityResponse struct {
	ResourceID string                  `json:"resource_id"`
	Days       []application.DayStatus `json:"days"`
}

func toReservationDTO(r scheduler.Reservation) reservationDTO {
	return reservationDTO{
		ID:            r.ID,
		ResourceID:    r.ResourceID,
		UserID:        r.UserID,
		StartDate:     r.Period.Start.String(),
		EndDate:       r.Period.End.String(),
		Purpose:       r.Purpose,
		Status:        string(r.Status),
		CreatedByRole: string(r.CreatedByRole),
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		LastRenewedAt: r.LastRenewedAt.UTC(),
	}
}

func toReservationDTOs(reservations []scheduler.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, toReservationDTO(r))
	}
	return out
}
