package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tolkback/internal/booking/fsm"
	"tolkback/internal/booking/lifecycle"
	"tolkback/internal/booking/matching"
	"tolkback/internal/models"
)

// BookingHandler exposes the booking lifecycle over HTTP. Handlers stay thin:
// decode, call the service with the current time, encode.
type BookingHandler struct {
	Service *lifecycle.Service
	Engine  *matching.Engine
	Logger  *zap.Logger
}

func (h *BookingHandler) respond(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("response encoding failed", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *BookingHandler) respondError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		h.respond(w, http.StatusBadRequest, errorResponse{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, models.ErrJobNotFound),
		errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrLanguageNotFound),
		errors.Is(err, models.ErrNoActiveAssignment):
		h.respond(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrJobTaken),
		errors.Is(err, models.ErrAlreadyBooked):
		h.respond(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrLateCancellation),
		errors.Is(err, fsm.ErrIllegalTransition):
		h.respond(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		h.Logger.Error("request failed", zap.Error(err))
		h.respond(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(":"+name), 10, 64)
}

// CreateBooking handles POST /booking.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
		return
	}
	job, err := h.Service.Store(r.Context(), req, time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.Service.NotifySuitableTranslators(r.Context(), job, 0)
	h.respond(w, http.StatusCreated, job)
}

// GetBooking handles GET /booking/:id.
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	job, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, job)
}

// UpdateBooking handles PUT /booking/:id, the admin edit.
func (h *BookingHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req lifecycle.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
		return
	}
	job, changes, err := h.Service.Update(r.Context(), id, req, time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, struct {
		Job     models.Job            `json:"job"`
		Changes []models.ChangeRecord `json:"changes"`
	}{job, changes})
}

type acceptRequest struct {
	TranslatorID int64 `json:"translator_id"`
}

// AcceptBooking handles POST /booking/:id/accept.
func (h *BookingHandler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
		return
	}
	job, err := h.Service.Accept(r.Context(), id, req.TranslatorID, time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, job)
}

// CancelBookingCustomer handles POST /booking/:id/cancel.
func (h *BookingHandler) CancelBookingCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	job, err := h.Service.CancelByCustomer(r.Context(), id, time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, job)
}

// CancelBookingTranslator handles POST /booking/:id/cancel_translator.
func (h *BookingHandler) CancelBookingTranslator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
		return
	}
	job, err := h.Service.CancelByTranslator(r.Context(), id, req.TranslatorID, time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, job)
}

type endRequest struct {
	UserID int64 `json:"user_id"`
}

// EndBooking handles POST /booking/:id/end.
func (h *BookingHandler) EndBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	var req endRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid request payload"})
		return
	}
	job, err := h.Service.End(r.Context(), id, req.UserID, time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, job)
}

// CustomerNotCall handles POST /booking/:id/customer_not_call.
func (h *BookingHandler) CustomerNotCall(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	job, err := h.Service.CustomerNotCall(r.Context(), id, time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, job)
}

// ReopenBooking handles POST /booking/:id/reopen.
func (h *BookingHandler) ReopenBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	job, err := h.Service.Reopen(r.Context(), id, time.Now())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, job)
}

// PotentialJobs handles GET /translator/:id/potential_jobs.
func (h *BookingHandler) PotentialJobs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid translator id"})
		return
	}
	jobs, err := h.Engine.PotentialJobsFor(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, jobs)
}

// NotifySMS handles POST /booking/:id/notify_sms and reports how many texts
// went out.
func (h *BookingHandler) NotifySMS(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respond(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}
	job, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	sent, err := h.Service.NotifySMSTranslators(r.Context(), job)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, struct {
		Sent int `json:"sent"`
	}{sent})
}
