package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sparkride/apiserver/internal/services"
	"github.com/sparkride/apiserver/internal/store"
	"github.com/sparkride/apiserver/types"
)

// ReservationHandler provides HTTP handlers for the reservation workflow.
type ReservationHandler struct {
	reservations *services.ReservationService
	userService  *services.UserService
}

func NewReservationHandler(reservations *services.ReservationService, userService *services.UserService) *ReservationHandler {
	return &ReservationHandler{
		reservations: reservations,
		userService:  userService,
	}
}

// ReservationRouter registers reservation routes on the given router.
func ReservationRouter(
	r chi.Router,
	reservations *services.ReservationService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
	adminMiddleware func(http.Handler) http.Handler,
) {
	handler := NewReservationHandler(reservations, userService)

	r.With(authMiddleware).Post("/rent/{bikeID}", handler.Rent)
	r.With(authMiddleware).Post("/return/{reservationID}", handler.Return)
	r.With(authMiddleware).Get("/user", handler.ListOwn)
	r.With(authMiddleware, adminMiddleware).Get("/", handler.ListAll)
	r.With(authMiddleware, adminMiddleware).Put("/{reservationID}/status", handler.OverrideStatus)
	r.With(authMiddleware, adminMiddleware).Delete("/{reservationID}", handler.Delete)
}

func (h *ReservationHandler) Rent(w http.ResponseWriter, r *http.Request) {
	bikeID, err := parseIDParam(r, "bikeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "both start and end dates are required")
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date")
		return
	}

	reservation, err := h.reservations.Rent(r.Context(), userID, bikeID, startDate, endDate)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDates),
			errors.Is(err, services.ErrBikeUnavailable):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrCodeSpaceExhausted):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create reservation")
		}
		return
	}
	writeJSON(w, http.StatusCreated, reservation)
}

func (h *ReservationHandler) Return(w http.ResponseWriter, r *http.Request) {
	reservationID, err := parseIDParam(r, "reservationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	isAdmin, err := h.callerIsAdmin(r, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	reservation, err := h.reservations.Return(r.Context(), reservationID, userID, isAdmin)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "reservation not found")
		case errors.Is(err, services.ErrAlreadyReturned):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrNotOwner):
			writeError(w, http.StatusForbidden, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to return reservation")
		}
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (h *ReservationHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.reservations.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

func (h *ReservationHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reservations, err := h.reservations.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	writeJSON(w, http.StatusOK, reservations)
}

func (h *ReservationHandler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	reservationID, err := parseIDParam(r, "reservationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req StatusOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	reservation, err := h.reservations.OverrideStatus(r.Context(), reservationID, strings.TrimSpace(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "reservation not found")
		case errors.Is(err, services.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update reservation status")
		}
		return
	}
	writeJSON(w, http.StatusOK, reservation)
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	reservationID, err := parseIDParam(r, "reservationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.reservations.Delete(r.Context(), reservationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reservation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete reservation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ReservationHandler) callerIsAdmin(r *http.Request, userID int) (bool, error) {
	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(user.Role, types.RoleAdmin), nil
}

// RentRequest is the JSON payload for renting a bike. Dates are calendar
// dates; a time-of-day component is accepted but not required.
type RentRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

// StatusOverrideRequest is the JSON payload for the admin status override.
type StatusOverrideRequest struct {
	Status string `json:"status"`
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
