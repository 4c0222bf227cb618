package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sparkride/apiserver/internal/services"
	"github.com/sparkride/apiserver/internal/store"
	"github.com/sparkride/apiserver/types"
)

// StationHandler provides HTTP handlers for stations.
type StationHandler struct {
	inventory *services.InventoryService
}

func NewStationHandler(inventory *services.InventoryService) *StationHandler {
	return &StationHandler{inventory: inventory}
}

// StationRouter registers station routes; all of them are admin-gated.
func StationRouter(
	r chi.Router,
	inventory *services.InventoryService,
	authMiddleware func(http.Handler) http.Handler,
	adminMiddleware func(http.Handler) http.Handler,
) {
	handler := NewStationHandler(inventory)

	r.Use(authMiddleware, adminMiddleware)
	r.Get("/", handler.ListStations)
	r.Post("/", handler.CreateStation)
	r.Route("/{stationID}", func(r chi.Router) {
		r.Get("/", handler.GetStation)
		r.Put("/", handler.UpdateStation)
		r.Delete("/", handler.DeleteStation)
	})
}

func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.inventory.ListStations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list stations")
		return
	}
	writeJSON(w, http.StatusOK, stations)
}

func (h *StationHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "stationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	station, err := h.inventory.GetStation(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "station not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch station")
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func (h *StationHandler) CreateStation(w http.ResponseWriter, r *http.Request) {
	req, err := parseStationRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.inventory.CreateStation(r.Context(), types.Station{
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create station")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *StationHandler) UpdateStation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "stationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := parseStationRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.inventory.UpdateStation(r.Context(), types.Station{
		ID:      id,
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "station not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update station")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *StationHandler) DeleteStation(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "stationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.inventory.DeleteStation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "station not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete station")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StationRequest is the JSON payload for station create/update.
type StationRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
}

func parseStationRequest(r *http.Request) (StationRequest, error) {
	var req StationRequest
	if err := decodeJSON(r, &req); err != nil {
		return StationRequest{}, errors.New("invalid request")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	if err := validate.Struct(req); err != nil {
		return StationRequest{}, errors.New("name and address are required")
	}
	return req, nil
}
