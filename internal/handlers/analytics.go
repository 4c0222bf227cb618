package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sparkride/apiserver/internal/services"
)

// AnalyticsHandler serves the admin dashboard rollups.
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

func NewAnalyticsHandler(analytics *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// AnalyticsRouter registers analytics routes; all of them are admin-gated.
func AnalyticsRouter(
	r chi.Router,
	analytics *services.AnalyticsService,
	authMiddleware func(http.Handler) http.Handler,
	adminMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAnalyticsHandler(analytics)

	r.Use(authMiddleware, adminMiddleware)
	r.Get("/total-revenue", handler.TotalRevenue)
	r.Get("/total-bikes", handler.TotalBikes)
	r.Get("/total-reservations", handler.TotalReservations)
	r.Get("/popular-bikes-rentals", handler.PopularBikes)
	r.Get("/most-active-stations", handler.ActiveStations)
	r.Get("/revenue-over-time", handler.RevenueOverTime)
}

func (h *AnalyticsHandler) TotalRevenue(w http.ResponseWriter, r *http.Request) {
	total, err := h.analytics.TotalRevenue(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute total revenue")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total_revenue": total})
}

func (h *AnalyticsHandler) TotalBikes(w http.ResponseWriter, r *http.Request) {
	total, err := h.analytics.TotalBikes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count bikes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total_bikes": total})
}

func (h *AnalyticsHandler) TotalReservations(w http.ResponseWriter, r *http.Request) {
	total, err := h.analytics.TotalReservations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count reservations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total_reservations": total})
}

func (h *AnalyticsHandler) PopularBikes(w http.ResponseWriter, r *http.Request) {
	items, err := h.analytics.PopularBikes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute popular bikes")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AnalyticsHandler) ActiveStations(w http.ResponseWriter, r *http.Request) {
	items, err := h.analytics.ActiveStations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute active stations")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AnalyticsHandler) RevenueOverTime(w http.ResponseWriter, r *http.Request) {
	items, err := h.analytics.RevenueOverTime(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute revenue over time")
		return
	}
	writeJSON(w, http.StatusOK, items)
}
