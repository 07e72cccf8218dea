package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/draft"
	"github.com/tradeline-crm/api/internal/geo"
	"github.com/tradeline-crm/api/internal/service"
)

// EstimateHandler computes delivery/installation estimates for the quote
// editor. Results are never persisted.
type EstimateHandler struct {
	svc *service.EstimateService
}

// NewEstimateHandler creates a new EstimateHandler.
func NewEstimateHandler(svc *service.EstimateService) *EstimateHandler {
	return &EstimateHandler{svc: svc}
}

// RegisterRoutes registers estimate endpoints on the given Chi router.
func (h *EstimateHandler) RegisterRoutes(r chi.Router) {
	r.Post("/estimates", h.Compute)
}

type estimateRequest struct {
	Postcode          string          `json:"postcode"`
	InstallationHours decimal.Decimal `json:"installation_hours"`
}

type estimateResponse struct {
	DistanceMiles      string `json:"distance_miles"`
	TravelTimeMinutes  string `json:"travel_time_minutes"`
	FittingDays        int    `json:"fitting_days"`
	Overnight          bool   `json:"overnight"`
	Nights             int    `json:"nights"`
	MileageCost        string `json:"mileage_cost"`
	LabourCost         string `json:"labour_cost"`
	HotelCost          string `json:"hotel_cost"`
	MealsCost          string `json:"meals_cost"`
	TotalCost          string `json:"total_cost"`
	SettingsIncomplete bool   `json:"settings_incomplete"`
}

func toEstimateResponse(e draft.Estimate) estimateResponse {
	return estimateResponse{
		DistanceMiles:      e.DistanceMiles.String(),
		TravelTimeMinutes:  e.TravelTimeMinutes.String(),
		FittingDays:        e.FittingDays,
		Overnight:          e.Overnight,
		Nights:             e.Nights,
		MileageCost:        e.MileageCost.StringFixed(2),
		LabourCost:         e.LabourCost.StringFixed(2),
		HotelCost:          e.HotelCost.StringFixed(2),
		MealsCost:          e.MealsCost.StringFixed(2),
		TotalCost:          e.TotalCost.StringFixed(2),
		SettingsIncomplete: e.SettingsIncomplete,
	}
}

// Compute returns the estimate for a postcode and installation-hour total.
func (h *EstimateHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	estimate, err := h.svc.Compute(r.Context(), req.Postcode, req.InstallationHours)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyPostcode),
			errors.Is(err, service.ErrInvalidHours):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, geo.ErrPostcodeNotFound):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "postcode not found"})
		default:
			log.Printf("ERROR: compute estimate: %v", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "estimate service unavailable"})
		}
		return
	}
	writeJSON(w, http.StatusOK, toEstimateResponse(estimate))
}
