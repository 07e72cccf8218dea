package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/database"
)

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries.
type SettingsStore interface {
	GetCompanySettings(ctx context.Context) (database.CompanySetting, error)
	UpsertCompanySettings(ctx context.Context, arg database.UpsertCompanySettingsParams) (database.CompanySetting, error)
}

// SettingsHandler exposes the company settings singleton.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// RegisterRoutes registers the read endpoint; writes are registered
// separately so the router can restrict them to OWNER.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.Get)
}

// RegisterOwnerRoutes registers the endpoints that need OWNER.
func (h *SettingsHandler) RegisterOwnerRoutes(r chi.Router) {
	r.Put("/settings", h.Upsert)
}

// --- Request / Response types ---

type settingsRequest struct {
	CompanyName           string `json:"company_name"`
	FactoryPostcode       string `json:"factory_postcode"`
	HourlyInstallRate     string `json:"hourly_install_rate"`
	MileageRate           string `json:"mileage_rate"`
	HotelNightlyRate      string `json:"hotel_nightly_rate"`
	MealAllowance         string `json:"meal_allowance"`
	VatRate               string `json:"vat_rate"`
	DefaultDepositPercent string `json:"default_deposit_percent"`
}

type settingsResponse struct {
	CompanyName           string `json:"company_name,omitempty"`
	FactoryPostcode       string `json:"factory_postcode,omitempty"`
	HourlyInstallRate     string `json:"hourly_install_rate"`
	MileageRate           string `json:"mileage_rate"`
	HotelNightlyRate      string `json:"hotel_nightly_rate"`
	MealAllowance         string `json:"meal_allowance"`
	VatRate               string `json:"vat_rate"`
	DefaultDepositPercent string `json:"default_deposit_percent"`
}

func toSettingsResponse(s database.CompanySetting) settingsResponse {
	return settingsResponse{
		CompanyName:           s.CompanyName.String,
		FactoryPostcode:       s.FactoryPostcode.String,
		HourlyInstallRate:     numericString(s.HourlyInstallRate),
		MileageRate:           numericString(s.MileageRate),
		HotelNightlyRate:      numericString(s.HotelNightlyRate),
		MealAllowance:         numericString(s.MealAllowance),
		VatRate:               numericString(s.VatRate),
		DefaultDepositPercent: numericString(s.DefaultDepositPercent),
	}
}

// --- Handlers ---

// Get returns the company settings. An empty response body field means the
// value has not been configured yet.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetCompanySettings(r.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusOK, settingsResponse{
				HourlyInstallRate:     "0.00",
				MileageRate:           "0.00",
				HotelNightlyRate:      "0.00",
				MealAllowance:         "0.00",
				VatRate:               "20.00",
				DefaultDepositPercent: "50.00",
			})
			return
		}
		log.Printf("ERROR: get settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// Upsert writes the settings singleton.
func (h *SettingsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := database.UpsertCompanySettingsParams{
		CompanyName:     nullText(req.CompanyName),
		FactoryPostcode: nullText(req.FactoryPostcode),
	}

	rates := []struct {
		name  string
		value string
		dest  *pgtype.Numeric
	}{
		{"hourly_install_rate", req.HourlyInstallRate, &params.HourlyInstallRate},
		{"mileage_rate", req.MileageRate, &params.MileageRate},
		{"hotel_nightly_rate", req.HotelNightlyRate, &params.HotelNightlyRate},
		{"meal_allowance", req.MealAllowance, &params.MealAllowance},
		{"vat_rate", req.VatRate, &params.VatRate},
		{"default_deposit_percent", req.DefaultDepositPercent, &params.DefaultDepositPercent},
	}
	for _, rate := range rates {
		if rate.value == "" {
			continue
		}
		d, err := decimal.NewFromString(rate.value)
		if err != nil || d.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": rate.name + " must be a non-negative number"})
			return
		}
		*rate.dest = decimalNumeric(d)
	}

	settings, err := h.store.UpsertCompanySettings(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: upsert settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}
