package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/geo"
	"github.com/tradeline-crm/api/internal/handler"
	"github.com/tradeline-crm/api/internal/service"
)

type mockEstimateSettings struct {
	settings *database.CompanySetting
}

func (m *mockEstimateSettings) GetCompanySettings(_ context.Context) (database.CompanySetting, error) {
	if m.settings == nil {
		return database.CompanySetting{}, pgx.ErrNoRows
	}
	return *m.settings, nil
}

type mockDistance struct {
	miles decimal.Decimal
	err   error
}

func (m *mockDistance) Distance(_ context.Context, from, to string) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	return m.miles, nil
}

func setupEstimateRouter(t *testing.T, settings *database.CompanySetting, lookup service.DistanceLookup) *chi.Mux {
	t.Helper()
	svc := service.NewEstimateService(&mockEstimateSettings{settings: settings}, lookup)
	h := handler.NewEstimateHandler(svc)
	r := chi.NewRouter()
	r.Route("/", h.RegisterRoutes)
	return r
}

func estimateSettings(t *testing.T) *database.CompanySetting {
	t.Helper()
	return &database.CompanySetting{
		ID:                1,
		FactoryPostcode:   pgtype.Text{String: "LS1 4AP", Valid: true},
		HourlyInstallRate: mustNumeric(t, "45.00"),
		MileageRate:       mustNumeric(t, "0.50"),
		HotelNightlyRate:  mustNumeric(t, "80.00"),
		MealAllowance:     mustNumeric(t, "25.00"),
	}
}

func postEstimate(t *testing.T, router http.Handler, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/estimates", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestEstimateCompute(t *testing.T) {
	lookup := &mockDistance{miles: decimal.NewFromInt(20)}
	router := setupEstimateRouter(t, estimateSettings(t), lookup)

	rr := postEstimate(t, router, map[string]interface{}{
		"postcode":           "M1 1AE",
		"installation_hours": "6",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeObject(t, rr)
	if resp["overnight"] != false {
		t.Errorf("overnight: got %v, want false", resp["overnight"])
	}
	if resp["fitting_days"] != float64(1) {
		t.Errorf("fitting_days: got %v, want 1", resp["fitting_days"])
	}
	// 20 miles each way, one round trip at 0.50/mile.
	if resp["mileage_cost"] != "20.00" {
		t.Errorf("mileage_cost: got %v, want 20.00", resp["mileage_cost"])
	}
	if resp["labour_cost"] != "270.00" {
		t.Errorf("labour_cost: got %v, want 270.00", resp["labour_cost"])
	}
	if resp["total_cost"] != "290.00" {
		t.Errorf("total_cost: got %v, want 290.00", resp["total_cost"])
	}
}

func TestEstimateSettingsIncomplete(t *testing.T) {
	lookup := &mockDistance{miles: decimal.NewFromInt(20)}
	router := setupEstimateRouter(t, nil, lookup)

	rr := postEstimate(t, router, map[string]interface{}{
		"postcode":           "M1 1AE",
		"installation_hours": "6",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200; body: %s", rr.Code, rr.Body.String())
	}
	resp := decodeObject(t, rr)
	if resp["settings_incomplete"] != true {
		t.Errorf("settings_incomplete: got %v, want true", resp["settings_incomplete"])
	}
	if resp["total_cost"] != "0.00" {
		t.Errorf("total_cost: got %v, want 0.00", resp["total_cost"])
	}
}

func TestEstimateEmptyPostcode(t *testing.T) {
	router := setupEstimateRouter(t, estimateSettings(t), &mockDistance{})

	rr := postEstimate(t, router, map[string]interface{}{
		"postcode":           "",
		"installation_hours": "6",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestEstimateUnknownPostcode(t *testing.T) {
	router := setupEstimateRouter(t, estimateSettings(t), &mockDistance{err: geo.ErrPostcodeNotFound})

	rr := postEstimate(t, router, map[string]interface{}{
		"postcode":           "ZZ99 9ZZ",
		"installation_hours": "6",
	})

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422; body: %s", rr.Code, rr.Body.String())
	}
}
