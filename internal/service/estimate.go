package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/database"
	"github.com/tradeline-crm/api/internal/draft"
)

// Errors returned by the estimate service.
var (
	ErrEmptyPostcode = errors.New("postcode is required")
	ErrInvalidHours  = errors.New("installation_hours must be > 0")
)

// A fitter works up to this many installation hours per day.
const hoursPerFittingDay = 8

// Travel beyond this one-way driving time means the crew stays overnight
// rather than commuting daily.
const overnightTravelMinutes = 90

// Assumed average road speed for travel time, in miles per hour.
const averageSpeedMph = 40

// DistanceLookup resolves the road distance between two postcodes.
// Implemented by *geo.Client; faked in tests.
type DistanceLookup interface {
	Distance(ctx context.Context, from, to string) (miles decimal.Decimal, err error)
}

// SettingsStore provides the company settings needed for cost rates.
// Satisfied by *database.Queries.
type SettingsStore interface {
	GetCompanySettings(ctx context.Context) (database.CompanySetting, error)
}

// EstimateService computes delivery/installation cost estimates from the
// customer postcode and the quote's total installation hours.
type EstimateService struct {
	settings SettingsStore
	lookup   DistanceLookup
}

// NewEstimateService creates a new EstimateService.
func NewEstimateService(settings SettingsStore, lookup DistanceLookup) *EstimateService {
	return &EstimateService{settings: settings, lookup: lookup}
}

// Compute derives the full estimate. When the factory postcode or any rate is
// missing from settings, the result carries SettingsIncomplete=true with zero
// costs instead of an error, so the client can explain why nothing is priced.
func (s *EstimateService) Compute(ctx context.Context, postcode string, hours decimal.Decimal) (draft.Estimate, error) {
	if postcode == "" {
		return draft.Estimate{}, ErrEmptyPostcode
	}
	if !hours.IsPositive() {
		return draft.Estimate{}, ErrInvalidHours
	}

	settings, err := s.settings.GetCompanySettings(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return draft.Estimate{SettingsIncomplete: true}, nil
		}
		return draft.Estimate{}, fmt.Errorf("get company settings: %w", err)
	}
	factoryPostcode := settings.FactoryPostcode.String
	hourlyRate := numericToDecimal(settings.HourlyInstallRate)
	mileageRate := numericToDecimal(settings.MileageRate)
	hotelRate := numericToDecimal(settings.HotelNightlyRate)
	mealRate := numericToDecimal(settings.MealAllowance)
	if factoryPostcode == "" || hourlyRate.IsZero() || mileageRate.IsZero() {
		return draft.Estimate{SettingsIncomplete: true}, nil
	}

	miles, err := s.lookup.Distance(ctx, factoryPostcode, postcode)
	if err != nil {
		return draft.Estimate{}, fmt.Errorf("distance lookup: %w", err)
	}

	est := draft.Estimate{DistanceMiles: miles}
	est.TravelTimeMinutes = miles.Div(decimal.NewFromInt(averageSpeedMph)).
		Mul(decimal.NewFromInt(60)).Round(0)

	est.FittingDays = int(hours.Div(decimal.NewFromInt(hoursPerFittingDay)).Ceil().IntPart())
	if est.FittingDays < 1 {
		est.FittingDays = 1
	}

	est.Overnight = est.TravelTimeMinutes.GreaterThan(decimal.NewFromInt(overnightTravelMinutes))
	if est.Overnight {
		est.Nights = est.FittingDays
		if est.FittingDays > 1 {
			est.Nights = est.FittingDays - 1
		}
	}

	roundTrips := decimal.NewFromInt(int64(est.FittingDays))
	if est.Overnight {
		// Crew stays near site: one round trip for the whole job.
		roundTrips = decimal.NewFromInt(1)
	}
	est.MileageCost = miles.Mul(decimal.NewFromInt(2)).Mul(roundTrips).
		Mul(mileageRate).Round(2)
	est.LabourCost = hours.Mul(hourlyRate).Round(2)
	if est.Overnight {
		nights := decimal.NewFromInt(int64(est.Nights))
		est.HotelCost = nights.Mul(hotelRate).Round(2)
		est.MealsCost = nights.Mul(mealRate).Round(2)
	}
	est.TotalCost = est.MileageCost.Add(est.LabourCost).Add(est.HotelCost).Add(est.MealsCost)
	return est, nil
}
