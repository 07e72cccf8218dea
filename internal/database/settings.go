package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const settingsColumns = `id, company_name, factory_postcode, hourly_install_rate, mileage_rate,
	hotel_nightly_rate, meal_allowance, vat_rate, default_deposit_percent, updated_at`

func scanSettings(row interface{ Scan(...any) error }) (CompanySetting, error) {
	var s CompanySetting
	err := row.Scan(&s.ID, &s.CompanyName, &s.FactoryPostcode, &s.HourlyInstallRate,
		&s.MileageRate, &s.HotelNightlyRate, &s.MealAllowance, &s.VatRate,
		&s.DefaultDepositPercent, &s.UpdatedAt)
	return s, err
}

func (q *Queries) GetCompanySettings(ctx context.Context) (CompanySetting, error) {
	return scanSettings(q.db.QueryRow(ctx,
		`SELECT `+settingsColumns+` FROM company_settings WHERE id = 1`))
}

type UpsertCompanySettingsParams struct {
	CompanyName           pgtype.Text
	FactoryPostcode       pgtype.Text
	HourlyInstallRate     pgtype.Numeric
	MileageRate           pgtype.Numeric
	HotelNightlyRate      pgtype.Numeric
	MealAllowance         pgtype.Numeric
	VatRate               pgtype.Numeric
	DefaultDepositPercent pgtype.Numeric
}

// UpsertCompanySettings writes the singleton settings row (id fixed at 1).
// vat_rate and default_deposit_percent are NOT NULL: a NULL argument keeps the
// stored rate, or falls back to 20/50 on the first write.
func (q *Queries) UpsertCompanySettings(ctx context.Context, arg UpsertCompanySettingsParams) (CompanySetting, error) {
	return scanSettings(q.db.QueryRow(ctx,
		`INSERT INTO company_settings (id, company_name, factory_postcode, hourly_install_rate,
		     mileage_rate, hotel_nightly_rate, meal_allowance, vat_rate, default_deposit_percent)
		 VALUES (1, $1, $2, $3, $4, $5, $6, COALESCE($7, 20), COALESCE($8, 50))
		 ON CONFLICT (id) DO UPDATE SET
		     company_name = EXCLUDED.company_name,
		     factory_postcode = EXCLUDED.factory_postcode,
		     hourly_install_rate = EXCLUDED.hourly_install_rate,
		     mileage_rate = EXCLUDED.mileage_rate,
		     hotel_nightly_rate = EXCLUDED.hotel_nightly_rate,
		     meal_allowance = EXCLUDED.meal_allowance,
		     vat_rate = COALESCE($7, company_settings.vat_rate),
		     default_deposit_percent = COALESCE($8, company_settings.default_deposit_percent),
		     updated_at = now()
		 RETURNING `+settingsColumns,
		arg.CompanyName, arg.FactoryPostcode, arg.HourlyInstallRate, arg.MileageRate,
		arg.HotelNightlyRate, arg.MealAllowance, arg.VatRate, arg.DefaultDepositPercent))
}
