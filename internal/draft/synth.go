package draft

import (
	"github.com/shopspring/decimal"
	"github.com/tradeline-crm/api/internal/enum"
)

// Estimate is a transient delivery/installation cost estimate. It is never
// persisted; the watcher recomputes it whenever its inputs change.
type Estimate struct {
	DistanceMiles     decimal.Decimal
	TravelTimeMinutes decimal.Decimal
	FittingDays       int
	Overnight         bool
	Nights            int
	MileageCost       decimal.Decimal
	LabourCost        decimal.Decimal
	HotelCost         decimal.Decimal
	MealsCost         decimal.Decimal
	TotalCost         decimal.Decimal
	SettingsIncomplete bool
}

// isDeliveryLine matches synthesized lines by tag, or by the legacy combined
// description on custom lines written before line_type existed.
func isDeliveryLine(it *Item) bool {
	if it.LineType == enum.LineTypeDelivery || it.LineType == enum.LineTypeInstallation {
		return true
	}
	return it.IsCustom && it.Description == legacyDeliveryLabel
}

// HasDeliveryLines reports whether a synthesized delivery/install pair (or a
// legacy combined line) is present.
func (q *Quote) HasDeliveryLines() bool {
	for _, it := range q.Items {
		if isDeliveryLine(it) {
			return true
		}
	}
	return false
}

// AddDeliveryLines promotes a fetched estimate into concrete line items:
// a DELIVERY line for mileage+hotel+meals and an INSTALLATION line for labour,
// each only when its cost is positive. Only one pair may exist at a time.
func (q *Quote) AddDeliveryLines(est Estimate) error {
	if q.HasDeliveryLines() {
		return ErrDeliveryLinesPresent
	}

	deliveryCost := est.MileageCost.Add(est.HotelCost).Add(est.MealsCost)
	installCost := est.LabourCost
	if deliveryCost.IsZero() && installCost.IsZero() {
		return ErrZeroEstimate
	}

	one := decimal.NewFromInt(1)
	if deliveryCost.IsPositive() {
		q.Items = append(q.Items, &Item{
			Description: "Delivery",
			Quantity:    one,
			UnitPrice:   deliveryCost,
			IsCustom:    true,
			LineType:    enum.LineTypeDelivery,
		})
	}
	if installCost.IsPositive() {
		q.Items = append(q.Items, &Item{
			Description: "Installation",
			Quantity:    one,
			UnitPrice:   installCost,
			IsCustom:    true,
			LineType:    enum.LineTypeInstallation,
		})
	}
	return nil
}

// RemoveDeliveryLines deletes every synthesized (or legacy) delivery and
// installation line. Removing when none exist is a no-op.
func (q *Quote) RemoveDeliveryLines() {
	kept := q.Items[:0]
	for _, it := range q.Items {
		if !isDeliveryLine(it) {
			kept = append(kept, it)
		}
	}
	q.Items = kept
}
