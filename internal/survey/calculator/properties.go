package calculator

import (
	"github.com/shopspring/decimal"

	"amsf/internal/crm/models"
)

func activeProperties(in *Input) []models.ManagedProperty {
	var out []models.ManagedProperty
	for _, p := range in.Properties() {
		if p.ActiveIn(in.Year) {
			out = append(out, p)
		}
	}
	return out
}

func managedPropertyCount(in *Input) Result {
	return Count(int64(len(activeProperties(in))))
}

func newMandateCount(in *Input) Result {
	n := 0
	for _, p := range in.Properties() {
		if p.ManagementStart.UTC().Year() == in.Year {
			n++
		}
	}
	return Count(int64(n))
}

func endedMandateCount(in *Input) Result {
	from, to := in.yearBounds()
	n := 0
	for _, p := range in.Properties() {
		if within(p.ManagementEnd, from, to) {
			n++
		}
	}
	return Count(int64(n))
}

func managedMonthlyRent(in *Input) Result {
	total := decimal.Zero
	for _, p := range activeProperties(in) {
		total = total.Add(p.MonthlyRent)
	}
	return Amount(total)
}

// managementFees is rent x fee rate over the months managed in the year.
func managementFees(in *Input) Result {
	total := decimal.Zero
	for _, p := range activeProperties(in) {
		months := decimal.NewFromInt(int64(p.MonthsActiveIn(in.Year)))
		total = total.Add(p.MonthlyRent.Mul(p.ManagementFeePercent).Div(hundred).Mul(months))
	}
	return Amount(total.Round(2))
}

func highRentPropertyCount(in *Input) Result {
	n := 0
	for _, p := range activeProperties(in) {
		if p.MonthlyRent.GreaterThanOrEqual(RentalThreshold) {
			n++
		}
	}
	return Count(int64(n))
}
