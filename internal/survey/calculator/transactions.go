package calculator

import (
	"slices"

	"github.com/shopspring/decimal"

	"amsf/internal/crm/models"
	id "amsf/pkg/domain"
)

func countOf(filters ...TxFilter) Func {
	return func(in *Input) Result {
		return Count(int64(len(in.Transactions(filters...))))
	}
}

func valueOf(filters ...TxFilter) Func {
	return func(in *Input) Result {
		total := decimal.Zero
		for _, t := range in.Transactions(filters...) {
			total = total.Add(t.Value)
		}
		return Amount(total)
	}
}

func rentalUnitsOf(filters ...TxFilter) Func {
	return func(in *Input) Result {
		var units int64
		for _, t := range in.Transactions(append(slices.Clone(filters), Rental)...) {
			units += RentalUnits(t)
		}
		return Count(units)
	}
}

// byClientSalesCount sums the per-client-type counts.
func byClientSalesCount(in *Input) Result {
	var total int64
	for _, ct := range []models.ClientType{models.ClientNaturalPerson, models.ClientLegalEntity, models.ClientTrust} {
		total += countOf(CurrentYear, ByClient, PurchaseOrSale, ClientOfType(ct))(in).Count
	}
	return Count(total)
}

// byClientTotalCount is purchases and sales plus qualifying rental months.
func byClientTotalCount(in *Input) Result {
	return Count(byClientSalesCount(in).Count + rentalUnitsOf(CurrentYear, ByClient)(in).Count)
}

func byClientRentalValue(in *Input) Result {
	total := decimal.Zero
	for _, t := range in.Transactions(CurrentYear, ByClient, Rental) {
		total = total.Add(RentalTotal(t))
	}
	return Amount(total)
}

func distinctClients(filters ...TxFilter) Func {
	return func(in *Input) Result {
		seen := map[id.ClientID]struct{}{}
		for _, t := range in.Transactions(filters...) {
			seen[t.ClientID] = struct{}{}
		}
		return Count(int64(len(seen)))
	}
}

func salesByClientJurisdiction(in *Input) Result {
	counts := map[string]int64{}
	for _, t := range in.Transactions(CurrentYear, ByClient, PurchaseOrSale) {
		if code := in.client(t).Jurisdiction(); code != "" {
			counts[code.String()]++
		}
	}
	return CountByKey(counts)
}

func salesValueByPropertyCountry(in *Input) Result {
	sums := map[string]decimal.Decimal{}
	for _, t := range in.Transactions(CurrentYear, PurchaseOrSale) {
		code := id.NormalizeCountry(t.PropertyCountry)
		if code == "" {
			continue
		}
		sums[code.String()] = sums[code.String()].Add(t.Value)
	}
	return AmountByKey(sums)
}

func cashAmount(in *Input) Result {
	total := decimal.Zero
	for _, t := range in.Transactions(CurrentYear, PaidInCash) {
		total = total.Add(CashPaid(t))
	}
	return Amount(total)
}

func acceptsCash(in *Input) Result {
	return Flag(len(in.Transactions(CurrentYear, PaidInCash)) > 0)
}

func highRiskSalesShare(in *Input) Result {
	all := in.Transactions(CurrentYear, ByClient, PurchaseOrSale)
	risky := in.Transactions(CurrentYear, ByClient, PurchaseOrSale, HighRiskClient)
	return Percentage(Percent(len(risky), len(all)))
}
