package calculator

import (
	"github.com/shopspring/decimal"

	"amsf/internal/crm/models"
	id "amsf/pkg/domain"
)

func countOwners(in *Input, keep func(models.BeneficialOwner) bool) int {
	n := 0
	for _, b := range in.Owners() {
		if keep == nil || keep(b) {
			n++
		}
	}
	return n
}

func ownerCount(in *Input) Result { return Count(int64(countOwners(in, nil))) }

func ownerIsPEP(b models.BeneficialOwner) bool { return b.IsPEP }

func pepOwnerCount(in *Input) Result { return Count(int64(countOwners(in, ownerIsPEP))) }

func pepOwnerShare(in *Input) Result {
	return Percentage(Percent(countOwners(in, ownerIsPEP), countOwners(in, nil)))
}

func ownersByNationality(in *Input) Result {
	counts := map[string]int64{}
	for _, b := range in.Owners() {
		if code := id.NormalizeCountry(b.Nationality); code != "" {
			counts[code.String()]++
		}
	}
	return CountByKey(counts)
}

// netWorthAbove uses a strict comparison: exactly the threshold is not above it.
func netWorthAbove(threshold decimal.Decimal) Func {
	return func(in *Input) Result {
		return Count(int64(countOwners(in, func(b models.BeneficialOwner) bool {
			return b.NetWorth.GreaterThan(threshold)
		})))
	}
}

func majorOwnerCount(in *Input) Result {
	return Count(int64(countOwners(in, func(b models.BeneficialOwner) bool {
		return b.OwnershipPercent.GreaterThanOrEqual(MajorOwnership)
	})))
}
