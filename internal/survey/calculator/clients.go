package calculator

import (
	"amsf/internal/crm/models"
	id "amsf/pkg/domain"
)

func countClients(in *Input, keep func(models.Client) bool) int {
	n := 0
	for _, c := range in.ActiveClients() {
		if keep(c) {
			n++
		}
	}
	return n
}

func clientsOfType(ct models.ClientType) Func {
	return func(in *Input) Result {
		return Count(int64(countClients(in, func(c models.Client) bool { return c.Type == ct })))
	}
}

// activeClientCount is the sum of the per-type counts so the parent always
// equals its children.
func activeClientCount(in *Input) Result {
	var total int64
	for _, ct := range []models.ClientType{models.ClientNaturalPerson, models.ClientLegalEntity, models.ClientTrust} {
		total += clientsOfType(ct)(in).Count
	}
	return Count(total)
}

// newClientCount uses the onboarding timestamp, never the record creation time.
func newClientCount(in *Input) Result {
	from, to := in.yearBounds()
	n := 0
	for _, c := range in.Clients() {
		if within(c.BecameClientAt, from, to) {
			n++
		}
	}
	return Count(int64(n))
}

func endedRelationshipCount(in *Input) Result {
	from, to := in.yearBounds()
	n := 0
	for _, c := range in.Clients() {
		if within(c.RelationshipEndedAt, from, to) {
			n++
		}
	}
	return Count(int64(n))
}

func isPEP(c models.Client) bool      { return c.IsPEP }
func isHighRisk(c models.Client) bool { return c.RiskLevel == models.RiskHigh }
func isVASP(c models.Client) bool     { return c.IsVASP }

func pepClientCount(in *Input) Result      { return Count(int64(countClients(in, isPEP))) }
func highRiskClientCount(in *Input) Result { return Count(int64(countClients(in, isHighRisk))) }
func vaspClientCount(in *Input) Result     { return Count(int64(countClients(in, isVASP))) }

func hasPEPClients(in *Input) Result {
	return Flag(countClients(in, isPEP) > 0)
}

func highRiskClientShare(in *Input) Result {
	return Percentage(Percent(countClients(in, isHighRisk), len(in.ActiveClients())))
}

func pepClientShare(in *Input) Result {
	return Percentage(Percent(countClients(in, isPEP), len(in.ActiveClients())))
}

// clientsByJurisdiction merges nationality and incorporation country into
// one ISO2-keyed mapping; clients without a usable code are skipped.
func clientsByJurisdiction(in *Input) Result {
	counts := map[string]int64{}
	for _, c := range in.ActiveClients() {
		if code := c.Jurisdiction(); code != "" {
			counts[code.String()]++
		}
	}
	return CountByKey(counts)
}

func monacoResidentCount(in *Input) Result {
	return Count(int64(countClients(in, func(c models.Client) bool {
		return id.NormalizeCountry(c.ResidenceCountry) == id.Monaco
	})))
}

func foreignResidentCount(in *Input) Result {
	return Count(int64(countClients(in, func(c models.Client) bool {
		code := id.NormalizeCountry(c.ResidenceCountry)
		return code != "" && code != id.Monaco
	})))
}
