// Package calculator derives each survey element from an organization's CRM
// records for one reporting year.
//
// Every calculator is a pure function of its Input. The map below covers the
// calculated elements; settings-sourced elements are built from the
// manifest's setting_key. The taxonomy completeness check keeps the two in
// step.
package calculator

import (
	"maps"
	"sort"

	"amsf/internal/crm/models"
	"amsf/internal/taxonomy"
)

// Func computes one element. It never fails: missing data yields the zero
// value of the element's type.
type Func func(in *Input) Result

var builtin = map[string]Func{
	// Clients
	"a1101": activeClientCount,
	"a1102": clientsOfType(models.ClientNaturalPerson),
	"a1103": clientsOfType(models.ClientLegalEntity),
	"a1104": clientsOfType(models.ClientTrust),
	"a1105": newClientCount,
	"a1106": pepClientCount,
	"a1107": highRiskClientCount,
	"a1108": vaspClientCount,
	"a1109": endedRelationshipCount,
	"a1110": clientsByJurisdiction,
	"a1111": highRiskClientShare,
	"a1112": pepClientShare,
	"a1113": monacoResidentCount,
	"a1114": foreignResidentCount,
	"a1115": hasPEPClients,

	// Transactions
	"a1201": byClientTotalCount,
	"a1202": byClientSalesCount,
	"a1203": countOf(CurrentYear, ByClient, PurchaseOrSale, ClientOfType(models.ClientNaturalPerson)),
	"a1204": countOf(CurrentYear, ByClient, PurchaseOrSale, ClientOfType(models.ClientLegalEntity)),
	"a1205": countOf(CurrentYear, ByClient, PurchaseOrSale, ClientOfType(models.ClientTrust)),
	"a1206": rentalUnitsOf(CurrentYear, ByClient),
	"a1207": valueOf(CurrentYear, ByClient, Purchase),
	"a1208": valueOf(CurrentYear, ByClient, Sale),
	"a1209": byClientRentalValue,
	"a1210": countOf(CurrentYear, WithClient, PurchaseOrSale),
	"a1211": valueOf(CurrentYear, WithClient, PurchaseOrSale),
	"a1212": rentalUnitsOf(CurrentYear, WithClient),
	"a1213": distinctClients(CurrentYear, ByClient, Purchase, NotDualAgent),
	"a1214": distinctClients(CurrentYear, ByClient, Sale, NotDualAgent),
	"a1215": salesByClientJurisdiction,
	"a1216": salesValueByPropertyCountry,
	"a1217": countOf(CurrentYear, PaidInCash),
	"a1218": cashAmount,
	"a1219": countOf(CurrentYear, PaidInCrypto),
	"a1220": acceptsCash,
	"a1221": countOf(Lookback, ByClient, PurchaseOrSale),
	"a1222": valueOf(Lookback, ByClient, PurchaseOrSale),
	"a1223": highRiskSalesShare,
	"a1224": countOf(CurrentYear, PurchaseOrSale, DualAgent),
	"a1225": countOf(CurrentYear, PurchaseOrSale, PEPClient),

	// Managed properties
	"a1301": managedPropertyCount,
	"a1302": newMandateCount,
	"a1303": endedMandateCount,
	"a1304": managedMonthlyRent,
	"a1305": managementFees,
	"a1306": highRentPropertyCount,

	// Beneficial owners
	"a1401": ownerCount,
	"a1402": pepOwnerCount,
	"a1403": ownersByNationality,
	"a1404": netWorthAbove(HighNetWorth),
	"a1405": netWorthAbove(VeryHighNetWorth),
	"a1406": majorOwnerCount,
	"a1407": pepOwnerShare,

}

// Registry maps element codes to calculators.
type Registry struct {
	funcs map[string]Func
}

// For returns the built-in calculators plus one settings reader per
// from_settings element of tax, keyed by that element's setting_key.
func For(tax *taxonomy.Taxonomy) *Registry {
	funcs := maps.Clone(builtin)
	for _, el := range tax.Elements() {
		if el.Source == taxonomy.SourceFromSettings {
			funcs[el.Code] = settingFunc(el.ValueType, el.SettingKey)
		}
	}
	return &Registry{funcs: funcs}
}

// NewRegistry builds a registry from an explicit map. Used by tests.
func NewRegistry(funcs map[string]Func) *Registry {
	return &Registry{funcs: funcs}
}

func (r *Registry) Lookup(code string) (Func, bool) {
	f, ok := r.funcs[code]
	return f, ok
}

// Codes returns registered codes in sorted order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.funcs))
	for code := range r.funcs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// CalculateAll runs every calculator over one input.
func (r *Registry) CalculateAll(in *Input) map[string]Result {
	out := make(map[string]Result, len(r.funcs))
	for code, f := range r.funcs {
		out[code] = f(in)
	}
	return out
}
