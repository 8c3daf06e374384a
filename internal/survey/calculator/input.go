package calculator

import (
	"time"

	"github.com/shopspring/decimal"

	"amsf/internal/crm/models"
	id "amsf/pkg/domain"
)

var (
	// RentalThreshold is the monthly rent at or above which a rental counts.
	RentalThreshold = decimal.NewFromInt(10_000)
	// HighNetWorth and VeryHighNetWorth are strict lower bounds.
	HighNetWorth     = decimal.NewFromInt(5_000_000)
	VeryHighNetWorth = decimal.NewFromInt(50_000_000)
	// MajorOwnership is the ownership share that makes an owner significant.
	MajorOwnership = decimal.NewFromInt(25)

	hundred = decimal.NewFromInt(100)
)

// LookbackYears is the width of the five-year window [year-4, year].
const LookbackYears = 5

// Input is one organization's dataset for one reporting year, with
// soft-deleted records already dropped.
type Input struct {
	Year int
	Data *models.Dataset

	clients      []models.Client
	active       []models.Client
	transactions []models.Transaction
	properties   []models.ManagedProperty
	owners       []models.BeneficialOwner
}

// NewInput filters the dataset once. Transactions, properties, and owners
// whose client is deleted or unknown are dropped with it.
func NewInput(d *models.Dataset, year int) *Input {
	d.Index()
	in := &Input{Year: year, Data: d}

	for _, c := range d.Clients {
		if c.IsDeleted() || !knownClientType(c.Type) {
			continue
		}
		in.clients = append(in.clients, c)
		if c.ActiveIn(year) {
			in.active = append(in.active, c)
		}
	}
	for _, t := range d.Transactions {
		if t.IsDeleted() || !in.liveClient(t.ClientID) {
			continue
		}
		in.transactions = append(in.transactions, t)
	}
	for _, p := range d.ManagedProperties {
		if p.IsDeleted() || !in.liveClient(p.ClientID) {
			continue
		}
		in.properties = append(in.properties, p)
	}
	for _, b := range d.BeneficialOwners {
		if b.IsDeleted() {
			continue
		}
		c, ok := d.Client(b.ClientID)
		if !ok || !c.ActiveIn(year) || c.Type == models.ClientNaturalPerson {
			continue
		}
		in.owners = append(in.owners, b)
	}
	return in
}

func knownClientType(t models.ClientType) bool {
	return t == models.ClientNaturalPerson || t == models.ClientLegalEntity || t == models.ClientTrust
}

func (in *Input) liveClient(clientID id.ClientID) bool {
	c, ok := in.Data.Client(clientID)
	return ok && !c.IsDeleted() && knownClientType(c.Type)
}

func (in *Input) client(t models.Transaction) models.Client {
	c, _ := in.Data.Client(t.ClientID)
	return c
}

// ActiveClients are clients whose relationship overlaps the year.
func (in *Input) ActiveClients() []models.Client { return in.active }

// Clients are all non-deleted clients.
func (in *Input) Clients() []models.Client { return in.clients }

func (in *Input) Properties() []models.ManagedProperty { return in.properties }

// Owners are beneficial owners of active legal entities and trusts.
func (in *Input) Owners() []models.BeneficialOwner { return in.owners }

// Transactions returns live transactions matching every filter.
func (in *Input) Transactions(filters ...TxFilter) []models.Transaction {
	var out []models.Transaction
next:
	for _, t := range in.transactions {
		for _, f := range filters {
			if !f(in, t) {
				continue next
			}
		}
		out = append(out, t)
	}
	return out
}

func (in *Input) yearBounds() (time.Time, time.Time) {
	return models.YearStart(in.Year), models.YearEnd(in.Year)
}

func within(t *time.Time, from, to time.Time) bool {
	return t != nil && !t.Before(from) && !t.After(to)
}

// TxFilter selects transactions.
type TxFilter func(in *Input, t models.Transaction) bool

// CurrentYear keeps transactions dated exactly in the reporting year.
func CurrentYear(in *Input, t models.Transaction) bool { return t.InYear(in.Year) }

// Lookback keeps transactions dated in [year-4, year].
func Lookback(in *Input, t models.Transaction) bool {
	y := t.Date.UTC().Year()
	return y >= in.Year-(LookbackYears-1) && y <= in.Year
}

func PurchaseOrSale(_ *Input, t models.Transaction) bool { return t.IsPurchaseOrSale() }
func Purchase(_ *Input, t models.Transaction) bool       { return t.Type == models.TransactionPurchase }
func Sale(_ *Input, t models.Transaction) bool           { return t.Type == models.TransactionSale }
func Rental(_ *Input, t models.Transaction) bool         { return t.IsRental() }

// ByClient keeps transactions where the client was the principal.
func ByClient(_ *Input, t models.Transaction) bool { return t.IsByClient() }

// WithClient is the complement of ByClient.
func WithClient(_ *Input, t models.Transaction) bool { return !t.IsByClient() }

func NotDualAgent(_ *Input, t models.Transaction) bool { return t.AgencyRole != models.RoleDualAgent }
func DualAgent(_ *Input, t models.Transaction) bool    { return t.AgencyRole == models.RoleDualAgent }

func ClientOfType(ct models.ClientType) TxFilter {
	return func(in *Input, t models.Transaction) bool { return in.client(t).Type == ct }
}

func HighRiskClient(in *Input, t models.Transaction) bool {
	return in.client(t).RiskLevel == models.RiskHigh
}

func PEPClient(in *Input, t models.Transaction) bool { return in.client(t).IsPEP }

// PaidInCash keeps full cash payments and mixed payments with a cash part.
func PaidInCash(_ *Input, t models.Transaction) bool {
	switch t.PaymentMethod {
	case models.PaymentCash:
		return true
	case models.PaymentMixed:
		return t.CashAmount.IsPositive()
	}
	return false
}

func PaidInCrypto(_ *Input, t models.Transaction) bool { return t.PaymentMethod == models.PaymentCrypto }

// RentalUnits is the number of months a rental contributes to counts:
// its duration when the monthly rent meets the threshold, zero otherwise.
func RentalUnits(t models.Transaction) int64 {
	if !t.IsRental() || t.MonthlyRent.LessThan(RentalThreshold) || t.RentalDurationMonths <= 0 {
		return 0
	}
	return int64(t.RentalDurationMonths)
}

// RentalTotal is the rent due over the whole rental.
func RentalTotal(t models.Transaction) decimal.Decimal {
	if t.RentalDurationMonths <= 0 {
		return decimal.Zero
	}
	return t.MonthlyRent.Mul(decimal.NewFromInt(int64(t.RentalDurationMonths)))
}

// CashPaid is the cash part of a payment. A full cash payment without an
// explicit cash amount is assumed to be the whole value.
func CashPaid(t models.Transaction) decimal.Decimal {
	if t.PaymentMethod == models.PaymentCash && !t.CashAmount.IsPositive() {
		return t.Value
	}
	return t.CashAmount
}

// Percent is subset/total*100 rounded to 2 places, 0 when total is 0.
func Percent(subset, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(subset)).Mul(hundred).Div(decimal.NewFromInt(int64(total))).Round(2)
}
