package calculator

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"amsf/internal/crm/models"
	id "amsf/pkg/domain"
)

// builder assembles datasets for calculator tests.
type builder struct {
	d *models.Dataset
}

func newBuilder() *builder {
	return &builder{d: &models.Dataset{Organization: models.Organization{
		ID:             id.OrganizationID(uuid.New()),
		Name:           "Agence du Port",
		RegistryNumber: "12S03456",
	}}}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(t time.Time) *time.Time { return &t }

func eur(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (b *builder) client(opts ...func(*models.Client)) id.ClientID {
	c := models.Client{
		ID:             id.ClientID(uuid.New()),
		OrganizationID: b.d.Organization.ID,
		Type:           models.ClientNaturalPerson,
		Nationality:    "FR",
		RiskLevel:      models.RiskLow,
		CreatedAt:      day(2020, 1, 1),
	}
	for _, o := range opts {
		o(&c)
	}
	b.d.Clients = append(b.d.Clients, c)
	return c.ID
}

func (b *builder) tx(clientID id.ClientID, opts ...func(*models.Transaction)) {
	t := models.Transaction{
		ID:             id.TransactionID(uuid.New()),
		OrganizationID: b.d.Organization.ID,
		ClientID:       clientID,
		Type:           models.TransactionPurchase,
		Direction:      models.DirectionByClient,
		AgencyRole:     models.RoleBuyerAgent,
		Date:           day(2024, 6, 1),
		Value:          decimal.Zero,
		PaymentMethod:  models.PaymentWire,
	}
	for _, o := range opts {
		o(&t)
	}
	b.d.Transactions = append(b.d.Transactions, t)
}

func (b *builder) owner(clientID id.ClientID, opts ...func(*models.BeneficialOwner)) {
	o := models.BeneficialOwner{ID: id.OwnerID(uuid.New()), ClientID: clientID, Nationality: "IT"}
	for _, fn := range opts {
		fn(&o)
	}
	b.d.BeneficialOwners = append(b.d.BeneficialOwners, o)
}

func (b *builder) property(clientID id.ClientID, opts ...func(*models.ManagedProperty)) {
	p := models.ManagedProperty{
		ID:              id.PropertyID(uuid.New()),
		OrganizationID:  b.d.Organization.ID,
		ClientID:        clientID,
		ManagementStart: day(2022, 1, 1),
	}
	for _, fn := range opts {
		fn(&p)
	}
	b.d.ManagedProperties = append(b.d.ManagedProperties, p)
}

func (b *builder) setting(key, value string) {
	b.d.Settings = append(b.d.Settings, models.Setting{OrganizationID: b.d.Organization.ID, Key: key, Value: value})
}

func (b *builder) input(year int) *Input {
	return NewInput(b.d, year)
}

func legalEntity(country string) func(*models.Client) {
	return func(c *models.Client) {
		c.Type = models.ClientLegalEntity
		c.Nationality = ""
		c.IncorporationCountry = country
	}
}

func trust(c *models.Client) {
	c.Type = models.ClientTrust
	c.IncorporationCountry = "JE"
}

func deleted(c *models.Client) { c.DeletedAt = at(day(2024, 3, 1)) }

func sale(t *models.Transaction) {
	t.Type = models.TransactionSale
	t.AgencyRole = models.RoleSellerAgent
}

func withClient(t *models.Transaction) { t.Direction = models.DirectionWithClient }

func valued(v string) func(*models.Transaction) {
	return func(t *models.Transaction) { t.Value = eur(v) }
}

func dated(d time.Time) func(*models.Transaction) {
	return func(t *models.Transaction) { t.Date = d }
}

func rental(monthly string, months int) func(*models.Transaction) {
	return func(t *models.Transaction) {
		t.Type = models.TransactionRental
		t.MonthlyRent = eur(monthly)
		t.RentalDurationMonths = months
	}
}
