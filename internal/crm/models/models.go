// Package models holds the read-only CRM records the survey is derived from.
// They are owned by the CRM subsystem; this module never writes them.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "amsf/pkg/domain"
)

type ClientType string

const (
	ClientNaturalPerson ClientType = "natural_person"
	ClientLegalEntity   ClientType = "legal_entity"
	ClientTrust         ClientType = "trust"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionSale     TransactionType = "sale"
	TransactionRental   TransactionType = "rental"
)

// Direction records whether the client was the principal (by_client) or the
// agency acted for the counterparty (with_client).
type Direction string

const (
	DirectionByClient   Direction = "by_client"
	DirectionWithClient Direction = "with_client"
)

type AgencyRole string

const (
	RoleBuyerAgent  AgencyRole = "buyer_agent"
	RoleSellerAgent AgencyRole = "seller_agent"
	RoleDualAgent   AgencyRole = "dual_agent"
)

type PaymentMethod string

const (
	PaymentWire   PaymentMethod = "wire"
	PaymentCheque PaymentMethod = "cheque"
	PaymentCash   PaymentMethod = "cash"
	PaymentCrypto PaymentMethod = "crypto"
	PaymentMixed  PaymentMethod = "mixed"
)

type Organization struct {
	ID   id.OrganizationID `json:"id"`
	Name string            `json:"name"`
	// RegistryNumber is the RCI number used as the XBRL entity identifier.
	RegistryNumber string `json:"registry_number"`
}

type Client struct {
	ID                   id.ClientID       `json:"id"`
	OrganizationID       id.OrganizationID `json:"organization_id"`
	Type                 ClientType        `json:"type"`
	Nationality          string            `json:"nationality,omitempty"`
	IncorporationCountry string            `json:"incorporation_country,omitempty"`
	ResidenceCountry     string            `json:"residence_country,omitempty"`
	RiskLevel            RiskLevel         `json:"risk_level"`
	IsPEP                bool              `json:"is_pep"`
	IsVASP               bool              `json:"is_vasp"`
	BecameClientAt       *time.Time        `json:"became_client_at,omitempty"`
	RelationshipEndedAt  *time.Time        `json:"relationship_ended_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	DeletedAt            *time.Time        `json:"deleted_at,omitempty"`
}

func (c Client) IsDeleted() bool { return c.DeletedAt != nil }

// Jurisdiction is nationality for natural persons and incorporation country
// for legal entities and trusts. Empty when unknown or malformed.
func (c Client) Jurisdiction() id.CountryCode {
	if c.Type == ClientNaturalPerson {
		return id.NormalizeCountry(c.Nationality)
	}
	return id.NormalizeCountry(c.IncorporationCountry)
}

// ActiveIn reports whether the relationship overlaps the calendar year.
// A nil onboarding timestamp counts as onboarded.
func (c Client) ActiveIn(year int) bool {
	if c.IsDeleted() {
		return false
	}
	if c.BecameClientAt != nil && c.BecameClientAt.After(YearEnd(year)) {
		return false
	}
	if c.RelationshipEndedAt != nil && c.RelationshipEndedAt.Before(YearStart(year)) {
		return false
	}
	return true
}

type Transaction struct {
	ID                   id.TransactionID  `json:"id"`
	OrganizationID       id.OrganizationID `json:"organization_id"`
	ClientID             id.ClientID       `json:"client_id"`
	Type                 TransactionType   `json:"type"`
	Direction            Direction         `json:"direction"`
	AgencyRole           AgencyRole        `json:"agency_role"`
	Date                 time.Time         `json:"date"`
	Value                decimal.Decimal   `json:"value"`
	MonthlyRent          decimal.Decimal   `json:"monthly_rent"`
	RentalDurationMonths int               `json:"rental_duration_months"`
	PaymentMethod        PaymentMethod     `json:"payment_method"`
	CashAmount           decimal.Decimal   `json:"cash_amount"`
	PropertyCountry      string            `json:"property_country,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	DeletedAt            *time.Time        `json:"deleted_at,omitempty"`
}

func (t Transaction) IsDeleted() bool { return t.DeletedAt != nil }

func (t Transaction) IsRental() bool { return t.Type == TransactionRental }

// IsPurchaseOrSale excludes rentals.
func (t Transaction) IsPurchaseOrSale() bool {
	return t.Type == TransactionPurchase || t.Type == TransactionSale
}

func (t Transaction) IsByClient() bool { return t.Direction == DirectionByClient }

func (t Transaction) InYear(year int) bool { return t.Date.UTC().Year() == year }

type ManagedProperty struct {
	ID                   id.PropertyID     `json:"id"`
	OrganizationID       id.OrganizationID `json:"organization_id"`
	ClientID             id.ClientID       `json:"client_id"`
	ManagementStart      time.Time         `json:"management_start"`
	ManagementEnd        *time.Time        `json:"management_end,omitempty"`
	MonthlyRent          decimal.Decimal   `json:"monthly_rent"`
	ManagementFeePercent decimal.Decimal   `json:"management_fee_percent"`
	PropertyType         string            `json:"property_type,omitempty"`
	DeletedAt            *time.Time        `json:"deleted_at,omitempty"`
}

func (p ManagedProperty) IsDeleted() bool { return p.DeletedAt != nil }

// ActiveIn reports whether the management window overlaps the calendar year.
func (p ManagedProperty) ActiveIn(year int) bool {
	if p.IsDeleted() || p.ManagementStart.After(YearEnd(year)) {
		return false
	}
	return p.ManagementEnd == nil || !p.ManagementEnd.Before(YearStart(year))
}

// MonthsActiveIn counts calendar months of the year touched by the window.
func (p ManagedProperty) MonthsActiveIn(year int) int {
	if !p.ActiveIn(year) {
		return 0
	}
	first := 1
	if p.ManagementStart.UTC().Year() == year {
		first = int(p.ManagementStart.UTC().Month())
	}
	last := 12
	if p.ManagementEnd != nil && p.ManagementEnd.UTC().Year() == year {
		last = int(p.ManagementEnd.UTC().Month())
	}
	if last < first {
		return 0
	}
	return last - first + 1
}

type BeneficialOwner struct {
	ID               id.OwnerID      `json:"id"`
	ClientID         id.ClientID     `json:"client_id"`
	Nationality      string          `json:"nationality,omitempty"`
	OwnershipPercent decimal.Decimal `json:"ownership_percent"`
	IsPEP            bool            `json:"is_pep"`
	NetWorth         decimal.Decimal `json:"net_worth"`
	DeletedAt        *time.Time      `json:"deleted_at,omitempty"`
}

func (b BeneficialOwner) IsDeleted() bool { return b.DeletedAt != nil }

type Setting struct {
	OrganizationID id.OrganizationID `json:"organization_id"`
	Key            string            `json:"key"`
	Value          string            `json:"value"`
	Category       string            `json:"category,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// YearStart is Jan 1 00:00 UTC.
func YearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// YearEnd is the last instant of Dec 31 UTC.
func YearEnd(year int) time.Time {
	return time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}
