// Package postgres reads the CRM tables with pgx. It never writes them.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"amsf/internal/crm/models"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/sentinel"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Organization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	var org models.Organization
	var rawID uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, registry_number FROM organizations WHERE id = $1`,
		uuid.UUID(orgID),
	).Scan(&rawID, &org.Name, &org.RegistryNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	org.ID = id.OrganizationID(rawID)
	return &org, nil
}

// LoadDataset runs the read-model queries concurrently. Each query reads the
// current committed state; nothing is cached between calls.
func (s *Store) LoadDataset(ctx context.Context, orgID id.OrganizationID, window models.Window) (*models.Dataset, error) {
	org, err := s.Organization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	d := &models.Dataset{Organization: *org}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Clients, err = s.clients(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		d.Transactions, err = s.transactions(gctx, orgID, window)
		return err
	})
	g.Go(func() (err error) {
		d.ManagedProperties, err = s.managedProperties(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		d.BeneficialOwners, err = s.beneficialOwners(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		d.Settings, err = s.settings(gctx, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	d.Index()
	return d, nil
}

func (s *Store) clients(ctx context.Context, orgID id.OrganizationID) ([]models.Client, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, client_type, COALESCE(nationality, ''), COALESCE(incorporation_country, ''),
		       COALESCE(residence_country, ''), risk_level, is_pep, is_vasp,
		       became_client_at, relationship_ended_at, created_at, deleted_at
		FROM clients WHERE organization_id = $1 ORDER BY created_at, id`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Client, error) {
		var c models.Client
		var rawID uuid.UUID
		err := row.Scan(&rawID, &c.Type, &c.Nationality, &c.IncorporationCountry,
			&c.ResidenceCountry, &c.RiskLevel, &c.IsPEP, &c.IsVASP,
			&c.BecameClientAt, &c.RelationshipEndedAt, &c.CreatedAt, &c.DeletedAt)
		c.ID = id.ClientID(rawID)
		c.OrganizationID = orgID
		return c, err
	})
}

func (s *Store) transactions(ctx context.Context, orgID id.OrganizationID, window models.Window) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, client_id, transaction_type, direction, agency_role, transaction_date,
		       value, monthly_rent, rental_duration_months, payment_method, cash_amount,
		       COALESCE(property_country, ''), created_at, deleted_at
		FROM transactions
		WHERE organization_id = $1 AND transaction_date BETWEEN $2 AND $3
		ORDER BY transaction_date, id`,
		uuid.UUID(orgID), window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Transaction, error) {
		var t models.Transaction
		var rawID, rawClient uuid.UUID
		err := row.Scan(&rawID, &rawClient, &t.Type, &t.Direction, &t.AgencyRole, &t.Date,
			&t.Value, &t.MonthlyRent, &t.RentalDurationMonths, &t.PaymentMethod, &t.CashAmount,
			&t.PropertyCountry, &t.CreatedAt, &t.DeletedAt)
		t.ID = id.TransactionID(rawID)
		t.ClientID = id.ClientID(rawClient)
		t.OrganizationID = orgID
		return t, err
	})
}

func (s *Store) managedProperties(ctx context.Context, orgID id.OrganizationID) ([]models.ManagedProperty, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, client_id, management_start, management_end, monthly_rent,
		       management_fee_percent, COALESCE(property_type, ''), deleted_at
		FROM managed_properties WHERE organization_id = $1`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query managed properties: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ManagedProperty, error) {
		var p models.ManagedProperty
		var rawID, rawClient uuid.UUID
		err := row.Scan(&rawID, &rawClient, &p.ManagementStart, &p.ManagementEnd, &p.MonthlyRent,
			&p.ManagementFeePercent, &p.PropertyType, &p.DeletedAt)
		p.ID = id.PropertyID(rawID)
		p.ClientID = id.ClientID(rawClient)
		p.OrganizationID = orgID
		return p, err
	})
}

func (s *Store) beneficialOwners(ctx context.Context, orgID id.OrganizationID) ([]models.BeneficialOwner, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.client_id, COALESCE(b.nationality, ''), b.ownership_percent, b.is_pep,
		       b.net_worth, b.deleted_at
		FROM beneficial_owners b
		JOIN clients c ON c.id = b.client_id
		WHERE c.organization_id = $1`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query beneficial owners: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.BeneficialOwner, error) {
		var b models.BeneficialOwner
		var rawID, rawClient uuid.UUID
		err := row.Scan(&rawID, &rawClient, &b.Nationality, &b.OwnershipPercent, &b.IsPEP,
			&b.NetWorth, &b.DeletedAt)
		b.ID = id.OwnerID(rawID)
		b.ClientID = id.ClientID(rawClient)
		return b, err
	})
}

func (s *Store) settings(ctx context.Context, orgID id.OrganizationID) ([]models.Setting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, value, COALESCE(category, ''), updated_at
		FROM settings WHERE organization_id = $1 ORDER BY key`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Setting, error) {
		st := models.Setting{OrganizationID: orgID}
		err := row.Scan(&st.Key, &st.Value, &st.Category, &st.UpdatedAt)
		return st, err
	})
}
