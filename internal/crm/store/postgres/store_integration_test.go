//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"amsf/internal/crm/models"
	"amsf/internal/crm/store/postgres"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/sentinel"
	"amsf/pkg/testutil/containers"
)

type ReadModelSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
	org   uuid.UUID
}

func TestReadModelSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ReadModelSuite))
}

func (s *ReadModelSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T(), "../../../../migrations")
	s.store = postgres.New(s.pg.Pool)
}

func (s *ReadModelSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.Truncate(ctx, "settings", "beneficial_owners", "managed_properties", "transactions", "clients", "organizations"))

	s.org = uuid.New()
	_, err := s.pg.Pool.Exec(ctx, `INSERT INTO organizations (id, name, registry_number) VALUES ($1, 'Agence du Port', '12S03456')`, s.org)
	s.Require().NoError(err)
}

func (s *ReadModelSuite) TestLoadDataset() {
	ctx := context.Background()
	client := uuid.New()
	deleted := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.pg.Pool.Exec(ctx, `INSERT INTO clients (id, organization_id, client_type, nationality, risk_level, is_pep)
		VALUES ($1, $2, 'natural_person', 'fr', 'high', true)`, client, s.org)
	s.Require().NoError(err)
	_, err = s.pg.Pool.Exec(ctx, `INSERT INTO clients (id, organization_id, client_type, incorporation_country, deleted_at)
		VALUES ($1, $2, 'legal_entity', 'LU', $3)`, uuid.New(), s.org, deleted)
	s.Require().NoError(err)

	for _, year := range []int{2018, 2022, 2024} {
		_, err = s.pg.Pool.Exec(ctx, `INSERT INTO transactions
			(id, organization_id, client_id, transaction_type, direction, agency_role, transaction_date, value)
			VALUES ($1, $2, $3, 'purchase', 'by_client', 'buyer_agent', $4, 500000)`,
			uuid.New(), s.org, client, time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC))
		s.Require().NoError(err)
	}
	_, err = s.pg.Pool.Exec(ctx, `INSERT INTO beneficial_owners (id, client_id, nationality, ownership_percent, net_worth)
		VALUES ($1, $2, 'IT', 30, 6000000.01)`, uuid.New(), client)
	s.Require().NoError(err)
	_, err = s.pg.Pool.Exec(ctx, `INSERT INTO settings (organization_id, key, value) VALUES ($1, 'staff_count', '7')`, s.org)
	s.Require().NoError(err)

	d, err := s.store.LoadDataset(ctx, id.OrganizationID(s.org), models.LookbackWindow(2024))
	s.Require().NoError(err)

	s.Run("includes soft deleted clients for the calculators to filter", func() {
		s.Len(d.Clients, 2)
	})
	s.Run("limits transactions to the lookback window", func() {
		s.Len(d.Transactions, 2)
		s.True(d.Transactions[0].Value.Equal(decimal.NewFromInt(500000)))
	})
	s.Run("reads owners and settings", func() {
		s.Require().Len(d.BeneficialOwners, 1)
		s.True(d.BeneficialOwners[0].NetWorth.Equal(decimal.RequireFromString("6000000.01")))
		v, ok := d.Setting("staff_count")
		s.True(ok)
		s.Equal("7", v)
	})
	s.Run("organization registry number", func() {
		s.Equal("12S03456", d.Organization.RegistryNumber)
	})
}

func (s *ReadModelSuite) TestUnknownOrganization() {
	_, err := s.store.LoadDataset(context.Background(), id.OrganizationID(uuid.New()), models.LookbackWindow(2024))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
