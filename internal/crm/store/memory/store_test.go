package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amsf/internal/crm/models"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/sentinel"
)

func TestStore_LoadDatasetFiltersTransactionsByWindow(t *testing.T) {
	s := New()
	orgID := id.OrganizationID(uuid.New())
	s.PutDataset(models.Dataset{Organization: models.Organization{ID: orgID, RegistryNumber: "RCI-1"}})

	clientID := id.ClientID(uuid.New())
	s.AddClient(models.Client{ID: clientID, OrganizationID: orgID, Type: models.ClientNaturalPerson})
	for _, year := range []int{2019, 2020, 2024} {
		s.AddTransaction(models.Transaction{
			ID:             id.TransactionID(uuid.New()),
			OrganizationID: orgID,
			ClientID:       clientID,
			Type:           models.TransactionPurchase,
			Date:           time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC),
			Value:          decimal.NewFromInt(100),
		})
	}

	d, err := s.LoadDataset(context.Background(), orgID, models.LookbackWindow(2024))
	require.NoError(t, err)
	assert.Len(t, d.Transactions, 2, "2019 is outside [2020, 2024]")
	c, ok := d.Client(clientID)
	require.True(t, ok)
	assert.Equal(t, clientID, c.ID)
	assert.Equal(t, "RCI-1", d.Organization.RegistryNumber)
}

func TestStore_LoadDatasetReturnsCopies(t *testing.T) {
	s := New()
	orgID := id.OrganizationID(uuid.New())
	clientID := id.ClientID(uuid.New())
	s.AddClient(models.Client{ID: clientID, OrganizationID: orgID, Type: models.ClientTrust})

	d, err := s.LoadDataset(context.Background(), orgID, models.LookbackWindow(2024))
	require.NoError(t, err)
	d.Clients[0].Type = models.ClientLegalEntity

	again, err := s.LoadDataset(context.Background(), orgID, models.LookbackWindow(2024))
	require.NoError(t, err)
	assert.Equal(t, models.ClientTrust, again.Clients[0].Type)
}

func TestStore_UnknownOrganization(t *testing.T) {
	s := New()
	_, err := s.LoadDataset(context.Background(), id.OrganizationID(uuid.New()), models.LookbackWindow(2024))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = s.Organization(context.Background(), id.OrganizationID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestStore_PutSettingUpserts(t *testing.T) {
	s := New()
	orgID := id.OrganizationID(uuid.New())
	s.PutSetting(models.Setting{OrganizationID: orgID, Key: "staff_count", Value: "3"})
	s.PutSetting(models.Setting{OrganizationID: orgID, Key: "staff_count", Value: "4"})

	d, err := s.LoadDataset(context.Background(), orgID, models.LookbackWindow(2024))
	require.NoError(t, err)
	v, ok := d.Setting("staff_count")
	require.True(t, ok)
	assert.Equal(t, "4", v)
	assert.Len(t, d.Settings, 1)
}

func TestStore_UpdateClient(t *testing.T) {
	s := New()
	orgID := id.OrganizationID(uuid.New())
	clientID := id.ClientID(uuid.New())
	s.AddClient(models.Client{ID: clientID, OrganizationID: orgID})

	now := time.Now()
	require.NoError(t, s.UpdateClient(orgID, clientID, func(c *models.Client) { c.DeletedAt = &now }))
	assert.ErrorIs(t, s.UpdateClient(orgID, id.ClientID(uuid.New()), func(*models.Client) {}), sentinel.ErrNotFound)

	d, err := s.LoadDataset(context.Background(), orgID, models.LookbackWindow(2024))
	require.NoError(t, err)
	assert.True(t, d.Clients[0].IsDeleted())
}

func TestFromJSON(t *testing.T) {
	orgID := uuid.New().String()
	clientID := uuid.New().String()
	raw := `[{
		"organization": {"id": "` + orgID + `", "name": "Agence du Port", "registry_number": "12S03456"},
		"clients": [{"id": "` + clientID + `", "organization_id": "` + orgID + `", "type": "legal_entity", "incorporation_country": "fr", "risk_level": "high"}],
		"transactions": [{"id": "` + uuid.New().String() + `", "organization_id": "` + orgID + `", "client_id": "` + clientID + `",
			"type": "purchase", "direction": "by_client", "agency_role": "buyer_agent", "date": "2024-03-01T00:00:00Z", "value": "500000"}]
	}]`

	s, err := FromJSON(strings.NewReader(raw))
	require.NoError(t, err)

	parsed, err := id.ParseOrganizationID(orgID)
	require.NoError(t, err)
	d, err := s.LoadDataset(context.Background(), parsed, models.LookbackWindow(2024))
	require.NoError(t, err)
	require.Len(t, d.Transactions, 1)
	assert.True(t, d.Transactions[0].Value.Equal(decimal.NewFromInt(500000)))
	assert.Equal(t, id.CountryCode("FR"), d.Clients[0].Jurisdiction())

	_, err = FromJSON(strings.NewReader(`[{"organization": {}}]`))
	assert.Error(t, err)
}
