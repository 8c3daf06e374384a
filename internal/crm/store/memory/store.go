// Package memory is an in-process CRM read model used by tests and the CLI.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"amsf/internal/crm/models"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.RWMutex
	datasets map[id.OrganizationID]*models.Dataset
}

func New() *Store {
	return &Store{datasets: make(map[id.OrganizationID]*models.Dataset)}
}

// FromJSON builds a store from a JSON array of datasets.
func FromJSON(r io.Reader) (*Store, error) {
	var datasets []models.Dataset
	if err := json.NewDecoder(r).Decode(&datasets); err != nil {
		return nil, fmt.Errorf("decode crm fixtures: %w", err)
	}
	s := New()
	for _, d := range datasets {
		if d.Organization.ID.IsNil() {
			return nil, fmt.Errorf("crm fixture without organization id")
		}
		s.PutDataset(d)
	}
	return s, nil
}

// FromFile is FromJSON over a file path.
func FromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crm fixtures: %w", err)
	}
	defer f.Close()
	return FromJSON(f)
}

// PutDataset replaces everything held for the dataset's organization.
func (s *Store) PutDataset(d models.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := d
	s.datasets[d.Organization.ID] = &cp
}

func (s *Store) dataset(orgID id.OrganizationID) *models.Dataset {
	d, ok := s.datasets[orgID]
	if !ok {
		d = &models.Dataset{Organization: models.Organization{ID: orgID}}
		s.datasets[orgID] = d
	}
	return d
}

func (s *Store) AddClient(c models.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dataset(c.OrganizationID)
	d.Clients = append(d.Clients, c)
}

// UpdateClient applies fn to the stored client. Returns sentinel.ErrNotFound if absent.
func (s *Store) UpdateClient(orgID id.OrganizationID, clientID id.ClientID, fn func(*models.Client)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dataset(orgID)
	for i := range d.Clients {
		if d.Clients[i].ID == clientID {
			fn(&d.Clients[i])
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *Store) AddTransaction(t models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dataset(t.OrganizationID)
	d.Transactions = append(d.Transactions, t)
}

func (s *Store) AddManagedProperty(p models.ManagedProperty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dataset(p.OrganizationID)
	d.ManagedProperties = append(d.ManagedProperties, p)
}

func (s *Store) AddBeneficialOwner(orgID id.OrganizationID, b models.BeneficialOwner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dataset(orgID)
	d.BeneficialOwners = append(d.BeneficialOwners, b)
}

// PutSetting upserts by key.
func (s *Store) PutSetting(setting models.Setting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dataset(setting.OrganizationID)
	for i := range d.Settings {
		if d.Settings[i].Key == setting.Key {
			d.Settings[i] = setting
			return
		}
	}
	d.Settings = append(d.Settings, setting)
}

func (s *Store) Organization(_ context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.datasets[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	org := d.Organization
	return &org, nil
}

// LoadDataset returns a copy of the organization's records, with
// transactions limited to the window.
func (s *Store) LoadDataset(_ context.Context, orgID id.OrganizationID, window models.Window) (*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.datasets[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	out := &models.Dataset{
		Organization:      d.Organization,
		Clients:           append([]models.Client(nil), d.Clients...),
		ManagedProperties: append([]models.ManagedProperty(nil), d.ManagedProperties...),
		BeneficialOwners:  append([]models.BeneficialOwner(nil), d.BeneficialOwners...),
		Settings:          append([]models.Setting(nil), d.Settings...),
	}
	for _, t := range d.Transactions {
		if t.Date.Before(window.From) || t.Date.After(window.To) {
			continue
		}
		out.Transactions = append(out.Transactions, t)
	}
	out.Index()
	return out, nil
}
