package models

import (
	"time"

	id "amsf/pkg/domain"
)

// Dataset is everything the calculators read for one organization. Records
// are loaded as stored, soft-deleted rows included; filtering is the
// calculators' job.
type Dataset struct {
	Organization      Organization      `json:"organization"`
	Clients           []Client          `json:"clients"`
	Transactions      []Transaction     `json:"transactions"`
	ManagedProperties []ManagedProperty `json:"managed_properties"`
	BeneficialOwners  []BeneficialOwner `json:"beneficial_owners"`
	Settings          []Setting         `json:"settings"`

	clientIndex map[id.ClientID]int
}

// Index builds lookup tables. Call after mutating Clients.
func (d *Dataset) Index() {
	d.clientIndex = make(map[id.ClientID]int, len(d.Clients))
	for i, c := range d.Clients {
		d.clientIndex[c.ID] = i
	}
}

// Client returns the client for a transaction, property, or owner.
func (d *Dataset) Client(clientID id.ClientID) (Client, bool) {
	if d.clientIndex == nil {
		d.Index()
	}
	i, ok := d.clientIndex[clientID]
	if !ok {
		return Client{}, false
	}
	return d.Clients[i], true
}

// Setting returns the value stored under key.
func (d *Dataset) Setting(key string) (string, bool) {
	for _, s := range d.Settings {
		if s.Key == key {
			return s.Value, true
		}
	}
	return "", false
}

// Window is the inclusive transaction date range a dataset was loaded for.
type Window struct {
	From time.Time
	To   time.Time
}

// LookbackWindow covers [year-4, year], the widest range any calculator reads.
func LookbackWindow(year int) Window {
	return Window{From: YearStart(year - 4), To: YearEnd(year)}
}
