package domain

import (
	"github.com/google/uuid"

	dErrors "amsf/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so an OrganizationID can never be passed
// where a SubmissionID is expected.
type (
	OrganizationID uuid.UUID
	SubmissionID   uuid.UUID
	UserID         uuid.UUID
	ClientID       uuid.UUID
	TransactionID  uuid.UUID
	PropertyID     uuid.UUID
	OwnerID        uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	if len(s) > 36 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

// ParseOrganizationID validates an organization ID at a trust boundary.
func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID(s, "organization_id")
	return OrganizationID(u), err
}

// ParseSubmissionID validates a submission ID at a trust boundary.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s, "submission_id")
	return SubmissionID(u), err
}

// ParseUserID validates a user ID at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id SubmissionID) String() string   { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id ClientID) String() string       { return uuid.UUID(id).String() }
func (id TransactionID) String() string  { return uuid.UUID(id).String() }
func (id PropertyID) String() string     { return uuid.UUID(id).String() }
func (id OwnerID) String() string        { return uuid.UUID(id).String() }

func (id OrganizationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SubmissionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs serialise as plain UUID strings in JSON.
func (id OrganizationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SubmissionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id ClientID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *OrganizationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SubmissionID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ClientID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id TransactionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id PropertyID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id OwnerID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }

func (id *TransactionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PropertyID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OwnerID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
