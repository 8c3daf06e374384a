// Package remote talks to the external AMSF validation service. Failures
// never surface as errors from Validate: the caller receives a degraded
// result instead.
package remote

//go:generate mockgen -source=remote.go -destination=mocks/mocks.go -package=mocks Validator

import (
	"context"

	"amsf/internal/validation/models"
)

// Validator checks a rendered XBRL instance remotely.
type Validator interface {
	Validate(ctx context.Context, instance []byte) models.Result
	Health(ctx context.Context) error
}

// Cache stores successful remote results keyed by document digest.
type Cache interface {
	Get(ctx context.Context, digest string) (*models.Result, error)
	Set(ctx context.Context, digest string, result models.Result) error
}
