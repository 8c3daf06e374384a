package testutil

import (
	"context"
	"time"

	"amsf/pkg/requestcontext"
)

// FixedTime returns a background context whose request time is now, so
// services stamp deterministic timestamps.
func FixedTime(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}
