// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"
)

// Sentinel errors returned by backend adapters when authentication could not
// be recovered. The navigation handlers have already been notified when a
// caller sees them.
var (
	// ErrBanned indicates the backend reported the signed-in account as banned.
	ErrBanned = errors.New("account is banned")

	// ErrSessionExpired indicates the session was cleared after an
	// unrecoverable authentication failure.
	ErrSessionExpired = errors.New("session expired")
)

// PlaceSource fetches the raw nearby-places payload for a charging station.
// The body shape is not known until runtime; normalizing it is the caller's job.
// Errors wrap ErrBanned or ErrSessionExpired when authentication failed.
type PlaceSource interface {
	FetchStationAmenities(ctx context.Context, stationID string) ([]byte, error)
}
