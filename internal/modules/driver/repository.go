// README: Driver repository contract shared by the memory and Redis stores.
package driver

import (
	"context"

	"saferide/internal/types"
)

// Repository serializes every write to a single driver record. Returned
// states are copies.
type Repository interface {
	Get(ctx context.Context, id types.ID) (*State, error)
	Upsert(ctx context.Context, p Profile) (*State, error)
	UpdateLocation(ctx context.Context, id types.ID, p types.Point) (*State, error)
	SetAvailability(ctx context.Context, id types.ID, online, available bool) (*State, error)
	// Reserve fails with types.ErrConflict unless the driver is online,
	// available, unreserved and still at expectedAvailabilityVersion.
	Reserve(ctx context.Context, id types.ID, expectedAvailabilityVersion int64, tripID types.ID) (*State, error)
	// Release is a no-op returning false unless the reservation belongs to tripID.
	Release(ctx context.Context, id types.ID, tripID types.ID) (bool, error)
	// ListAvailable returns dispatchable drivers within radiusKm of near; a
	// radius <= 0 means no distance limit.
	ListAvailable(ctx context.Context, near types.Point, radiusKm float64) ([]State, error)
	ListReserved(ctx context.Context) ([]State, error)
}
