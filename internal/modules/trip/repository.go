// README: Trip repository contract shared by the Postgres and memory stores.
package trip

import (
	"context"

	"saferide/internal/modules/routing"
	"saferide/internal/types"
)

type Repository interface {
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	SaveEstimate(ctx context.Context, id types.ID, est routing.Estimate) error
	// UpdateStatus moves the trip from -> to only if status and status_version
	// still match; it reports false when another writer got there first.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, driverID *types.ID, reason *string) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
}
