// README: Trip aggregate and lifecycle status definitions.
package trip

import (
	"time"

	"saferide/internal/modules/routing"
	"saferide/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusEnRoute    Status = "en_route"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Trip struct {
	ID            types.ID          `json:"id"`
	RiderID       types.ID          `json:"rider_id"`
	Pickup        types.Point       `json:"pickup"`
	Destination   types.Point       `json:"destination"`
	Urgency       types.Urgency     `json:"urgency"`
	DriverID      *types.ID         `json:"driver_id,omitempty"`
	Status        Status            `json:"status"`
	StatusVersion int               `json:"status_version"`
	Estimate      *routing.Estimate `json:"estimate,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	AcceptedAt    *time.Time        `json:"accepted_at,omitempty"`
	CancelledAt   *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason  *string           `json:"cancel_reason,omitempty"`
}

func (t *Trip) Request() types.TripRequest {
	return types.TripRequest{Pickup: t.Pickup, Destination: t.Destination, Urgency: t.Urgency}
}

type Event struct {
	ID         int64
	TripID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the trip state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusEnRoute, StatusCancelled},
	StatusEnRoute:    {StatusArrived, StatusCancelled},
	StatusArrived:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// HoldsDriver reports whether a trip in this status keeps its driver reserved.
func (s Status) HoldsDriver() bool {
	switch s {
	case StatusAccepted, StatusEnRoute, StatusArrived, StatusInProgress:
		return true
	}
	return false
}
