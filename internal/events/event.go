// README: Outbound assignment event and the publisher contract dispatch writes to.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"saferide/internal/types"
)

// AssignmentEvent is emitted once per successful dispatch commit.
type AssignmentEvent struct {
	EventID       string        `json:"event_id"`
	TripID        types.ID      `json:"trip_id"`
	DriverID      types.ID      `json:"driver_id"`
	Pickup        types.Point   `json:"pickup"`
	Destination   types.Point   `json:"destination"`
	Urgency       types.Urgency `json:"urgency"`
	EstimatedFare types.Money   `json:"estimated_fare"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func NewAssignmentEvent(tripID, driverID types.ID, req types.TripRequest, fare types.Money, at time.Time) AssignmentEvent {
	return AssignmentEvent{
		EventID:       uuid.NewString(),
		TripID:        tripID,
		DriverID:      driverID,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		Urgency:       req.Urgency,
		EstimatedFare: fare,
		OccurredAt:    at.UTC(),
	}
}

// Publisher hands assignment events to a delivery channel. Delivery
// guarantees beyond the call returning belong to the channel.
type Publisher interface {
	Publish(ctx context.Context, e AssignmentEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AssignmentEvent) error { return nil }
