// README: In-process assignment fan-out for local subscribers (websocket gateways, tests).
package events

import (
	"context"

	"saferide/internal/eventbus"
)

type BusPublisher struct {
	bus *eventbus.TypedBus[AssignmentEvent]
}

func NewBusPublisher(buffer int) *BusPublisher {
	return &BusPublisher{bus: eventbus.NewTyped[AssignmentEvent](buffer)}
}

func (p *BusPublisher) Publish(_ context.Context, e AssignmentEvent) error {
	p.bus.Publish(e)
	return nil
}

func (p *BusPublisher) Subscribe() <-chan AssignmentEvent { return p.bus.Subscribe() }

func (p *BusPublisher) Unsubscribe(ch <-chan AssignmentEvent) { p.bus.Unsubscribe(ch) }

func (p *BusPublisher) Close() { p.bus.Close() }
