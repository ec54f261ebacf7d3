// README: Fan-out publisher delivering to every configured sink.
package events

import (
	"context"
	"errors"
	"fmt"
)

type MultiPublisher struct {
	sinks map[string]Publisher
	order []string
}

func NewMultiPublisher() *MultiPublisher {
	return &MultiPublisher{sinks: make(map[string]Publisher)}
}

func (m *MultiPublisher) Add(name string, p Publisher) {
	if _, ok := m.sinks[name]; !ok {
		m.order = append(m.order, name)
	}
	m.sinks[name] = p
}

func (m *MultiPublisher) Len() int { return len(m.order) }

// Publish tries every sink and joins the failures.
func (m *MultiPublisher) Publish(ctx context.Context, e AssignmentEvent) error {
	var errs []error
	for _, name := range m.order {
		if err := m.sinks[name].Publish(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
