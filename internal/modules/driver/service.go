// README: Driver service validates driver writes before they reach the store.
package driver

import (
	"context"
	"fmt"

	"saferide/internal/logging"
	"saferide/internal/types"
)

type Service struct {
	repo Repository
	log  logging.Logger
}

func NewService(repo Repository, log logging.Logger) *Service {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Service{repo: repo, log: log}
}

func (s *Service) Register(ctx context.Context, p Profile) (*State, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, p)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*State, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdateLocation(ctx context.Context, id types.ID, p types.Point) (*State, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("driver %s location: %w", id, err)
	}
	return s.repo.UpdateLocation(ctx, id, p)
}

func (s *Service) SetAvailability(ctx context.Context, id types.ID, online, available bool) (*State, error) {
	st, err := s.repo.SetAvailability(ctx, id, online, available)
	if err != nil {
		return nil, err
	}
	s.log.Debugw("driver availability changed", map[string]any{
		"driver_id": id, "online": st.IsOnline, "available": st.IsAvailable,
	})
	return st, nil
}

// ListAvailable is the driver directory query used by dispatch.
func (s *Service) ListAvailable(ctx context.Context, near types.Point, radiusKm float64) ([]State, error) {
	if err := near.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListAvailable(ctx, near, radiusKm)
}
