// README: Pricing service computes fare estimates.
package pricing

import (
	"context"
	"fmt"
	"math"
	"sync"

	"saferide/internal/types"
)

type RateStore interface {
	GetRate(ctx context.Context, name string) (Rate, error)
}

type Service struct {
	store RateStore
	mu    sync.RWMutex
	rate  Rate
}

func NewService(store RateStore, rate Rate) *Service {
	if rate.Currency == "" {
		rate.Currency = types.DefaultCurrency
	}
	return &Service{store: store, rate: rate}
}

func (s *Service) Rate() Rate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate
}

// Fare returns baseFare + distance * per-km rate for the urgency class, rounded
// to minor units. Negative or non-finite distances are priced as zero km.
func (s *Service) Fare(distanceKm float64, urgency types.Urgency) types.Money {
	r := s.Rate()
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		distanceKm = 0
	}
	return types.MoneyFromFloat(r.BaseFare+distanceKm*r.perKm(urgency), r.Currency)
}

// LoadRate replaces the configured rate with the named row from the store.
func (s *Service) LoadRate(ctx context.Context, name string) error {
	if s.store == nil {
		return nil
	}
	r, err := s.store.GetRate(ctx, name)
	if err != nil {
		return fmt.Errorf("load rate %q: %w", name, err)
	}
	if r.BaseFare < 0 || r.PerKm < 0 || r.EmergencyPerKm < 0 {
		return fmt.Errorf("%w: rate %q has negative components", types.ErrInput, name)
	}
	if r.Currency == "" {
		r.Currency = types.DefaultCurrency
	}
	s.mu.Lock()
	s.rate = r
	s.mu.Unlock()
	return nil
}
