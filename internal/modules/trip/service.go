// README: Trip service implements the dispatch-side state transitions.
package trip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"saferide/internal/logging"
	"saferide/internal/modules/routing"
	"saferide/internal/types"
)

var (
	ErrInvalidState = errors.New("invalid trip state transition")
	ErrNotFound     = errors.New("trip not found")
	// ErrConflict wraps types.ErrConflict so callers can test either.
	ErrConflict = fmt.Errorf("trip state %w", types.ErrConflict)
)

const maxCancelAttempts = 3

type Service struct {
	repo Repository
	log  logging.Logger
	now  func() time.Time
}

func NewService(repo Repository, log logging.Logger) *Service {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Service{repo: repo, log: log, now: time.Now}
}

type CreateCommand struct {
	RiderID     types.ID
	Pickup      types.Point
	Destination types.Point
	Urgency     types.Urgency
}

type CancelCommand struct {
	TripID    types.ID
	ActorType string
	ActorID   *types.ID
	Reason    string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Trip, error) {
	if cmd.RiderID == "" {
		return nil, fmt.Errorf("%w: rider id is required", types.ErrInput)
	}
	if cmd.Urgency == "" {
		cmd.Urgency = types.UrgencyNormal
	}
	req := types.TripRequest{Pickup: cmd.Pickup, Destination: cmd.Destination, Urgency: cmd.Urgency}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	t := &Trip{
		ID:          types.ID(uuid.NewString()),
		RiderID:     cmd.RiderID,
		Pickup:      cmd.Pickup,
		Destination: cmd.Destination,
		Urgency:     cmd.Urgency,
		Status:      StatusPending,
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, &Event{
		TripID:     t.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  "rider",
		ActorID:    &cmd.RiderID,
		CreatedAt:  now,
	})
	return t, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Trip, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) SaveEstimate(ctx context.Context, id types.ID, est routing.Estimate) error {
	return s.repo.SaveEstimate(ctx, id, est)
}

// Assign performs pending -> accepted for driverID. A lost race returns
// ErrConflict; a trip that already left pending returns ErrInvalidState.
func (s *Service) Assign(ctx context.Context, id, driverID types.ID) error {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(t.Status, StatusAccepted) {
		return fmt.Errorf("%w: trip %s is %s", ErrInvalidState, id, t.Status)
	}
	ok, err := s.repo.UpdateStatus(ctx, t.ID, t.Status, StatusAccepted, t.StatusVersion, &driverID, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, &Event{
		TripID:     t.ID,
		FromStatus: t.Status,
		ToStatus:   StatusAccepted,
		ActorType:  "system",
		ActorID:    &driverID,
		CreatedAt:  s.now(),
	})
	return nil
}

// Cancel moves a non-terminal trip to cancelled and returns the trip as it
// was just before, so the caller can release the driver it held. Concurrent
// transitions are retried; cancel wins against anything non-terminal.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Trip, error) {
	for attempt := 0; attempt < maxCancelAttempts; attempt++ {
		t, err := s.repo.Get(ctx, cmd.TripID)
		if err != nil {
			return nil, err
		}
		if !CanTransition(t.Status, StatusCancelled) {
			return nil, fmt.Errorf("%w: trip %s is %s", ErrInvalidState, t.ID, t.Status)
		}
		reason := cmd.Reason
		ok, err := s.repo.UpdateStatus(ctx, t.ID, t.Status, StatusCancelled, t.StatusVersion, nil, &reason)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		s.appendEvent(ctx, &Event{
			TripID:     t.ID,
			FromStatus: t.Status,
			ToStatus:   StatusCancelled,
			ActorType:  cmd.ActorType,
			ActorID:    cmd.ActorID,
			CreatedAt:  s.now(),
		})
		return t, nil
	}
	return nil, ErrConflict
}

func (s *Service) appendEvent(ctx context.Context, e *Event) {
	if err := s.repo.AppendEvent(ctx, e); err != nil {
		s.log.Warnf("append trip event %s %s->%s: %v", e.TripID, e.FromStatus, e.ToStatus, err)
	}
}
