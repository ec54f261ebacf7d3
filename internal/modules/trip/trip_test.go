// README: Trip state machine and service tests against the memory store.
package trip

import (
	"context"
	"errors"
	"testing"

	"saferide/internal/modules/routing"
	"saferide/internal/types"
)

// TestCanTransition verifies the state machine transition table.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusPending, StatusAccepted, true},
		{StatusAccepted, StatusEnRoute, true},
		{StatusEnRoute, StatusArrived, true},
		{StatusArrived, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		// cancels from every non-terminal state
		{StatusPending, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusEnRoute, StatusCancelled, true},
		{StatusArrived, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},
		// terminal states have no outgoing transitions
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusAccepted, false},
		// skipping states
		{StatusPending, StatusInProgress, false},
		{StatusAccepted, StatusCompleted, false},
		{StatusPending, StatusPending, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusHoldsDriver(t *testing.T) {
	for _, s := range []Status{StatusAccepted, StatusEnRoute, StatusArrived, StatusInProgress} {
		if !s.HoldsDriver() {
			t.Errorf("%s should hold its driver", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusCompleted, StatusCancelled} {
		if s.HoldsDriver() {
			t.Errorf("%s should not hold a driver", s)
		}
	}
}

func mustCreateTrip(t *testing.T, svc *Service, rider string) *Trip {
	t.Helper()
	tr, err := svc.Create(context.Background(), CreateCommand{
		RiderID:     types.ID(rider),
		Pickup:      types.Point{Lat: 12.97, Lng: 77.59},
		Destination: types.Point{Lat: 12.93, Lng: 77.62},
		Urgency:     types.UrgencyEmergency,
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return tr
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(NewMemStore(), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateCommand
	}{
		{"missing rider", CreateCommand{Pickup: types.Point{Lat: 1}, Destination: types.Point{Lat: 2}}},
		{"bad pickup", CreateCommand{RiderID: "r", Pickup: types.Point{Lat: 95}, Destination: types.Point{Lat: 2}}},
		{"bad urgency", CreateCommand{RiderID: "r", Pickup: types.Point{Lat: 1}, Destination: types.Point{Lat: 2}, Urgency: "asap"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.cmd); !errors.Is(err, types.ErrInput) {
				t.Fatalf("expected ErrInput, got %v", err)
			}
		})
	}

	tr, err := svc.Create(ctx, CreateCommand{RiderID: "r", Pickup: types.Point{Lat: 1}, Destination: types.Point{Lat: 2}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tr.Urgency != types.UrgencyNormal || tr.Status != StatusPending || tr.ID == "" {
		t.Fatalf("unexpected trip: %+v", tr)
	}
}

func TestAssignAndCancelFlow(t *testing.T) {
	store := NewMemStore()
	svc := NewService(store, nil)
	ctx := context.Background()
	tr := mustCreateTrip(t, svc, "r1")

	est := routing.Estimate{DistanceKm: 5.2, DurationMin: 8, SafetyScore: 10, EstimatedFare: types.MoneyFromFloat(12.8, "USD")}
	if err := svc.SaveEstimate(ctx, tr.ID, est); err != nil {
		t.Fatalf("save estimate: %v", err)
	}
	if err := svc.Assign(ctx, tr.ID, "d1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	got, err := svc.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusAccepted || got.DriverID == nil || *got.DriverID != "d1" || got.AcceptedAt == nil {
		t.Fatalf("unexpected trip after assign: %+v", got)
	}
	if got.Estimate == nil || got.Estimate.DistanceKm != 5.2 {
		t.Fatalf("estimate not saved: %+v", got.Estimate)
	}

	if err := svc.Assign(ctx, tr.ID, "d2"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second assign: expected ErrInvalidState, got %v", err)
	}

	before, err := svc.Cancel(ctx, CancelCommand{TripID: tr.ID, ActorType: "rider", Reason: "changed_mind"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if before.Status != StatusAccepted || before.DriverID == nil || *before.DriverID != "d1" {
		t.Fatalf("cancel should return the pre-cancel trip, got %+v", before)
	}

	got, _ = svc.Get(ctx, tr.ID)
	if got.Status != StatusCancelled || got.CancelReason == nil || *got.CancelReason != "changed_mind" {
		t.Fatalf("unexpected trip after cancel: %+v", got)
	}
	if _, err := svc.Cancel(ctx, CancelCommand{TripID: tr.ID}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("cancel twice: expected ErrInvalidState, got %v", err)
	}

	events := store.Events(tr.ID)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[2].ToStatus != StatusCancelled || events[2].FromStatus != StatusAccepted {
		t.Fatalf("unexpected last event: %+v", events[2])
	}
}

func TestNotFound(t *testing.T) {
	svc := NewService(NewMemStore(), nil)
	ctx := context.Background()
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	if err := svc.Assign(ctx, "missing", "d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.SaveEstimate(ctx, "missing", routing.Estimate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("save estimate: %v", err)
	}
}

func TestErrConflictIsTypesConflict(t *testing.T) {
	if !errors.Is(ErrConflict, types.ErrConflict) {
		t.Fatal("trip.ErrConflict must match types.ErrConflict")
	}
}

// TestTransientKeepsCause verifies store errors stay matchable on both the
// sentinel and the underlying cause.
func TestTransientKeepsCause(t *testing.T) {
	err := transient("get trip", context.DeadlineExceeded)
	if !errors.Is(err, types.ErrTransientIO) {
		t.Fatalf("want ErrTransientIO, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded in chain, got %v", err)
	}
}
