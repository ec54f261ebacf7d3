// README: Dispatch coordinator commits matches as race-free reservations and owns the release path.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saferide/internal/events"
	"saferide/internal/logging"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/matching"
	"saferide/internal/modules/routing"
	"saferide/internal/modules/trip"
	"saferide/internal/types"
)

type Deps struct {
	Drivers   Drivers
	Trips     Trips
	Hazards   Snapshots
	Estimator *routing.Estimator
	Matcher   *matching.Matcher
	Publisher events.Publisher
	Log       logging.Logger
	Metrics   Recorder
}

type Coordinator struct {
	drivers   Drivers
	trips     Trips
	hazards   Snapshots
	estimator *routing.Estimator
	matcher   *matching.Matcher
	publisher events.Publisher
	log       logging.Logger
	metrics   Recorder
	cfg       Config
	now       func() time.Time
}

func NewCoordinator(d Deps, cfg Config) *Coordinator {
	c := &Coordinator{
		drivers:   d.Drivers,
		trips:     d.Trips,
		hazards:   d.Hazards,
		estimator: d.Estimator,
		matcher:   d.Matcher,
		publisher: d.Publisher,
		log:       d.Log,
		metrics:   d.Metrics,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
	if c.publisher == nil {
		c.publisher = events.NopPublisher{}
	}
	if c.log == nil {
		c.log = logging.NopLogger{}
	}
	if c.metrics == nil {
		c.metrics = nopRecorder{}
	}
	if c.matcher == nil {
		c.matcher = matching.NewMatcher(matching.Config{})
	}
	if c.estimator == nil {
		c.estimator = routing.NewEstimator(routing.NewNaivePlanner(0, routing.DefaultDetourOffsetKm), nil, routing.Config{}, c.log, nil)
	}
	return c
}

// Commit reserves the matched driver for t and moves t to accepted. Either
// both happen or neither does: any failure after the reservation releases it
// under a context detached from ctx. A lost race returns an error matching
// types.ErrConflict and the caller should match again.
func (c *Coordinator) Commit(ctx context.Context, t *trip.Trip, m matching.Result) error {
	if !m.Found() {
		return fmt.Errorf("%w: match result has no driver", types.ErrInput)
	}
	driverID := *m.DriverID
	start := c.now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.CommitTimeout)
	defer cancel()

	if _, err := c.drivers.Reserve(ctx, driverID, m.AvailabilityVersion, t.ID); err != nil {
		if !errors.Is(err, types.ErrConflict) && !errors.Is(err, driver.ErrNotFound) {
			// The write may have landed even though we saw an error.
			c.release(ctx, driverID, t.ID, "reserve failed")
		}
		c.observeCommit(err, start)
		return fmt.Errorf("reserve driver %s: %w", driverID, err)
	}

	if err := c.trips.Assign(ctx, t.ID, driverID); err != nil {
		if c.assignLanded(ctx, t.ID, driverID, err) {
			c.log.Warnf("assign trip %s reported %v but committed; keeping reservation", t.ID, err)
		} else {
			c.release(ctx, driverID, t.ID, "assign failed")
			c.observeCommit(err, start)
			return fmt.Errorf("assign trip %s: %w", t.ID, err)
		}
	}

	c.observeCommit(nil, start)
	c.log.Infof("trip %s assigned to driver %s", t.ID, driverID)

	var fare types.Money
	if t.Estimate != nil {
		fare = t.Estimate.EstimatedFare
	}
	evt := events.NewAssignmentEvent(t.ID, driverID, t.Request(), fare, c.now())
	pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CommitTimeout)
	defer pcancel()
	if err := c.publisher.Publish(pctx, evt); err != nil {
		c.log.Errorf("publish assignment %s for trip %s: %v", evt.EventID, t.ID, err)
	}
	return nil
}

// assignLanded checks, after an ambiguous Assign failure, whether the trip
// was in fact accepted for driverID.
func (c *Coordinator) assignLanded(ctx context.Context, tripID, driverID types.ID, assignErr error) bool {
	if errors.Is(assignErr, trip.ErrInvalidState) || errors.Is(assignErr, types.ErrConflict) || errors.Is(assignErr, trip.ErrNotFound) {
		return false
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ReleaseTimeout)
	defer cancel()
	t, err := c.trips.Get(rctx, tripID)
	if err != nil {
		return false
	}
	return t.Status == trip.StatusAccepted && t.DriverID != nil && *t.DriverID == driverID
}

func (c *Coordinator) release(ctx context.Context, driverID, tripID types.ID, why string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ReleaseTimeout)
	defer cancel()
	released, err := c.drivers.Release(rctx, driverID, tripID)
	if err != nil {
		c.log.Errorf("release driver %s from trip %s (%s): %v", driverID, tripID, why, err)
		return
	}
	c.log.Debugw("driver release", map[string]any{
		"driver_id": driverID, "trip_id": tripID, "reason": why, "released": released,
	})
}

func (c *Coordinator) observeCommit(err error, start time.Time) {
	outcome := outcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, types.ErrConflict), errors.Is(err, trip.ErrInvalidState):
		outcome = outcomeConflict
	case errors.Is(err, context.DeadlineExceeded):
		outcome = outcomeTimeout
	default:
		outcome = outcomeError
	}
	c.metrics.ObserveCommit(outcome, c.now().Sub(start))
}

// Dispatch estimates the route for a pending trip, then matches and commits
// until a driver is assigned, nobody is in range, or MaxAttempts lost races
// have been spent. Collaborator failures are returned, not retried.
func (c *Coordinator) Dispatch(ctx context.Context, tripID types.ID) (Outcome, error) {
	t, err := c.trips.Get(ctx, tripID)
	if err != nil {
		return Outcome{}, err
	}
	if t.Status != trip.StatusPending {
		return Outcome{}, fmt.Errorf("%w: trip %s is %s", trip.ErrInvalidState, t.ID, t.Status)
	}

	snap := c.hazards.Current()
	req := t.Request()
	est := c.estimator.Estimate(req, snap)
	if err := c.trips.SaveEstimate(ctx, t.ID, est); err != nil {
		return Outcome{}, fmt.Errorf("save estimate for trip %s: %w", t.ID, err)
	}
	t.Estimate = &est

	out := Outcome{TripID: t.ID, Estimate: est}
	cutoff := c.matcher.Config().CutoffKm(req.Urgency)

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pool, err := c.drivers.ListAvailable(ctx, req.Pickup, cutoff)
		if err != nil {
			return out, fmt.Errorf("list candidates for trip %s: %w", t.ID, err)
		}
		m := c.matcher.Match(req, pool, snap)
		out.Match = m
		if !m.Found() {
			c.metrics.ObserveMatch(string(req.Urgency), matchNone)
			return out, nil
		}
		if m.Fallback {
			c.metrics.ObserveMatch(string(req.Urgency), matchFallback)
			c.log.Warnf("trip %s: no emergency candidate passed the safety filter, using %s", t.ID, *m.DriverID)
		} else {
			c.metrics.ObserveMatch(string(req.Urgency), matchFound)
		}

		err = c.Commit(ctx, t, m)
		if err == nil {
			out.Assigned = true
			out.DriverID = m.DriverID
			return out, nil
		}
		if !retryable(ctx, err) {
			return out, err
		}
		c.log.Debugw("commit lost, rematching", map[string]any{"trip_id": t.ID, "attempt": attempt, "error": err.Error()})

		if attempt < c.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
	}
	out.Match = matching.Result{}
	return out, nil
}

// retryable is true for a lost race or a commit timeout that was not caused
// by the caller's own deadline.
func retryable(ctx context.Context, err error) bool {
	if errors.Is(err, types.ErrConflict) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

// Cancel cancels the trip and releases the driver it held. A reservation
// made by a commit still in flight is released by that commit's own failure
// path, because Assign can no longer succeed.
func (c *Coordinator) Cancel(ctx context.Context, tripID types.ID, actorType, reason string) (*trip.Trip, error) {
	before, err := c.trips.Cancel(ctx, trip.CancelCommand{TripID: tripID, ActorType: actorType, Reason: reason})
	if err != nil {
		return nil, err
	}
	if before.DriverID != nil {
		c.release(ctx, *before.DriverID, tripID, "trip cancelled")
	}
	after, err := c.trips.Get(ctx, tripID)
	if err != nil {
		return before, nil
	}
	return after, nil
}

// Sweep releases reservations whose trip no longer holds the driver. It is
// the backstop for release calls that failed.
func (c *Coordinator) Sweep(ctx context.Context) (int, error) {
	reserved, err := c.drivers.ListReserved(ctx)
	if err != nil {
		return 0, err
	}
	now := c.now()
	released := 0
	for _, d := range reserved {
		if d.ReservedFor == nil {
			continue
		}
		if d.ReservedAt != nil && now.Sub(*d.ReservedAt) < c.cfg.SweepGrace {
			continue
		}
		tripID := *d.ReservedFor
		t, err := c.trips.Get(ctx, tripID)
		switch {
		case errors.Is(err, trip.ErrNotFound):
		case err != nil:
			c.log.Warnf("sweeper: load trip %s for driver %s: %v", tripID, d.ID, err)
			continue
		case t.Status.HoldsDriver() && t.DriverID != nil && *t.DriverID == d.ID:
			continue
		}
		ok, err := c.drivers.Release(ctx, d.ID, tripID)
		if err != nil {
			c.log.Errorf("sweeper: release driver %s from trip %s: %v", d.ID, tripID, err)
			continue
		}
		if ok {
			released++
			c.log.Infof("sweeper: released driver %s from stale trip %s", d.ID, tripID)
		}
	}
	return released, nil
}

func (c *Coordinator) RunReservationSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Sweep(ctx); err != nil {
				c.log.Errorf("reservation sweep failed: %v", err)
			}
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveMatch(string, string)         {}
func (nopRecorder) ObserveCommit(string, time.Duration) {}
