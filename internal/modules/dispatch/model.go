// README: Dispatch collaborators, tunables and outcome.
package dispatch

import (
	"context"
	"time"

	"saferide/internal/modules/driver"
	"saferide/internal/modules/hazard"
	"saferide/internal/modules/matching"
	"saferide/internal/modules/routing"
	"saferide/internal/modules/trip"
	"saferide/internal/types"
)

const (
	DefaultCommitTimeout  = 3 * time.Second
	DefaultReleaseTimeout = 2 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryBackoff   = 100 * time.Millisecond
	DefaultSweepInterval  = 30 * time.Second
	DefaultSweepGrace     = 30 * time.Second
)

// CandidateSource is the driver directory query.
type CandidateSource interface {
	ListAvailable(ctx context.Context, near types.Point, radiusKm float64) ([]driver.State, error)
}

// Drivers is the part of the driver arena dispatch writes to.
type Drivers interface {
	CandidateSource
	Reserve(ctx context.Context, id types.ID, expectedAvailabilityVersion int64, tripID types.ID) (*driver.State, error)
	Release(ctx context.Context, id types.ID, tripID types.ID) (bool, error)
	ListReserved(ctx context.Context) ([]driver.State, error)
}

type Trips interface {
	Get(ctx context.Context, id types.ID) (*trip.Trip, error)
	SaveEstimate(ctx context.Context, id types.ID, est routing.Estimate) error
	Assign(ctx context.Context, id, driverID types.ID) error
	Cancel(ctx context.Context, cmd trip.CancelCommand) (*trip.Trip, error)
}

type Snapshots interface {
	Current() *hazard.Snapshot
}

type Recorder interface {
	ObserveMatch(urgency, outcome string)
	ObserveCommit(outcome string, latency time.Duration)
}

type Config struct {
	CommitTimeout  time.Duration
	ReleaseTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
	SweepInterval  time.Duration
	// SweepGrace protects reservations younger than this from the sweeper so
	// in-flight commits are left alone.
	SweepGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = DefaultCommitTimeout
	}
	if c.ReleaseTimeout <= 0 {
		c.ReleaseTimeout = DefaultReleaseTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	} else if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.SweepGrace < 0 {
		c.SweepGrace = 0
	} else if c.SweepGrace == 0 {
		c.SweepGrace = DefaultSweepGrace
	}
	return c
}

// Outcome is the result of one dispatch run. Assigned=false is the
// "still searching" answer, not an error.
type Outcome struct {
	TripID   types.ID         `json:"trip_id"`
	Assigned bool             `json:"assigned"`
	DriverID *types.ID        `json:"driver_id,omitempty"`
	Match    matching.Result  `json:"match"`
	Estimate routing.Estimate `json:"estimate"`
	Attempts int              `json:"attempts"`
}

const (
	outcomeSuccess  = "success"
	outcomeConflict = "conflict"
	outcomeTimeout  = "timeout"
	outcomeError    = "error"

	matchFound    = "matched"
	matchFallback = "fallback"
	matchNone     = "no_match"
)
