package routing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saferide/internal/geo"
	"saferide/internal/modules/hazard"
	"saferide/internal/modules/pricing"
	"saferide/internal/types"
)

var (
	pickup      = types.Point{Lat: 12.97, Lng: 77.59}
	destination = types.Point{Lat: 12.97, Lng: 77.65}
)

func newTestEstimator(p RoutePlanner) *Estimator {
	return NewEstimator(p, pricing.NewService(nil, pricing.DefaultRate()), Config{}, nil, nil)
}

func fixedRand(v float64) func() float64 { return func() float64 { return v } }

func flood(id string, sev int, center types.Point, radius float64) hazard.Zone {
	return hazard.Zone{ID: types.ID(id), Category: hazard.CategoryFlood, Severity: sev, Center: center, RadiusKm: radius, AlertLevel: hazard.AlertHigh, Active: true}
}

func TestEstimate_NoHazardsIsFullySafe(t *testing.T) {
	e := newTestEstimator(NewNaivePlanner(2, 0.5))
	est := e.Estimate(types.TripRequest{Pickup: pickup, Destination: destination, Urgency: types.UrgencyNormal}, hazard.NewSnapshot(nil, time.Now()))

	assert.False(t, est.Fallback)
	assert.Equal(t, 10, est.SafetyScore)
	assert.NotNil(t, est.HazardZonesNoted)
	assert.Empty(t, est.HazardZonesNoted)
	require.GreaterOrEqual(t, len(est.Waypoints), 2)
	assert.Equal(t, pickup, est.Waypoints[0])
	assert.Equal(t, destination, est.Waypoints[len(est.Waypoints)-1])

	direct := geo.HaversineKm(pickup, destination)
	assert.InDelta(t, direct, est.DistanceKm, 1e-4)
	assert.Equal(t, int(math.Ceil(est.DistanceKm/40*60)), est.DurationMin)
	assert.Equal(t, types.MoneyFromFloat(5+est.DistanceKm*1.5, "USD"), est.EstimatedFare)
}

func TestEstimate_SegmentsAreAboutTwoKm(t *testing.T) {
	e := newTestEstimator(NewNaivePlanner(2, 0.5))
	est := e.Estimate(types.TripRequest{Pickup: pickup, Destination: destination, Urgency: types.UrgencyNormal}, hazard.NewSnapshot(nil, time.Now()))

	// ~6.5 km -> 4 segments -> 5 waypoints.
	assert.Len(t, est.Waypoints, int(math.Ceil(geo.HaversineKm(pickup, destination)/2))+1)
	for i := 1; i < len(est.Waypoints); i++ {
		assert.LessOrEqual(t, geo.HaversineKm(est.Waypoints[i-1], est.Waypoints[i]), 2.0+1e-9)
	}
}

func TestEstimate_FallbackCases(t *testing.T) {
	malformed := flood("bad", 0, pickup, 1)
	tests := []struct {
		name string
		req  types.TripRequest
		snap *hazard.Snapshot
		p    RoutePlanner
	}{
		{"nil snapshot", types.TripRequest{Pickup: pickup, Destination: destination, Urgency: types.UrgencyNormal}, nil, NewNaivePlanner(2, 0.5)},
		{"malformed zone", types.TripRequest{Pickup: pickup, Destination: destination, Urgency: types.UrgencyNormal}, hazard.NewSnapshot([]hazard.Zone{malformed}, time.Now()), NewNaivePlanner(2, 0.5)},
		{"invalid coordinate", types.TripRequest{Pickup: types.Point{Lat: 120}, Destination: destination, Urgency: types.UrgencyNormal}, hazard.NewSnapshot(nil, time.Now()), NewNaivePlanner(2, 0.5)},
		{"planner error", types.TripRequest{Pickup: pickup, Destination: destination, Urgency: types.UrgencyNormal}, hazard.NewSnapshot(nil, time.Now()), failingPlanner{err: errors.New("boom")}},
		{"planner panic", types.TripRequest{Pickup: pickup, Destination: destination, Urgency: types.UrgencyNormal}, hazard.NewSnapshot(nil, time.Now()), failingPlanner{panics: true}},
		{"short path", types.TripRequest{Pickup: pickup, Destination: destination, Urgency: types.UrgencyNormal}, hazard.NewSnapshot(nil, time.Now()), failingPlanner{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var est Estimate
			require.NotPanics(t, func() { est = newTestEstimator(tt.p).Estimate(tt.req, tt.snap) })
			assert.True(t, est.Fallback)
			assert.Equal(t, FallbackSafetyScore, est.SafetyScore)
			assert.Empty(t, est.HazardZonesNoted)
			assert.Equal(t, []types.Point{tt.req.Pickup, tt.req.Destination}, est.Waypoints)
		})
	}
}

type failingPlanner struct {
	err    error
	panics bool
}

func (failingPlanner) Name() string { return "failing" }

func (f failingPlanner) Plan(from, _ types.Point, _ []hazard.Zone) ([]types.Point, error) {
	if f.panics {
		panic("planner exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return []types.Point{from}, nil
}

func TestEstimate_NotesEndpointZonesOnce(t *testing.T) {
	both := flood("both", 7, geo.Interpolate(pickup, destination, 0.5), 10)
	atPickup := flood("pickup", 6, pickup, 0.5)
	low := flood("low", 4, pickup, 0.5)
	snap := hazard.NewSnapshot([]hazard.Zone{both, atPickup, low}, time.Now())

	e := newTestEstimator(&NaivePlanner{SegmentKm: 2, DetourOffsetKm: 0.2, Rand: fixedRand(0.75)})
	est := e.Estimate(types.TripRequest{Pickup: pickup, Destination: destination, Urgency: types.UrgencyEmergency}, snap)

	require.False(t, est.Fallback)
	require.Len(t, est.HazardZonesNoted, 2)
	assert.Equal(t, types.ID("both"), est.HazardZonesNoted[0].ID)
	assert.Equal(t, types.ID("pickup"), est.HazardZonesNoted[1].ID)
	assert.Equal(t, 6, est.SafetyScore)
}

func TestEstimate_SafetyClampsAtOne(t *testing.T) {
	var zones []hazard.Zone
	for i := 0; i < 7; i++ {
		zones = append(zones, flood(string(rune('a'+i)), 9, pickup, 1))
	}
	e := newTestEstimator(NewNaivePlanner(2, 0.5))
	est := e.Estimate(types.TripRequest{Pickup: pickup, Destination: destination, Urgency: types.UrgencyNormal}, hazard.NewSnapshot(zones, time.Now()))
	assert.Equal(t, MinSafetyScore, est.SafetyScore)
	assert.Len(t, est.HazardZonesNoted, 7)
}

func TestNaivePlanner_DetoursInteriorWaypoints(t *testing.T) {
	mid := geo.Interpolate(pickup, destination, 0.5)
	z := flood("mid", 8, mid, 0.3)
	p := &NaivePlanner{SegmentKm: 2, DetourOffsetKm: 1, Rand: fixedRand(1)}

	got, err := p.Plan(pickup, destination, []hazard.Zone{z})
	require.NoError(t, err)
	require.Len(t, got, 5)
	// rand=1 pushes the midpoint 1 km north and 1 km east.
	assert.InDelta(t, math.Sqrt2, geo.HaversineKm(mid, got[2]), 0.01)
	assert.False(t, hazard.Contains(got[2], z))
	assert.Equal(t, geo.Interpolate(pickup, destination, 0.25), got[1])
}

func TestNaivePlanner_SamePointIsTwoWaypoints(t *testing.T) {
	got, err := NewNaivePlanner(2, 0.5).Plan(pickup, pickup, nil)
	require.NoError(t, err)
	assert.Equal(t, []types.Point{pickup, pickup}, got)
}

func TestNewPlanner(t *testing.T) {
	p, err := NewPlanner("grid", PlannerOptions{})
	require.NoError(t, err)
	assert.Equal(t, PlannerGrid, p.Name())

	p, err = NewPlanner("", PlannerOptions{})
	require.NoError(t, err)
	assert.Equal(t, PlannerNaive, p.Name())

	_, err = NewPlanner("astar", PlannerOptions{})
	assert.ErrorIs(t, err, types.ErrInput)
}
