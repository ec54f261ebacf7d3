// README: Matcher unit tests covering urgency policies, cutoffs and tie-breaks.
package matching

import (
	"testing"
	"time"

	"saferide/internal/geo"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/hazard"
	"saferide/internal/types"
)

var pickup = types.Point{Lat: 12.97, Lng: 77.59}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func candidate(id string, loc types.Point) driver.State {
	l := loc
	return driver.State{
		ID:                  types.ID(id),
		Location:            &l,
		IsAvailable:         true,
		IsOnline:            true,
		Rating:              4.5,
		AvailabilityVersion: 3,
	}
}

func zoneAt(id string, sev int, center types.Point, radius float64) hazard.Zone {
	return hazard.Zone{
		ID:       types.ID(id),
		Category: hazard.CategoryFire,
		Severity: sev,
		Center:   center,
		RadiusKm: radius,
		Active:   true,
	}
}

func snapshot(zones ...hazard.Zone) *hazard.Snapshot {
	return hazard.NewSnapshot(zones, time.Now())
}

func request(u types.Urgency) types.TripRequest {
	return types.TripRequest{Pickup: pickup, Destination: geo.Offset(pickup, 5, 0), Urgency: u}
}

func mustFind(t *testing.T, r Result, want string) {
	t.Helper()
	if !r.Found() {
		t.Fatalf("expected driver %s, got no match", want)
	}
	if string(*r.DriverID) != want {
		t.Fatalf("expected driver %s, got %s", want, *r.DriverID)
	}
}

// ---------------------------------------------------------------------------
// Scenario: driver inside hazard vs. safe driver further away
// ---------------------------------------------------------------------------

func hazardScenario() ([]driver.State, *hazard.Snapshot) {
	d1Loc := geo.Offset(pickup, 1, 0)
	d2Loc := geo.Offset(pickup, 0, 4)
	pool := []driver.State{candidate("D1", d1Loc), candidate("D2", d2Loc)}
	return pool, snapshot(zoneAt("fire", 8, d1Loc, 0.5))
}

func TestMatch_EmergencyPrefersSafeDriver(t *testing.T) {
	pool, snap := hazardScenario()
	r := NewMatcher(Config{}).Match(request(types.UrgencyEmergency), pool, snap)
	mustFind(t, r, "D2")
	if r.Safety != 9 || r.InHazard {
		t.Fatalf("unexpected scores: safety=%d inHazard=%v", r.Safety, r.InHazard)
	}
	if r.AvailabilityVersion != 3 {
		t.Fatalf("availability version not carried: %d", r.AvailabilityVersion)
	}
}

func TestMatch_NormalPrefersNearestDriver(t *testing.T) {
	pool, snap := hazardScenario()
	r := NewMatcher(Config{}).Match(request(types.UrgencyNormal), pool, snap)
	mustFind(t, r, "D1")
	if !r.InHazard || r.HazardCount != 1 || r.Safety != 8 {
		t.Fatalf("unexpected scores: %+v", r)
	}
	if r.DistanceKm < 0.99 || r.DistanceKm > 1.01 {
		t.Fatalf("distance = %v, want ~1", r.DistanceKm)
	}
}

// ---------------------------------------------------------------------------
// NoMatch cases
// ---------------------------------------------------------------------------

func TestMatch_NoMatch(t *testing.T) {
	noLoc := candidate("noloc", pickup)
	noLoc.Location = nil
	offline := candidate("offline", pickup)
	offline.IsOnline = false
	busy := candidate("busy", pickup)
	busy.IsAvailable = false
	trip := types.ID("t1")
	reserved := candidate("reserved", pickup)
	reserved.ReservedFor = &trip

	tests := []struct {
		name string
		pool []driver.State
		u    types.Urgency
	}{
		{"nil pool", nil, types.UrgencyNormal},
		{"empty pool", []driver.State{}, types.UrgencyEmergency},
		{"no usable candidates", []driver.State{noLoc, offline, busy, reserved}, types.UrgencyNormal},
		{"beyond normal cutoff", []driver.State{candidate("far", geo.Offset(pickup, 12, 0))}, types.UrgencyNormal},
		{"beyond emergency cutoff", []driver.State{candidate("far", geo.Offset(pickup, 21, 0))}, types.UrgencyEmergency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewMatcher(Config{}).Match(request(tt.u), tt.pool, snapshot())
			if r.Found() {
				t.Fatalf("expected no match, got %s", *r.DriverID)
			}
		})
	}
}

func TestMatch_EmergencyCutoffIsWider(t *testing.T) {
	pool := []driver.State{candidate("d", geo.Offset(pickup, 15, 0))}
	m := NewMatcher(Config{})
	if m.Match(request(types.UrgencyNormal), pool, snapshot()).Found() {
		t.Fatal("15 km should be out of range for normal trips")
	}
	mustFind(t, m.Match(request(types.UrgencyEmergency), pool, snapshot()), "d")
}

// ---------------------------------------------------------------------------
// Emergency safety filter
// ---------------------------------------------------------------------------

func TestMatch_EmergencyFilterPrecedesSort(t *testing.T) {
	// "risky" sits in three overlapping zones (safety 4) right at pickup;
	// "ok" is 3 km out in a single zone (safety 8).
	risky := candidate("risky", pickup)
	okLoc := geo.Offset(pickup, 3, 0)
	ok := candidate("ok", okLoc)
	snap := snapshot(
		zoneAt("z1", 2, pickup, 1),
		zoneAt("z2", 2, pickup, 1),
		zoneAt("z3", 2, pickup, 1),
		zoneAt("z4", 2, okLoc, 0.5),
	)

	r := NewMatcher(Config{}).Match(request(types.UrgencyEmergency), []driver.State{risky, ok}, snap)
	mustFind(t, r, "ok")
	if r.Safety < 6 || r.Fallback {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestMatch_EmergencyFallsBackWhenAllUnsafe(t *testing.T) {
	a := candidate("a", geo.Offset(pickup, 2, 0))
	b := candidate("b", pickup)
	snap := snapshot(
		zoneAt("z1", 9, pickup, 3),
		zoneAt("z2", 9, pickup, 3),
		zoneAt("z3", 9, pickup, 3),
	)
	r := NewMatcher(Config{}).Match(request(types.UrgencyEmergency), []driver.State{a, b}, snap)
	mustFind(t, r, "b")
	if !r.Fallback || r.Safety != 4 || r.Considered != 2 {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestMatch_InactiveZonesIgnored(t *testing.T) {
	z := zoneAt("old", 10, pickup, 5)
	z.Active = false
	r := NewMatcher(Config{}).Match(request(types.UrgencyEmergency), []driver.State{candidate("d", pickup)}, snapshot(z))
	mustFind(t, r, "d")
	if r.InHazard || r.Safety != 9 {
		t.Fatalf("inactive zone affected scoring: %+v", r)
	}
}

func TestMatch_NilSnapshotScoresAsSafe(t *testing.T) {
	r := NewMatcher(Config{}).Match(request(types.UrgencyNormal), []driver.State{candidate("d", pickup)}, nil)
	mustFind(t, r, "d")
	if r.Safety != 9 {
		t.Fatalf("safety = %d, want 9", r.Safety)
	}
}

// ---------------------------------------------------------------------------
// Ordering and determinism
// ---------------------------------------------------------------------------

func TestMatch_TieBreaksOnRatingThenID(t *testing.T) {
	loc := geo.Offset(pickup, 1, 0)
	low := candidate("a-low", loc)
	low.Rating = 3.9
	high := candidate("b-high", loc)
	high.Rating = 4.9
	twin := candidate("c-high", loc)
	twin.Rating = 4.9

	m := NewMatcher(Config{})
	for _, u := range []types.Urgency{types.UrgencyNormal, types.UrgencyEmergency} {
		mustFind(t, m.Match(request(u), []driver.State{twin, low, high}, snapshot()), "b-high")
	}
}

func TestMatch_DoesNotMutatePool(t *testing.T) {
	pool := []driver.State{
		candidate("far", geo.Offset(pickup, 5, 0)),
		candidate("near", geo.Offset(pickup, 1, 0)),
	}
	NewMatcher(Config{}).Match(request(types.UrgencyNormal), pool, snapshot())
	if pool[0].ID != "far" || pool[1].ID != "near" {
		t.Fatalf("pool reordered: %s, %s", pool[0].ID, pool[1].ID)
	}
}

func TestMatch_CustomCutoffs(t *testing.T) {
	pool := []driver.State{candidate("d", geo.Offset(pickup, 4, 0))}
	m := NewMatcher(Config{NormalCutoffKm: 3})
	if m.Match(request(types.UrgencyNormal), pool, snapshot()).Found() {
		t.Fatal("expected custom normal cutoff to exclude 4 km driver")
	}
	if got := m.Config().EmergencyCutoffKm; got != DefaultEmergencyCutoffKm {
		t.Fatalf("emergency cutoff default = %v", got)
	}
}
