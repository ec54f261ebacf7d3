// README: Driver matcher scores candidates against the hazard snapshot and picks one per urgency policy.
package matching

import (
	"cmp"
	"slices"

	"saferide/internal/geo"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/hazard"
	"saferide/internal/types"
)

type Matcher struct {
	cfg Config
}

func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg.withDefaults()}
}

func (m *Matcher) Config() Config { return m.cfg }

type scored struct {
	state    driver.State
	distance float64
	safety   int
	inHazard bool
	count    int
}

// Match selects at most one driver for req. It never mutates the pool or the
// snapshot. A nil snapshot is scored as "no hazards".
func (m *Matcher) Match(req types.TripRequest, pool []driver.State, snap *hazard.Snapshot) Result {
	if req.Pickup.Validate() != nil {
		return Result{}
	}
	cutoff := m.cfg.CutoffKm(req.Urgency)

	candidates := make([]scored, 0, len(pool))
	for _, d := range pool {
		if d.Location == nil || !d.IsOnline || !d.IsAvailable || d.ReservedFor != nil {
			continue
		}
		if d.Location.Validate() != nil {
			continue
		}
		dist := geo.HaversineKm(*d.Location, req.Pickup)
		if dist > cutoff {
			continue
		}
		c := scored{state: d, distance: dist, safety: safeLocationScore}
		if snap != nil {
			c.count = snap.CountContaining(*d.Location)
		}
		if c.count > 0 {
			c.inHazard = true
			c.safety = max(1, 10-2*c.count)
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return Result{}
	}

	considered := len(candidates)
	fallback := false
	if req.Urgency == types.UrgencyEmergency {
		safe := make([]scored, 0, len(candidates))
		for _, c := range candidates {
			if !c.inHazard || c.safety >= m.cfg.MinEmergencySafety {
				safe = append(safe, c)
			}
		}
		if len(safe) > 0 {
			candidates = safe
		} else {
			fallback = true
		}
		slices.SortFunc(candidates, bySafetyThenDistance)
	} else {
		slices.SortFunc(candidates, byDistanceThenSafety)
	}

	best := candidates[0]
	id := best.state.ID
	return Result{
		DriverID:            &id,
		DistanceKm:          best.distance,
		Safety:              best.safety,
		InHazard:            best.inHazard,
		HazardCount:         best.count,
		AvailabilityVersion: best.state.AvailabilityVersion,
		Fallback:            fallback,
		Considered:          considered,
	}
}

func bySafetyThenDistance(a, b scored) int {
	if c := cmp.Compare(b.safety, a.safety); c != 0 {
		return c
	}
	if c := cmp.Compare(a.distance, b.distance); c != 0 {
		return c
	}
	return tieBreak(a, b)
}

func byDistanceThenSafety(a, b scored) int {
	if c := cmp.Compare(a.distance, b.distance); c != 0 {
		return c
	}
	if c := cmp.Compare(b.safety, a.safety); c != 0 {
		return c
	}
	return tieBreak(a, b)
}

// tieBreak keeps selection deterministic: higher rating, then lower ID.
func tieBreak(a, b scored) int {
	if c := cmp.Compare(b.state.Rating, a.state.Rating); c != 0 {
		return c
	}
	return cmp.Compare(a.state.ID, b.state.ID)
}
