// README: Route planner strategies; the naive planner nudges hazardous waypoints aside.
package routing

import (
	"fmt"
	"math"
	"math/rand"

	"saferide/internal/geo"
	"saferide/internal/modules/hazard"
	"saferide/internal/types"
)

const (
	PlannerNaive = "naive"
	PlannerGrid  = "grid"

	DefaultSegmentKm      = 2.0
	DefaultDetourOffsetKm = 0.5
)

// RoutePlanner produces an ordered waypoint path from one endpoint to the other.
// zones are already filtered to the severities the planner should avoid. The
// returned path starts at from and ends at to.
type RoutePlanner interface {
	Name() string
	Plan(from, to types.Point, zones []hazard.Zone) ([]types.Point, error)
}

// NaivePlanner splits the straight line into segments and replaces every
// interior waypoint that falls in a zone with a randomly offset point nearby.
// The replacement point is not checked against the zones again.
type NaivePlanner struct {
	SegmentKm      float64
	DetourOffsetKm float64
	// Rand returns values in [0,1). Defaults to math/rand.Float64.
	Rand func() float64
}

func NewNaivePlanner(segmentKm, detourOffsetKm float64) *NaivePlanner {
	if segmentKm <= 0 {
		segmentKm = DefaultSegmentKm
	}
	if detourOffsetKm < 0 {
		detourOffsetKm = DefaultDetourOffsetKm
	}
	return &NaivePlanner{SegmentKm: segmentKm, DetourOffsetKm: detourOffsetKm, Rand: rand.Float64}
}

func (p *NaivePlanner) Name() string { return PlannerNaive }

func (p *NaivePlanner) Plan(from, to types.Point, zones []hazard.Zone) ([]types.Point, error) {
	direct := geo.HaversineKm(from, to)
	if math.IsNaN(direct) || math.IsInf(direct, 0) {
		return nil, fmt.Errorf("naive planner: non-finite distance between %s and %s", from, to)
	}
	segments := int(math.Ceil(direct / p.SegmentKm))
	if segments < 1 {
		segments = 1
	}

	rnd := p.Rand
	if rnd == nil {
		rnd = rand.Float64
	}

	waypoints := make([]types.Point, 0, segments+1)
	waypoints = append(waypoints, from)
	for i := 1; i < segments; i++ {
		wp := geo.Interpolate(from, to, float64(i)/float64(segments))
		if insideAny(wp, zones) {
			north := (rnd()*2 - 1) * p.DetourOffsetKm
			east := (rnd()*2 - 1) * p.DetourOffsetKm
			wp = geo.Offset(wp, north, east)
		}
		waypoints = append(waypoints, wp)
	}
	waypoints = append(waypoints, to)
	return waypoints, nil
}

func insideAny(p types.Point, zones []hazard.Zone) bool {
	for _, z := range zones {
		if hazard.Contains(p, z) {
			return true
		}
	}
	return false
}

// PlannerOptions carries the tunables for every planner kind.
type PlannerOptions struct {
	SegmentKm      float64
	DetourOffsetKm float64
	GridCellKm     float64
	GridPaddingKm  float64
	HazardPenalty  float64
}

// NewPlanner builds the planner registered under name.
func NewPlanner(name string, opts PlannerOptions) (RoutePlanner, error) {
	switch name {
	case "", PlannerNaive:
		return NewNaivePlanner(opts.SegmentKm, opts.DetourOffsetKm), nil
	case PlannerGrid:
		return NewGridPlanner(opts.GridCellKm, opts.GridPaddingKm, opts.HazardPenalty), nil
	default:
		return nil, fmt.Errorf("%w: unknown route planner %q", types.ErrInput, name)
	}
}
