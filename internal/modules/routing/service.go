// README: Route estimator wraps a planner with hazard filtering, pricing and the safe fallback.
package routing

import (
	"fmt"
	"math"

	"saferide/internal/geo"
	"saferide/internal/logging"
	"saferide/internal/modules/hazard"
	"saferide/internal/modules/pricing"
	"saferide/internal/types"
)

const (
	DefaultMinSeverity = 5
	DefaultAvgSpeedKmh = 40.0
)

type FareCalculator interface {
	Fare(distanceKm float64, urgency types.Urgency) types.Money
}

type Recorder interface {
	ObserveEstimate(planner string, fallback bool)
}

type Config struct {
	MinSeverity int
	AvgSpeedKmh float64
}

type Estimator struct {
	planner RoutePlanner
	fares   FareCalculator
	cfg     Config
	log     logging.Logger
	metrics Recorder
}

func NewEstimator(planner RoutePlanner, fares FareCalculator, cfg Config, log logging.Logger, metrics Recorder) *Estimator {
	if cfg.MinSeverity <= 0 {
		cfg.MinSeverity = DefaultMinSeverity
	}
	if cfg.AvgSpeedKmh <= 0 {
		cfg.AvgSpeedKmh = DefaultAvgSpeedKmh
	}
	if fares == nil {
		fares = pricing.NewService(nil, pricing.DefaultRate())
	}
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Estimator{planner: planner, fares: fares, cfg: cfg, log: log, metrics: metrics}
}

// Estimate never fails. When hazard data is missing or malformed, the request
// is invalid, or the planner errors or panics, it returns the direct two-point
// route with a safety score of 8 and no noted zones.
//
// HazardZonesNoted only reports zones containing the pickup or destination,
// not the zones the planned path went around.
func (e *Estimator) Estimate(req types.TripRequest, snap *hazard.Snapshot) (est Estimate) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("route estimate panicked, using direct route: %v", r)
			est = e.fallback(req)
		}
		if e.metrics != nil {
			e.metrics.ObserveEstimate(est.Planner, est.Fallback)
		}
	}()

	est, err := e.estimate(req, snap)
	if err != nil {
		e.log.Warnf("route estimate failed, using direct route: %v", err)
		return e.fallback(req)
	}
	return est
}

func (e *Estimator) estimate(req types.TripRequest, snap *hazard.Snapshot) (Estimate, error) {
	if err := req.Validate(); err != nil {
		return Estimate{}, err
	}
	if snap == nil {
		return Estimate{}, fmt.Errorf("%w: no hazard snapshot available", types.ErrTransientIO)
	}
	if err := snap.Validate(); err != nil {
		return Estimate{}, err
	}

	zones := hazard.FilterBySeverity(snap.Active(), e.cfg.MinSeverity)
	waypoints, err := e.planner.Plan(req.Pickup, req.Destination, zones)
	if err != nil {
		return Estimate{}, fmt.Errorf("%s planner: %w", e.planner.Name(), err)
	}
	if len(waypoints) < 2 {
		return Estimate{}, fmt.Errorf("%s planner returned %d waypoints", e.planner.Name(), len(waypoints))
	}

	distance := geo.PathLengthKm(waypoints)
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return Estimate{}, fmt.Errorf("%s planner produced a non-finite path", e.planner.Name())
	}

	noted := noteEndpointZones(zones, req.Pickup, req.Destination)
	return Estimate{
		Waypoints:        waypoints,
		DistanceKm:       distance,
		DurationMin:      e.durationMin(distance),
		EstimatedFare:    e.fares.Fare(distance, req.Urgency),
		HazardZonesNoted: noted,
		SafetyScore:      clampScore(MaxSafetyScore - 2*len(noted)),
		Planner:          e.planner.Name(),
	}, nil
}

func (e *Estimator) fallback(req types.TripRequest) Estimate {
	var distance float64
	if d, err := geo.DistanceKm(req.Pickup, req.Destination); err == nil {
		distance = d
	}
	return Estimate{
		Waypoints:        []types.Point{req.Pickup, req.Destination},
		DistanceKm:       distance,
		DurationMin:      e.durationMin(distance),
		EstimatedFare:    e.fares.Fare(distance, req.Urgency),
		HazardZonesNoted: []NotedZone{},
		SafetyScore:      FallbackSafetyScore,
		Planner:          "direct",
		Fallback:         true,
	}
}

func (e *Estimator) durationMin(distanceKm float64) int {
	return int(math.Ceil(distanceKm / e.cfg.AvgSpeedKmh * 60))
}

func noteEndpointZones(zones []hazard.Zone, endpoints ...types.Point) []NotedZone {
	noted := []NotedZone{}
	seen := make(map[types.ID]bool)
	for _, z := range zones {
		if seen[z.ID] {
			continue
		}
		for _, p := range endpoints {
			if hazard.Contains(p, z) {
				seen[z.ID] = true
				noted = append(noted, NotedZone{ID: z.ID, Category: z.Category, Severity: z.Severity})
				break
			}
		}
	}
	return noted
}

func clampScore(v int) int {
	return max(MinSafetyScore, min(MaxSafetyScore, v))
}
