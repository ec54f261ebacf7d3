// README: Route estimate produced for a trip request.
package routing

import (
	"saferide/internal/modules/hazard"
	"saferide/internal/types"
)

const (
	MaxSafetyScore      = 10
	MinSafetyScore      = 1
	FallbackSafetyScore = 8
)

// NotedZone is the reported summary of a hazard zone near the trip endpoints.
type NotedZone struct {
	ID       types.ID        `json:"id"`
	Category hazard.Category `json:"category"`
	Severity int             `json:"severity"`
}

type Estimate struct {
	Waypoints        []types.Point `json:"waypoints"`
	DistanceKm       float64       `json:"distance_km"`
	DurationMin      int           `json:"duration_min"`
	EstimatedFare    types.Money   `json:"estimated_fare"`
	HazardZonesNoted []NotedZone   `json:"hazard_zones_noted"`
	SafetyScore      int           `json:"safety_score"`
	Planner          string        `json:"planner"`
	Fallback         bool          `json:"fallback"`
}
