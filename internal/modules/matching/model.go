// README: Match result and matcher tunables.
package matching

import "saferide/internal/types"

const (
	DefaultNormalCutoffKm     = 10.0
	DefaultEmergencyCutoffKm  = 20.0
	DefaultMinEmergencySafety = 6

	// safeLocationScore is the score of a driver standing outside every zone.
	safeLocationScore = 9
)

type Config struct {
	NormalCutoffKm     float64
	EmergencyCutoffKm  float64
	MinEmergencySafety int
}

func (c Config) withDefaults() Config {
	if c.NormalCutoffKm <= 0 {
		c.NormalCutoffKm = DefaultNormalCutoffKm
	}
	if c.EmergencyCutoffKm <= 0 {
		c.EmergencyCutoffKm = DefaultEmergencyCutoffKm
	}
	if c.MinEmergencySafety <= 0 {
		c.MinEmergencySafety = DefaultMinEmergencySafety
	}
	return c
}

// CutoffKm is the maximum pickup distance for the urgency class.
func (c Config) CutoffKm(u types.Urgency) float64 {
	c = c.withDefaults()
	if u == types.UrgencyEmergency {
		return c.EmergencyCutoffKm
	}
	return c.NormalCutoffKm
}

// Result is the selected driver with the scores it was selected on. A zero
// Result means no match.
type Result struct {
	DriverID            *types.ID `json:"driver_id,omitempty"`
	DistanceKm          float64   `json:"distance_km"`
	Safety              int       `json:"safety"`
	InHazard            bool      `json:"in_hazard"`
	HazardCount         int       `json:"hazard_count"`
	AvailabilityVersion int64     `json:"availability_version"`
	// Fallback is set when every emergency candidate in range failed the
	// safety filter and the best of them was returned anyway.
	Fallback bool `json:"fallback"`
	// Considered counts candidates within the cutoff.
	Considered int `json:"considered"`
}

func (r Result) Found() bool { return r.DriverID != nil }
