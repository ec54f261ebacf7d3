// README: Hazard zone model, categories and alert levels.
package hazard

import (
	"fmt"
	"time"

	"saferide/internal/types"
)

type Category string

const (
	CategoryFlood      Category = "flood"
	CategoryFire       Category = "fire"
	CategoryEarthquake Category = "earthquake"
	CategoryStorm      Category = "storm"
	CategoryOther      Category = "other"
)

type AlertLevel string

const (
	AlertLow      AlertLevel = "low"
	AlertMedium   AlertLevel = "medium"
	AlertHigh     AlertLevel = "high"
	AlertCritical AlertLevel = "critical"
)

const (
	MinSeverity = 1
	MaxSeverity = 10
)

// Zone is a circular danger area. Zones are treated as immutable once they are
// part of a Snapshot.
type Zone struct {
	ID          types.ID    `json:"id"`
	Category    Category    `json:"category"`
	Severity    int         `json:"severity"`
	Center      types.Point `json:"center"`
	RadiusKm    float64     `json:"radius_km"`
	AlertLevel  AlertLevel  `json:"alert_level"`
	Active      bool        `json:"active"`
	LastUpdated time.Time   `json:"last_updated"`
}

func (z Zone) Validate() error {
	if z.ID == "" {
		return fmt.Errorf("%w: hazard zone id is required", types.ErrInput)
	}
	if z.Severity < MinSeverity || z.Severity > MaxSeverity {
		return fmt.Errorf("%w: zone %s severity %d out of range [1,10]", types.ErrInput, z.ID, z.Severity)
	}
	if !(z.RadiusKm >= 0) {
		return fmt.Errorf("%w: zone %s radius %v must be >= 0", types.ErrInput, z.ID, z.RadiusKm)
	}
	if err := z.Center.Validate(); err != nil {
		return fmt.Errorf("zone %s center: %w", z.ID, err)
	}
	switch z.Category {
	case CategoryFlood, CategoryFire, CategoryEarthquake, CategoryStorm, CategoryOther:
	default:
		return fmt.Errorf("%w: zone %s category %q", types.ErrInput, z.ID, z.Category)
	}
	switch z.AlertLevel {
	case "", AlertLow, AlertMedium, AlertHigh, AlertCritical:
	default:
		return fmt.Errorf("%w: zone %s alert level %q", types.ErrInput, z.ID, z.AlertLevel)
	}
	return nil
}
