// README: Read-only hazard queries over an immutable snapshot.
package hazard

import (
	"time"

	"saferide/internal/geo"
	"saferide/internal/types"
)

// Contains reports whether point lies within the zone's radius.
func Contains(point types.Point, zone Zone) bool {
	return geo.HaversineKm(point, zone.Center) <= zone.RadiusKm
}

// Snapshot is a point-in-time set of zones. It is never mutated after
// construction, so one snapshot can be shared by concurrent callers.
type Snapshot struct {
	zones   []Zone
	takenAt time.Time
}

// NewSnapshot copies zones into a new snapshot.
func NewSnapshot(zones []Zone, takenAt time.Time) *Snapshot {
	cp := make([]Zone, len(zones))
	copy(cp, zones)
	return &Snapshot{zones: cp, takenAt: takenAt}
}

func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Len counts all zones, active or not.
func (s *Snapshot) Len() int { return len(s.zones) }

// Active returns a copy of the active zones.
func (s *Snapshot) Active() []Zone {
	out := make([]Zone, 0, len(s.zones))
	for _, z := range s.zones {
		if z.Active {
			out = append(out, z)
		}
	}
	return out
}

// Validate returns the first malformed zone error, if any.
func (s *Snapshot) Validate() error {
	for _, z := range s.zones {
		if err := z.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ZonesContaining returns the active zones containing point.
func (s *Snapshot) ZonesContaining(point types.Point) []Zone {
	var out []Zone
	for _, z := range s.zones {
		if z.Active && Contains(point, z) {
			out = append(out, z)
		}
	}
	return out
}

// CountContaining is ZonesContaining without the allocation.
func (s *Snapshot) CountContaining(point types.Point) int {
	n := 0
	for _, z := range s.zones {
		if z.Active && Contains(point, z) {
			n++
		}
	}
	return n
}

// ZonesNear returns the active zones whose center is within radiusKm of point,
// nearest first. Zone radius is ignored.
func (s *Snapshot) ZonesNear(point types.Point, radiusKm float64) []Zone {
	var out []Zone
	for _, z := range s.zones {
		if z.Active && geo.HaversineKm(point, z.Center) <= radiusKm {
			out = append(out, z)
		}
	}
	geo.SortByDistance(out, func(z Zone) float64 { return geo.HaversineKm(point, z.Center) })
	return out
}

// FilterBySeverity keeps zones with severity >= minSeverity.
func FilterBySeverity(zones []Zone, minSeverity int) []Zone {
	out := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if z.Severity >= minSeverity {
			out = append(out, z)
		}
	}
	return out
}
