// README: Versioned driver state records and the rules every store applies to them.
package driver

import (
	"errors"
	"fmt"
	"time"

	"saferide/internal/types"
)

var (
	ErrNotFound = errors.New("driver not found")
	// ErrReserved is returned when a toggle would make a reserved driver available.
	ErrReserved = errors.New("driver is reserved for a trip")

	errNoChange = errors.New("no change")
)

// State is one driver's record. Version is bumped on every write;
// AvailabilityVersion only when online/available/reservation change, so
// location pings never invalidate a pending commit.
type State struct {
	ID                  types.ID     `json:"id"`
	Location            *types.Point `json:"location,omitempty"`
	IsAvailable         bool         `json:"is_available"`
	IsOnline            bool         `json:"is_online"`
	Rating              float64      `json:"rating"`
	TotalTrips          int          `json:"total_trips"`
	EmergencyEquipment  []string     `json:"emergency_equipment,omitempty"`
	Version             int64        `json:"version"`
	AvailabilityVersion int64        `json:"availability_version"`
	ReservedFor         *types.ID    `json:"reserved_for,omitempty"`
	ReservedAt          *time.Time   `json:"reserved_at,omitempty"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// Profile is the registration data a driver record is created or refreshed from.
type Profile struct {
	ID                 types.ID `json:"id"`
	Rating             float64  `json:"rating"`
	TotalTrips         int      `json:"total_trips"`
	EmergencyEquipment []string `json:"emergency_equipment"`
}

func (p Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: driver id is required", types.ErrInput)
	}
	if !(p.Rating >= 0 && p.Rating <= 5) {
		return fmt.Errorf("%w: rating %v out of range [0,5]", types.ErrInput, p.Rating)
	}
	if p.TotalTrips < 0 {
		return fmt.Errorf("%w: total trips %d must be >= 0", types.ErrInput, p.TotalTrips)
	}
	return nil
}

// Dispatchable reports whether the driver can be offered to the matcher.
func (s State) Dispatchable() bool {
	return s.IsOnline && s.IsAvailable && s.ReservedFor == nil && s.Location != nil
}

func (s State) clone() State {
	cp := s
	if s.Location != nil {
		loc := *s.Location
		cp.Location = &loc
	}
	if s.ReservedFor != nil {
		id := *s.ReservedFor
		cp.ReservedFor = &id
	}
	if s.ReservedAt != nil {
		at := *s.ReservedAt
		cp.ReservedAt = &at
	}
	cp.EmergencyEquipment = append([]string(nil), s.EmergencyEquipment...)
	return cp
}

func applyProfile(s *State, p Profile) {
	s.ID = p.ID
	s.Rating = p.Rating
	s.TotalTrips = p.TotalTrips
	s.EmergencyEquipment = append([]string(nil), p.EmergencyEquipment...)
}

func applyAvailability(s *State, online, available bool) error {
	if !online {
		available = false
	}
	if available && s.ReservedFor != nil {
		return ErrReserved
	}
	if s.IsOnline != online || s.IsAvailable != available {
		s.IsOnline = online
		s.IsAvailable = available
		s.AvailabilityVersion++
	}
	return nil
}

func applyReserve(s *State, expectedAvailabilityVersion int64, tripID types.ID, now time.Time) error {
	switch {
	case s.ReservedFor != nil:
		return fmt.Errorf("%w: driver %s already reserved for trip %s", types.ErrConflict, s.ID, *s.ReservedFor)
	case !s.IsOnline || !s.IsAvailable:
		return fmt.Errorf("%w: driver %s is no longer available", types.ErrConflict, s.ID)
	case s.AvailabilityVersion != expectedAvailabilityVersion:
		return fmt.Errorf("%w: driver %s availability changed (version %d, expected %d)",
			types.ErrConflict, s.ID, s.AvailabilityVersion, expectedAvailabilityVersion)
	}
	s.IsAvailable = false
	s.ReservedFor = &tripID
	s.ReservedAt = &now
	s.AvailabilityVersion++
	return nil
}

// applyRelease clears a reservation held by tripID and reports whether it did.
func applyRelease(s *State, tripID types.ID) bool {
	if s.ReservedFor == nil || *s.ReservedFor != tripID {
		return false
	}
	s.ReservedFor = nil
	s.ReservedAt = nil
	s.IsAvailable = s.IsOnline
	s.AvailabilityVersion++
	return true
}
