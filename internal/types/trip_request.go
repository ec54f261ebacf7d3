// README: Trip request and urgency class consumed by routing and matching.
package types

import (
	"fmt"
	"strings"
)

type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyEmergency Urgency = "emergency"
)

// ParseUrgency accepts "normal" and "emergency" case-insensitively; empty means normal.
func ParseUrgency(s string) (Urgency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(UrgencyNormal):
		return UrgencyNormal, nil
	case string(UrgencyEmergency):
		return UrgencyEmergency, nil
	default:
		return "", fmt.Errorf("%w: unknown urgency %q", ErrInput, s)
	}
}

type TripRequest struct {
	Pickup      Point   `json:"pickup"`
	Destination Point   `json:"destination"`
	Urgency     Urgency `json:"urgency"`
}

func (r TripRequest) Validate() error {
	if err := r.Pickup.Validate(); err != nil {
		return fmt.Errorf("pickup: %w", err)
	}
	if err := r.Destination.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if r.Urgency != UrgencyNormal && r.Urgency != UrgencyEmergency {
		return fmt.Errorf("%w: unknown urgency %q", ErrInput, r.Urgency)
	}
	return nil
}
