// README: Pricing rate definition and fare quote.
package pricing

import "saferide/internal/types"

const (
	DefaultBaseFare = 5.00
	DefaultPerKm    = 1.50
)

// Rate holds fare parameters in major currency units. EmergencyPerKm applies to
// every emergency fare; zero means "same as PerKm".
type Rate struct {
	Name           string
	BaseFare       float64
	PerKm          float64
	EmergencyPerKm float64
	Currency       string
}

func DefaultRate() Rate {
	return Rate{
		Name:     "default",
		BaseFare: DefaultBaseFare,
		PerKm:    DefaultPerKm,
		Currency: types.DefaultCurrency,
	}
}

func (r Rate) perKm(urgency types.Urgency) float64 {
	if urgency == types.UrgencyEmergency && r.EmergencyPerKm > 0 {
		return r.EmergencyPerKm
	}
	return r.PerKm
}
