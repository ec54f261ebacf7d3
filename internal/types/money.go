// README: Common money value object used across modules.
package types

import (
	"fmt"
	"math"
)

const DefaultCurrency = "USD"

// Money stores an amount in minor units (cents) to keep fare arithmetic exact.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// MoneyFromFloat rounds v (major units) half away from zero into minor units.
func MoneyFromFloat(v float64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: int64(math.Round(v * 100)), Currency: currency}
}

// Float returns the amount in major units.
func (m Money) Float() float64 {
	return float64(m.Amount) / 100
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Float(), m.Currency)
}
