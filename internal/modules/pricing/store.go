// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"saferide/internal/types"
)

var ErrRateNotFound = errors.New("pricing rate not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetRate(ctx context.Context, name string) (Rate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT name, base_fare, per_km, emergency_per_km, currency
		FROM pricing_rates
		WHERE name = $1`, name,
	)
	var r Rate
	err := row.Scan(&r.Name, &r.BaseFare, &r.PerKm, &r.EmergencyPerKm, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrRateNotFound
	}
	if err != nil {
		return Rate{}, fmt.Errorf("%w: get rate: %w", types.ErrTransientIO, err)
	}
	return r, nil
}
