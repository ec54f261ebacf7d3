// README: Hazard zone store backed by PostgreSQL.
package hazard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"saferide/internal/types"
)

// Source supplies the current list of hazard zones.
type Source interface {
	ListActive(ctx context.Context) ([]Zone, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) ListActive(ctx context.Context) ([]Zone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, category, severity, center_lat, center_lng,
		       radius_km, alert_level, active, last_updated
		FROM hazard_zones
		WHERE active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("%w: list hazard zones: %w", types.ErrTransientIO, err)
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		var z Zone
		var id, category, alert string
		if err := rows.Scan(
			&id, &category, &z.Severity, &z.Center.Lat, &z.Center.Lng,
			&z.RadiusKm, &alert, &z.Active, &z.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("%w: scan hazard zone: %w", types.ErrTransientIO, err)
		}
		z.ID = types.ID(id)
		z.Category = Category(category)
		z.AlertLevel = AlertLevel(alert)
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate hazard zones: %w", types.ErrTransientIO, err)
	}
	return zones, nil
}

// StaticSource serves a fixed zone list, used by the memory backend and tests.
type StaticSource struct {
	Zones []Zone
	Err   error
}

func (s *StaticSource) ListActive(context.Context) ([]Zone, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]Zone, 0, len(s.Zones))
	for _, z := range s.Zones {
		if z.Active {
			out = append(out, z)
		}
	}
	return out, nil
}
