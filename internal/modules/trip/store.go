// README: Trip store backed by PostgreSQL.
package trip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"saferide/internal/modules/routing"
	"saferide/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (
			id, rider_id, driver_id, status, status_version,
			pickup_lat, pickup_lng, destination_lat, destination_lng,
			urgency, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11
		)`,
		string(t.ID),
		string(t.RiderID),
		toStringPtr(t.DriverID),
		string(t.Status),
		t.StatusVersion,
		t.Pickup.Lat, t.Pickup.Lng,
		t.Destination.Lat, t.Destination.Lng,
		string(t.Urgency),
		t.CreatedAt,
	)
	if err != nil {
		return transient("create trip", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, rider_id, driver_id, status, status_version,
		       pickup_lat, pickup_lng, destination_lat, destination_lng,
		       urgency, route_estimate,
		       created_at, accepted_at, cancelled_at, cancellation_reason
		FROM trips
		WHERE id = $1`, string(id),
	)

	var t Trip
	var tripID, riderID, status, urgency string
	var driverID, cancelReason *string
	var estimate []byte

	err := row.Scan(
		&tripID, &riderID, &driverID, &status, &t.StatusVersion,
		&t.Pickup.Lat, &t.Pickup.Lng, &t.Destination.Lat, &t.Destination.Lng,
		&urgency, &estimate,
		&t.CreatedAt, &t.AcceptedAt, &t.CancelledAt, &cancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("get trip", err)
	}

	t.ID = types.ID(tripID)
	t.RiderID = types.ID(riderID)
	t.Status = Status(status)
	t.Urgency = types.Urgency(urgency)
	t.CancelReason = cancelReason
	if driverID != nil {
		d := types.ID(*driverID)
		t.DriverID = &d
	}
	if len(estimate) > 0 {
		var est routing.Estimate
		if err := json.Unmarshal(estimate, &est); err != nil {
			return nil, fmt.Errorf("decode route estimate for trip %s: %w", id, err)
		}
		t.Estimate = &est
	}
	return &t, nil
}

func (s *Store) SaveEstimate(ctx context.Context, id types.ID, est routing.Estimate) error {
	raw, err := json.Marshal(est)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET route_estimate = $1,
		    distance_km = $2,
		    duration_min = $3,
		    estimated_fare = $4,
		    fare_currency = $5,
		    safety_score = $6
		WHERE id = $7`,
		raw,
		est.DistanceKm,
		est.DurationMin,
		est.EstimatedFare.Amount,
		est.EstimatedFare.Currency,
		est.SafetyScore,
		string(id),
	)
	if err != nil {
		return transient("save estimate", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, driverID *types.ID, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    cancellation_reason = COALESCE($3, cancellation_reason),
		    accepted_at = CASE WHEN $1 = 'accepted' THEN NOW() ELSE accepted_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $4 AND status = $5 AND status_version = $6`,
		string(to),
		toStringPtr(driverID),
		reason,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, transient("update trip status", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_state_events (
			trip_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.TripID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	if err != nil {
		return transient("append trip event", err)
	}
	return nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrTransientIO, op, err)
}
