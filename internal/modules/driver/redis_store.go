// README: Driver store backed by Redis: JSON records under WATCH, a GEO index and a reserved set.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"saferide/internal/types"
)

const (
	DefaultRedisPrefix = "saferide"

	// maxTxRetries bounds WATCH retries for writes that are not themselves a
	// compare-and-set (location pings, toggles).
	maxTxRetries = 8
	// wholeEarthKm is larger than any great-circle distance.
	wholeEarthKm = 20040.0
)

type RedisStore struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) stateKey(id types.ID) string {
	return fmt.Sprintf("%s:driver:%s", s.prefix, string(id))
}

func (s *RedisStore) geoKey() string      { return s.prefix + ":drivers:geo" }
func (s *RedisStore) reservedKey() string { return s.prefix + ":drivers:reserved" }

func (s *RedisStore) Get(ctx context.Context, id types.ID) (*State, error) {
	raw, err := s.redis.Get(ctx, s.stateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("get driver", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode driver %s: %w", id, err)
	}
	return &st, nil
}

// update applies fn inside a WATCH transaction on the driver's key. A
// concurrent write aborts the EXEC and the read-modify-write is retried
// against the fresh record, so fn sees every competing change.
func (s *RedisStore) update(ctx context.Context, id types.ID, create bool, fn func(*State) error) (*State, error) {
	key := s.stateKey(id)
	var out State

	txf := func(tx *redis.Tx) error {
		var st State
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if !create {
				return ErrNotFound
			}
			st = State{ID: id}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &st); err != nil {
				return fmt.Errorf("decode driver %s: %w", id, err)
			}
		}

		if err := fn(&st); err != nil {
			return err
		}
		st.Version++
		st.UpdatedAt = s.now()
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			s.index(ctx, pipe, st)
			return nil
		})
		if err == nil {
			out = st
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return &out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if isDomainErr(err) {
			return nil, err
		}
		return nil, transient("update driver", err)
	}
	return nil, fmt.Errorf("%w: driver %s is being updated concurrently", types.ErrConflict, id)
}

func (s *RedisStore) index(ctx context.Context, pipe redis.Pipeliner, st State) {
	if st.Dispatchable() {
		pipe.GeoAdd(ctx, s.geoKey(), &redis.GeoLocation{
			Name:      string(st.ID),
			Longitude: st.Location.Lng,
			Latitude:  st.Location.Lat,
		})
	} else {
		pipe.ZRem(ctx, s.geoKey(), string(st.ID))
	}
	if st.ReservedFor != nil {
		pipe.SAdd(ctx, s.reservedKey(), string(st.ID))
	} else {
		pipe.SRem(ctx, s.reservedKey(), string(st.ID))
	}
}

func (s *RedisStore) Upsert(ctx context.Context, p Profile) (*State, error) {
	return s.update(ctx, p.ID, true, func(st *State) error {
		applyProfile(st, p)
		return nil
	})
}

func (s *RedisStore) UpdateLocation(ctx context.Context, id types.ID, p types.Point) (*State, error) {
	return s.update(ctx, id, false, func(st *State) error {
		st.Location = &p
		return nil
	})
}

func (s *RedisStore) SetAvailability(ctx context.Context, id types.ID, online, available bool) (*State, error) {
	return s.update(ctx, id, false, func(st *State) error {
		return applyAvailability(st, online, available)
	})
}

func (s *RedisStore) Reserve(ctx context.Context, id types.ID, expected int64, tripID types.ID) (*State, error) {
	return s.update(ctx, id, false, func(st *State) error {
		return applyReserve(st, expected, tripID, s.now())
	})
}

func (s *RedisStore) Release(ctx context.Context, id types.ID, tripID types.ID) (bool, error) {
	_, err := s.update(ctx, id, false, func(st *State) error {
		if !applyRelease(st, tripID) {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) ListAvailable(ctx context.Context, near types.Point, radiusKm float64) ([]State, error) {
	if radiusKm <= 0 {
		radiusKm = wholeEarthKm
	}
	ids, err := s.redis.GeoSearch(ctx, s.geoKey(), &redis.GeoSearchQuery{
		Longitude:  near.Lng,
		Latitude:   near.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, transient("search drivers", err)
	}
	states, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	// The index can trail the records by one write; the record wins.
	out := states[:0]
	for _, st := range states {
		if st.Dispatchable() {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *RedisStore) ListReserved(ctx context.Context) ([]State, error) {
	ids, err := s.redis.SMembers(ctx, s.reservedKey()).Result()
	if err != nil {
		return nil, transient("list reserved drivers", err)
	}
	states, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := states[:0]
	for _, st := range states {
		if st.ReservedFor != nil {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]State, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.stateKey(types.ID(id))
	}
	vals, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, transient("load drivers", err)
	}
	out := make([]State, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var st State
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("decode driver: %w", err)
		}
		out = append(out, st)
	}
	return out, nil
}

func isDomainErr(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrReserved) ||
		errors.Is(err, errNoChange) || errors.Is(err, types.ErrConflict)
}

func transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrTransientIO, op, err)
}
