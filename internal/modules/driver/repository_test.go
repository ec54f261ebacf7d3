package driver

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saferide/internal/types"
)

var center = types.Point{Lat: 12.97, Lng: 77.59}

func TestMemStore(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository { return NewMemStore() })
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SAFERIDE_REDIS_ADDR")
	if addr == "" {
		t.Skip("SAFERIDE_REDIS_ADDR not set; skipping redis-backed driver store tests")
	}
	runRepositoryContract(t, func(t *testing.T) Repository {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { rdb.Close() })
		return NewRedisStore(rdb, fmt.Sprintf("saferide_test_%d", time.Now().UnixNano()))
	})
}

func onlineDriver(t *testing.T, repo Repository, id types.ID, loc types.Point) *State {
	t.Helper()
	ctx := context.Background()
	_, err := repo.Upsert(ctx, Profile{ID: id, Rating: 4.5, TotalTrips: 10})
	require.NoError(t, err)
	_, err = repo.UpdateLocation(ctx, id, loc)
	require.NoError(t, err)
	st, err := repo.SetAvailability(ctx, id, true, true)
	require.NoError(t, err)
	return st
}

func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := newRepo(t).Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("versions", func(t *testing.T) {
		repo := newRepo(t)
		st := onlineDriver(t, repo, "d1", center)
		assert.Equal(t, int64(3), st.Version)
		assert.Equal(t, int64(1), st.AvailabilityVersion)

		moved, err := repo.UpdateLocation(ctx, "d1", types.Point{Lat: 12.98, Lng: 77.6})
		require.NoError(t, err)
		assert.Equal(t, int64(4), moved.Version)
		assert.Equal(t, st.AvailabilityVersion, moved.AvailabilityVersion, "location pings leave availability version alone")
	})

	t.Run("reserve and release", func(t *testing.T) {
		repo := newRepo(t)
		st := onlineDriver(t, repo, "d1", center)

		reserved, err := repo.Reserve(ctx, "d1", st.AvailabilityVersion, "t1")
		require.NoError(t, err)
		assert.False(t, reserved.IsAvailable)
		require.NotNil(t, reserved.ReservedFor)
		assert.Equal(t, types.ID("t1"), *reserved.ReservedFor)

		_, err = repo.Reserve(ctx, "d1", reserved.AvailabilityVersion, "t2")
		assert.ErrorIs(t, err, types.ErrConflict)

		ok, err := repo.Release(ctx, "d1", "t2")
		require.NoError(t, err)
		assert.False(t, ok, "release by a different trip is a no-op")

		ok, err = repo.Release(ctx, "d1", "t1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Release(ctx, "d1", "t1")
		require.NoError(t, err)
		assert.False(t, ok, "release is idempotent")

		got, err := repo.Get(ctx, "d1")
		require.NoError(t, err)
		assert.True(t, got.IsAvailable)
		assert.Nil(t, got.ReservedFor)
	})

	t.Run("reserve stale version", func(t *testing.T) {
		repo := newRepo(t)
		st := onlineDriver(t, repo, "d1", center)
		_, err := repo.SetAvailability(ctx, "d1", true, false)
		require.NoError(t, err)
		_, err = repo.SetAvailability(ctx, "d1", true, true)
		require.NoError(t, err)

		_, err = repo.Reserve(ctx, "d1", st.AvailabilityVersion, "t1")
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("toggle cannot free a reserved driver", func(t *testing.T) {
		repo := newRepo(t)
		st := onlineDriver(t, repo, "d1", center)
		_, err := repo.Reserve(ctx, "d1", st.AvailabilityVersion, "t1")
		require.NoError(t, err)

		_, err = repo.SetAvailability(ctx, "d1", true, true)
		assert.ErrorIs(t, err, ErrReserved)
	})

	t.Run("list available and reserved", func(t *testing.T) {
		repo := newRepo(t)
		near := onlineDriver(t, repo, "near", types.Point{Lat: 12.98, Lng: 77.59})
		onlineDriver(t, repo, "far", types.Point{Lat: 13.5, Lng: 77.59})
		onlineDriver(t, repo, "busy", center)
		_, err := repo.Upsert(ctx, Profile{ID: "nowhere"})
		require.NoError(t, err)
		_, err = repo.SetAvailability(ctx, "nowhere", true, true)
		require.NoError(t, err)

		busy, err := repo.Get(ctx, "busy")
		require.NoError(t, err)
		_, err = repo.Reserve(ctx, "busy", busy.AvailabilityVersion, "t9")
		require.NoError(t, err)

		got, err := repo.ListAvailable(ctx, center, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, near.ID, got[0].ID)

		all, err := repo.ListAvailable(ctx, center, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		reserved, err := repo.ListReserved(ctx)
		require.NoError(t, err)
		require.Len(t, reserved, 1)
		assert.Equal(t, types.ID("busy"), reserved[0].ID)
	})

	t.Run("concurrent reserve has one winner", func(t *testing.T) {
		repo := newRepo(t)
		st := onlineDriver(t, repo, "d1", center)

		const attempts = 8
		var wg sync.WaitGroup
		errs := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(trip types.ID) {
				defer wg.Done()
				_, err := repo.Reserve(ctx, "d1", st.AvailabilityVersion, trip)
				errs <- err
			}(types.ID(fmt.Sprintf("t%d", i)))
		}
		wg.Wait()
		close(errs)

		success := 0
		for err := range errs {
			if err == nil {
				success++
				continue
			}
			assert.ErrorIs(t, err, types.ErrConflict)
		}
		assert.Equal(t, 1, success)
	})
}

func TestService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemStore(), nil)

	_, err := svc.Register(ctx, Profile{ID: "d1", Rating: 5.5})
	assert.ErrorIs(t, err, types.ErrInput)
	_, err = svc.Register(ctx, Profile{ID: "", Rating: 4})
	assert.ErrorIs(t, err, types.ErrInput)

	_, err = svc.Register(ctx, Profile{ID: "d1", Rating: 4.9, EmergencyEquipment: []string{"first_aid"}})
	require.NoError(t, err)

	_, err = svc.UpdateLocation(ctx, "d1", types.Point{Lat: -91})
	assert.ErrorIs(t, err, types.ErrInput)

	_, err = svc.UpdateLocation(ctx, "ghost", center)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateLocation(ctx, "d1", center)
	require.NoError(t, err)
	st, err := svc.SetAvailability(ctx, "d1", false, true)
	require.NoError(t, err)
	assert.False(t, st.IsAvailable, "offline drivers are never available")

	_, err = svc.ListAvailable(ctx, types.Point{Lat: 100}, 5)
	assert.ErrorIs(t, err, types.ErrInput)
}

func TestTransientKeepsCause(t *testing.T) {
	err := transient("update driver", context.DeadlineExceeded)
	assert.ErrorIs(t, err, types.ErrTransientIO)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
