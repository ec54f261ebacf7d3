// README: Benchmark test cases; HTTP flows, dispatch contention, DB/Redis and throughput checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	runID  string
	origin point
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

type point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func NewRunner(cfg Config) *Runner {
	// Every run works around its own origin so drivers left online by an
	// earlier run are out of matching range.
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		runID:  fmt.Sprintf("bench%d", time.Now().UnixNano()),
		origin: point{Lat: -50 + rnd.Float64()*100, Lng: -170 + rnd.Float64()*340},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

// near offsets the run origin by roughly northKm/eastKm.
func (r *Runner) near(northKm, eastKm float64) point {
	return point{Lat: r.origin.Lat + northKm/111.0, Lng: r.origin.Lng + eastKm/111.0}
}

func (r *Runner) id(kind string, n int) string {
	return fmt.Sprintf("%s-%s-%d", r.runID, kind, n)
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}),

		httpCase("Estimate: valid", base+"/api/estimates", map[string]any{
			"pickup":      r.near(0, 0),
			"destination": r.near(-4, 3),
			"urgency":     "emergency",
		}, []int{200}),
		httpCase("Estimate: missing destination -> 400", base+"/api/estimates", map[string]any{
			"pickup": r.near(0, 0),
		}, []int{400}),
		httpCaseMethod("Hazards: near origin", http.MethodGet,
			fmt.Sprintf("%s/api/hazards?lat=%f&lng=%f&radius_km=5", base, r.origin.Lat, r.origin.Lng), nil, []int{200, 503}),

		httpCase("Trip: create (missing rider -> 400)", base+"/api/trips", map[string]any{
			"pickup": r.near(0, 0), "destination": r.near(1, 1),
		}, []int{400}),
		httpCase("Trip: create (bad coords -> 400)", base+"/api/trips", map[string]any{
			"rider_id": "r1", "pickup": point{Lat: 123, Lng: 456}, "destination": r.near(1, 1),
		}, []int{400}),
		httpCase("Driver: register (bad rating -> 400)", base+"/api/drivers", map[string]any{
			"id": r.id("driver", 999), "rating": 9,
		}, []int{400}),
		httpCaseMethod("Trip: unknown id -> 404", http.MethodGet, base+"/api/trips/does-not-exist", nil, []int{404}),

		{Name: "Dispatch: assign then cancel releases driver", Run: dispatchAndCancel},
		{Name: "Dispatch: no driver in range stays pending", Run: dispatchNoDriver},
		{
			Name: "Concurrency: many trips, one driver",
			Run: func(ctx context.Context, r *Runner) Result {
				return contention(ctx, r, r.cfg.Concurrency, 1)
			},
		},
		{
			Name: "Concurrency: many trips, few drivers",
			Run: func(ctx context.Context, r *Runner) Result {
				return contention(ctx, r, r.cfg.Concurrency, max(2, r.cfg.Concurrency/4))
			},
		},

		manualCase("Error: Redis down -> 503", "stop redis and dispatch a trip"),
		manualCase("Error: restart keeps reservations", "restart with storage.backend=durable and read the driver back"),

		{
			Name: "Perf: location update throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				id := r.id("perf", 0)
				if err := r.onlineDriver(ctx, id, r.near(30, 30), false); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return perfLoad(ctx, r, http.MethodPut, base+"/api/drivers/"+id+"/location", r.near(30, 30))
			},
		},
		{
			Name: "Perf: estimate throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodPost, base+"/api/estimates", map[string]any{
					"pickup": r.near(0, 0), "destination": r.near(-4, 3),
				})
			},
		},
	}
}

func (r *Runner) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (r *Runner) expect(ctx context.Context, method, url string, body, out any, want int) error {
	status, err := r.do(ctx, method, url, body, out)
	if err != nil {
		return err
	}
	if status != want {
		return fmt.Errorf("%s %s: status=%d want %d", method, strings.TrimPrefix(url, r.cfg.BaseURL), status, want)
	}
	return nil
}

func (r *Runner) onlineDriver(ctx context.Context, id string, at point, available bool) error {
	base := r.cfg.BaseURL
	if err := r.expect(ctx, http.MethodPost, base+"/api/drivers", map[string]any{"id": id, "rating": 4.5}, nil, http.StatusCreated); err != nil {
		return err
	}
	if err := r.expect(ctx, http.MethodPut, base+"/api/drivers/"+id+"/location", at, nil, http.StatusOK); err != nil {
		return err
	}
	return r.expect(ctx, http.MethodPut, base+"/api/drivers/"+id+"/availability",
		map[string]bool{"online": true, "available": available}, nil, http.StatusOK)
}

func (r *Runner) offline(ctx context.Context, id string) {
	_, _ = r.do(ctx, http.MethodPut, r.cfg.BaseURL+"/api/drivers/"+id+"/availability",
		map[string]bool{"online": false, "available": false}, nil)
}

type tripView struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	DriverID *string `json:"driver_id"`
}

type createTripResp struct {
	Trip     tripView `json:"trip"`
	Dispatch *struct {
		Assigned bool    `json:"assigned"`
		DriverID *string `json:"driver_id"`
		Attempts int     `json:"attempts"`
	} `json:"dispatch"`
}

type driverView struct {
	ID          string  `json:"id"`
	IsAvailable bool    `json:"is_available"`
	ReservedFor *string `json:"reserved_for"`
}

func (r *Runner) createTrip(ctx context.Context, rider string, pickup point, dispatch bool) (createTripResp, error) {
	var out createTripResp
	err := r.expect(ctx, http.MethodPost, r.cfg.BaseURL+"/api/trips", map[string]any{
		"rider_id":    rider,
		"pickup":      pickup,
		"destination": point{Lat: pickup.Lat - 0.03, Lng: pickup.Lng + 0.03},
		"urgency":     "normal",
		"dispatch":    dispatch,
	}, &out, http.StatusCreated)
	return out, err
}

func dispatchAndCancel(ctx context.Context, r *Runner) Result {
	start := time.Now()
	driverID := r.id("driver", 0)
	pickup := r.near(50, 0)
	if err := r.onlineDriver(ctx, driverID, point{Lat: pickup.Lat + 0.005, Lng: pickup.Lng}, true); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	defer r.offline(ctx, driverID)

	created, err := r.createTrip(ctx, r.id("rider", 0), pickup, true)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if created.Dispatch == nil || !created.Dispatch.Assigned || created.Trip.Status != "accepted" {
		return Result{Status: "FAIL", Note: fmt.Sprintf("trip %s not assigned (status=%s)", created.Trip.ID, created.Trip.Status)}
	}
	if err := r.expect(ctx, http.MethodPost, r.cfg.BaseURL+"/api/trips/"+created.Trip.ID+"/cancel",
		map[string]string{"reason": "bench"}, nil, http.StatusOK); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	var d driverView
	if err := r.expect(ctx, http.MethodGet, r.cfg.BaseURL+"/api/drivers/"+driverID, nil, &d, http.StatusOK); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if !d.IsAvailable || d.ReservedFor != nil {
		return Result{Status: "FAIL", Note: "driver still reserved after cancel"}
	}
	return Result{Status: "PASS", Latency: time.Since(start)}
}

func dispatchNoDriver(ctx context.Context, r *Runner) Result {
	created, err := r.createTrip(ctx, r.id("rider", 1), r.near(-300, -300), true)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if created.Dispatch == nil || created.Dispatch.Assigned || created.Trip.Status != "pending" {
		return Result{Status: "FAIL", Note: "expected a pending trip without a driver"}
	}
	return Result{Status: "PASS"}
}

// contention dispatches trips concurrently against a small driver pool and
// checks that no driver ends up on two trips.
func contention(ctx context.Context, r *Runner, trips, drivers int) Result {
	area := r.near(float64(100+trips*drivers), 0)
	ids := make([]string, drivers)
	for i := range ids {
		ids[i] = r.id(fmt.Sprintf("pool%d", trips*drivers), i)
		at := point{Lat: area.Lat + float64(i)*0.001, Lng: area.Lng}
		if err := r.onlineDriver(ctx, ids[i], at, true); err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
	}
	defer func() {
		for _, id := range ids {
			r.offline(ctx, id)
		}
	}()

	start := time.Now()
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		assigned = map[string][]string{}
		errs     []string
	)
	for i := 0; i < trips; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.createTrip(ctx, r.id("crowd", i), area, true)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err.Error())
				return
			}
			if out.Dispatch != nil && out.Dispatch.Assigned && out.Dispatch.DriverID != nil {
				assigned[*out.Dispatch.DriverID] = append(assigned[*out.Dispatch.DriverID], out.Trip.ID)
			}
		}(i)
	}
	wg.Wait()
	latency := time.Since(start)

	for driverID, tripIDs := range assigned {
		if len(tripIDs) > 1 {
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("driver %s assigned to %d trips", driverID, len(tripIDs))}
		}
	}
	if len(errs) > 0 {
		return Result{Status: "FAIL", Latency: latency, Note: errs[0]}
	}
	// Trips that lose MaxAttempts races stay pending, so only a lower bound holds.
	if len(assigned) == 0 || (drivers == 1 && len(assigned) != 1) {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("assigned=%d drivers=%d", len(assigned), drivers)}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("trips=%d drivers=%d assigned=%d", trips, drivers, len(assigned))}
}

func httpCase(name, url string, body any, okStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses []int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			start := time.Now()
			status, err := r.do(ctx, method, url, body, nil)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			latency := time.Since(start)
			if contains(okStatuses, status) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			if status == http.StatusNotImplemented {
				return Result{Status: "PENDING", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		},
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

func perfLoad(ctx context.Context, r *Runner, method, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, err := r.do(ctx, method, url, payload, nil)
				mu.Lock()
				if err != nil || status >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
