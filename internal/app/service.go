// README: Service wiring; builds stores, publishers, the coordinator and the HTTP server from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"saferide/internal/config"
	"saferide/internal/events"
	httpapi "saferide/internal/http"
	"saferide/internal/infra"
	"saferide/internal/logging"
	"saferide/internal/metrics"
	"saferide/internal/modules/dispatch"
	"saferide/internal/modules/driver"
	"saferide/internal/modules/hazard"
	"saferide/internal/modules/matching"
	"saferide/internal/modules/pricing"
	"saferide/internal/modules/routing"
	"saferide/internal/modules/trip"
)

const shutdownTimeout = 10 * time.Second

// Service owns every long-lived component of the API process.
type Service struct {
	cfg         *config.Config
	log         logging.Logger
	hazards     *hazard.Provider
	coordinator *dispatch.Coordinator
	bus         *events.BusPublisher
	server      *http.Server
	closers     []func() error
}

// New builds the service graph. Durable storage and network sinks are dialled
// here, so a misconfigured dependency fails startup.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	s := &Service{cfg: cfg, log: logging.New("service")}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	var rec metrics.Recorder = metrics.NopRecorder{}
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		prom, err := metrics.NewPromRecorder(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, fmt.Errorf("prometheus recorder: %w", err)
		}
		rec, gatherer = prom, prometheus.DefaultGatherer
	}

	var (
		driverRepo  driver.Repository
		tripRepo    trip.Repository
		hazardSrc   hazard.Source
		rateStore   pricing.RateStore
		pool        *pgxpool.Pool
		redisClient *redis.Client
	)
	switch cfg.Storage.Backend {
	case config.BackendDurable:
		var err error
		if pool, err = infra.NewDB(ctx, cfg.DB.DSN); err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		if redisClient, err = infra.NewRedis(ctx, cfg.Redis.Addr); err != nil {
			return nil, err
		}
		s.closers = append(s.closers, redisClient.Close)
		driverRepo = driver.NewRedisStore(redisClient, cfg.Redis.Prefix)
		tripRepo = trip.NewStore(pool)
		hazardSrc = hazard.NewStore(pool)
		rateStore = pricing.NewStore(pool)
	default:
		driverRepo = driver.NewMemStore()
		tripRepo = trip.NewMemStore()
		hazardSrc = &hazard.StaticSource{Zones: cfg.Hazards.Zones}
	}

	fares := pricing.NewService(rateStore, cfg.Pricing.Rate())
	if rateStore != nil {
		if err := fares.LoadRate(ctx, cfg.Pricing.RateName); err != nil {
			s.log.Warnf("using configured pricing rate: %v", err)
		}
	}

	planner, err := routing.NewPlanner(cfg.Routing.Planner, cfg.Routing.PlannerOptions())
	if err != nil {
		return nil, err
	}
	estimator := routing.NewEstimator(planner, fares, cfg.Routing.Estimator(), logging.New("routing"), rec)
	s.hazards = hazard.NewProvider(hazardSrc, cfg.Hazards.RefreshInterval, logging.New("hazard"), rec)

	publisher, err := s.publishers(cfg.Events)
	if err != nil {
		return nil, err
	}

	drivers := driver.NewService(driverRepo, logging.New("driver"))
	trips := trip.NewService(tripRepo, logging.New("trip"))
	s.coordinator = dispatch.NewCoordinator(dispatch.Deps{
		Drivers:   driverRepo,
		Trips:     trips,
		Hazards:   s.hazards,
		Estimator: estimator,
		Matcher:   matching.NewMatcher(cfg.Matching.Matcher()),
		Publisher: publisher,
		Log:       logging.New("dispatch"),
		Metrics:   rec,
	}, cfg.Dispatch.Coordinator())

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.RouterDeps{
		Trips:     trips,
		Drivers:   drivers,
		Dispatch:  s.coordinator,
		Estimator: estimator,
		Hazards:   s.hazards,
		Log:       logging.New("http"),
		Gatherer:  gatherer,
	})
	s.server = &http.Server{Addr: cfg.HTTP.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	ok = true
	return s, nil
}

func (s *Service) publishers(cfg config.EventsConfig) (events.Publisher, error) {
	multi := events.NewMultiPublisher()
	for _, sink := range cfg.Sinks {
		switch sink {
		case config.SinkBus:
			s.bus = events.NewBusPublisher(cfg.Buffer)
			s.closers = append(s.closers, func() error { s.bus.Close(); return nil })
			multi.Add(sink, s.bus)
		case config.SinkRabbitMQ:
			p, err := events.DialRabbit(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
			if err != nil {
				return nil, fmt.Errorf("rabbitmq sink: %w", err)
			}
			s.closers = append(s.closers, p.Close)
			multi.Add(sink, p)
		case config.SinkMQTT:
			client, err := events.ConnectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID)
			if err != nil {
				return nil, fmt.Errorf("mqtt sink: %w", err)
			}
			p := events.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS)
			s.closers = append(s.closers, func() error { p.Close(); return nil })
			multi.Add(sink, p)
		}
	}
	return multi, nil
}

// Run starts the refresher, the sweeper and the HTTP server and blocks until
// ctx is cancelled or the server fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.hazards.RunRefresher(ctx)
	go s.coordinator.RunReservationSweeper(ctx)
	if s.bus != nil {
		go s.auditAssignments(ctx, s.bus.Subscribe())
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s (storage=%s)", s.cfg.HTTP.Addr, s.cfg.Storage.Backend)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, failed := <-errCh:
		if failed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// auditAssignments logs every assignment delivered on the in-process bus.
func (s *Service) auditAssignments(ctx context.Context, ch <-chan events.AssignmentEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.log.Debugw("assignment", map[string]any{
				"event_id": e.EventID, "trip_id": e.TripID, "driver_id": e.DriverID, "urgency": e.Urgency,
			})
		}
	}
}

// Close releases resources in reverse order of acquisition.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
