package internal

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/multierr"

	"github.com/2beens/gymprogress/internal/aggregate"
	"github.com/2beens/gymprogress/internal/config"
	"github.com/2beens/gymprogress/internal/exercises"
	"github.com/2beens/gymprogress/internal/gym"
	"github.com/2beens/gymprogress/internal/ledger"
	"github.com/2beens/gymprogress/internal/middleware"
	"github.com/2beens/gymprogress/internal/progress"
	"github.com/2beens/gymprogress/internal/store"
	"github.com/2beens/gymprogress/internal/telemetry/metrics"
	"github.com/2beens/gymprogress/internal/telemetry/tracing"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config *config.Config

	redisClient     *redis.Client
	sessionLedger   *ledger.Ledger
	statsEngine     *aggregate.Engine
	progressTracker *progress.Tracker
	exerciseCatalog *exercises.Catalog

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	RedisPassword           string
	VersionInfo             string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("gymprogress", "main", promRegistry)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "gymprogress", rdb)
	if err != nil {
		return nil, err
	}

	kv := store.NewRedis(rdb)
	sessionLedger := ledger.New(kv)

	cacheSizeMB := params.Config.AnalyticsCacheSizeMB
	if cacheSizeMB <= 0 {
		cacheSizeMB = 10
	}
	statsEngine := aggregate.NewEngine(kv, sessionLedger, freecache.NewCache(cacheSizeMB*1024*1024))

	trackerOpts := []progress.Option{
		progress.WithMetrics(metricsManager),
	}
	if params.Config.WeeklyGoalDefault > 0 {
		trackerOpts = append(trackerOpts, progress.WithWeeklyGoal(params.Config.WeeklyGoalDefault))
	}
	progressTracker := progress.NewTracker(kv, progress.NewLogNotifier(), trackerOpts...)

	return &Server{
		config:          params.Config,
		versionInfo:     params.VersionInfo,
		redisClient:     rdb,
		sessionLedger:   sessionLedger,
		statsEngine:     statsEngine,
		progressTracker: progressTracker,
		exerciseCatalog: exercises.NewCatalog(kv),
		metricsManager:  metricsManager,
		promRegistry:    promRegistry,
		otelShutdown:    otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	newSessionLimit := s.config.NewSessionRateLimitPerMin
	if newSessionLimit <= 0 {
		newSessionLimit = 60
	}
	newSessionRateLimit := middleware.RateLimit(
		reqRateLimiter, "new-session", newSessionLimit, s.metricsManager,
	)

	gymHandler := gym.NewHandler(s.sessionLedger, s.statsEngine, s.progressTracker, s.metricsManager)
	r.Handle(
		"/gym/sessions",
		newSessionRateLimit(http.HandlerFunc(gymHandler.HandleNewSession)),
	).Methods("POST", "OPTIONS").Name("new-session")
	r.HandleFunc("/gym/sessions", gymHandler.HandleListSessions).Methods("GET", "OPTIONS").Name("list-sessions")
	r.HandleFunc("/gym/sessions/{id}", gymHandler.HandleDeleteSession).Methods("DELETE", "OPTIONS").Name("delete-session")
	r.HandleFunc("/gym/analytics", gymHandler.HandleAnalytics).Methods("GET", "OPTIONS").Name("analytics")
	r.HandleFunc("/gym/records", gymHandler.HandleRecords).Methods("GET", "OPTIONS").Name("records")

	exercisesHandler := exercises.NewHandler(s.exerciseCatalog)
	r.HandleFunc("/gym/exercises", exercisesHandler.HandleSave).Methods("POST", "OPTIONS").Name("new-exercise")
	r.HandleFunc("/gym/exercises", exercisesHandler.HandleList).Methods("GET", "OPTIONS").Name("list-exercises")
	r.HandleFunc("/gym/exercises/{id}", exercisesHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-exercise")

	progressHandler := progress.NewHandler(s.progressTracker)
	r.HandleFunc("/progress/initialize", progressHandler.HandleInitialize).Methods("POST", "OPTIONS").Name("initialize-progress")
	r.HandleFunc("/progress/events", progressHandler.HandleEvent).Methods("POST", "OPTIONS").Name("progress-event")
	r.HandleFunc("/progress", progressHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-progress")

	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(s.versionInfo))
	}).Methods("GET").Name("version")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(
		s.config.PrometheusMetricsHost,
		strconv.Itoa(s.config.PrometheusMetricsPort),
	)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// give progress states that failed an earlier write a final chance
	s.progressTracker.Flush(ctx)

	var shutdownErrs error
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			shutdownErrs = multierr.Append(shutdownErrs, err)
		}
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		shutdownErrs = multierr.Append(shutdownErrs, err)
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		shutdownErrs = multierr.Append(shutdownErrs, err)
	}
	log.Warnln("metrics server shut down")

	if shutdownErrs != nil {
		log.Errorf("graceful shutdown errors: %s", shutdownErrs)
	}
}
