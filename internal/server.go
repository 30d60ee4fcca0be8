package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/localstore"
	"github.com/2beens/gymtracker/internal/middleware"
	"github.com/2beens/gymtracker/internal/remote"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/tracker"
	"github.com/2beens/gymtracker/internal/workout"
	"github.com/2beens/gymtracker/pkg"
)

const (
	sessionsCleanupInterval = 8 * time.Hour
	memoryKVSizeBytes       = 128 * 1024 * 1024
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config *config.Config
	dbPool *pgxpool.Pool
	// local kv backends holding files or connections, closed on shutdown
	kvCloser io.Closer

	redisClient *redis.Client
	rateLimiter middleware.RequestRateLimiter
	authService *auth.Service
	trackers    *tracker.Registry

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config      *config.Config
	Secrets     *config.Secrets
	VersionInfo string
}

// storage is the persistence strategy chosen by config, along with the
// matching source of users.
type storage struct {
	syncer        tracker.Syncer
	authenticator auth.Authenticator
	dbPool        *pgxpool.Pool
	kvCloser      io.Closer
	collectors    []prometheus.Collector
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	clock, err := workout.NewSystemClock(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("new clock: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.Secrets.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.Secrets.HoneycombEnabled, "gymtracker", rdb)
	if err != nil {
		return nil, err
	}

	st, err := newStorage(ctx, cfg, params.Secrets, clock, rdb)
	if err != nil {
		otelShutdown()
		return nil, err
	}

	promRegistry := metrics.SetupPrometheus(st.collectors...)
	metricsManager := metrics.NewManager("gymtracker", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	authService := auth.NewAuthService(st.authenticator, cfg.SessionTTL, rdb)
	go func() {
		ticker := time.NewTicker(sessionsCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authService.ScanAndClean(ctx)
			}
		}
	}()

	return &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		dbPool:      st.dbPool,
		kvCloser:    st.kvCloser,

		redisClient: rdb,
		rateLimiter: redis_rate.NewLimiter(rdb),
		authService: authService,
		trackers:    tracker.NewRegistry(st.syncer, clock, metricsManager),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func newStorage(
	ctx context.Context,
	cfg *config.Config,
	secrets *config.Secrets,
	clock workout.Clock,
	rdb *redis.Client,
) (*storage, error) {
	if cfg.Storage == config.StorageRemote {
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         cfg.PostgresUser,
			DBPassword:     secrets.PostgresPassword,
			TracingEnabled: secrets.HoneycombEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}

		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}

		repo := remote.NewRepo(dbPool, clock)
		log.Infof("storage: remote, postgres db [%s]", cfg.PostgresDBName)
		return &storage{
			syncer:        repo,
			authenticator: repo,
			dbPool:        dbPool,
			collectors: []prometheus.Collector{
				pgxpoolprometheus.NewCollector(dbPool, map[string]string{"db_name": cfg.PostgresDBName}),
			},
		}, nil
	}

	st := &storage{
		authenticator: auth.NewDirectory(configUsers(cfg.Users)),
	}

	var kv localstore.KV
	switch cfg.LocalKV {
	case config.LocalKVSqlite:
		sqliteKV, err := localstore.NewSqliteKV(ctx, cfg.SqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite kv: %w", err)
		}
		kv = sqliteKV
		st.kvCloser = sqliteKV
	case config.LocalKVRedis:
		kv = localstore.NewRedisKV(rdb)
	case config.LocalKVMemory:
		log.Warnln("storage: in-memory kv, snapshots are lost on restart")
		kv = localstore.NewMemoryKV(memoryKVSizeBytes)
	default:
		return nil, fmt.Errorf("unknown local kv: %s", cfg.LocalKV)
	}

	st.syncer = localstore.NewStore(kv, clock)
	log.Infof("storage: local, kv [%s], users: %d", cfg.LocalKV, len(cfg.Users))
	return st, nil
}

func configUsers(users []config.User) []workout.User {
	res := make([]workout.User, 0, len(users))
	for _, u := range users {
		res = append(res, workout.User{
			ID:         u.ID,
			Name:       u.Name,
			AccessCode: u.AccessCode,
		})
	}
	return res
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/", s.handleRoot).Methods("GET", "OPTIONS").Name("root")

	authRouter := r.PathPrefix("/a").Subrouter()
	authRouter.Use(middleware.RateLimit(
		s.rateLimiter,
		"auth",
		s.config.LoginRateLimitAllowedPerMin,
		s.metricsManager,
	))
	authHandler := auth.NewHandler(s.authService, s.trackers, s.metricsManager)
	authHandler.SetupRoutes(authRouter)

	trackerHandler := tracker.NewHandler(s.trackers)
	trackerHandler.SetupRoutes(r)

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.authService)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}
	pkg.WriteTextResponseOK(w, fmt.Sprintf("gymtracker %s, I'm OK, thanks ;)", s.versionInfo))
}

func (s *Server) Serve(host string, port int) {
	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      s.routerSetup(),
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", otelhttp.NewHandler(
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
		"metrics",
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
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

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests before the storage goes away
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.kvCloser != nil {
		if err := s.kvCloser.Close(); err != nil {
			log.Errorf("failed to close local kv: %s", err)
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
