package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-wisata/internal/auth"
	"github.com/noah-isme/backend-wisata/internal/booking"
	"github.com/noah-isme/backend-wisata/internal/cart"
	"github.com/noah-isme/backend-wisata/internal/catalog"
	"github.com/noah-isme/backend-wisata/internal/common"
	"github.com/noah-isme/backend-wisata/internal/config"
	"github.com/noah-isme/backend-wisata/internal/events"
	"github.com/noah-isme/backend-wisata/internal/health"
	"github.com/noah-isme/backend-wisata/internal/obs"
	"github.com/noah-isme/backend-wisata/internal/payment"
	"github.com/noah-isme/backend-wisata/internal/ratelimit"
	"github.com/noah-isme/backend-wisata/internal/rates"
	"github.com/noah-isme/backend-wisata/internal/resilience"
	"github.com/noah-isme/backend-wisata/internal/store"
	"github.com/noah-isme/backend-wisata/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "wisata")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "wisata-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "wisata-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	if envBool("DB_AUTO_MIGRATE", true) {
		migrationsDir := envOrDefault("MIGRATIONS_DIR", "db/migrations")
		m, err := migrate.New("file://"+migrationsDir, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("open migrations")
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Str("dir", migrationsDir).Msg("migrations applied")
	}

	db := store.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	enqueuer := &tasks.Enqueuer{
		Client:      taskClient,
		BaseDelay:   cfg.ReconcileBaseDelay,
		MaxAttempts: cfg.ReconcileMaxAttempts,
	}

	bus := &events.Bus{Store: db}

	catalogClient := &catalog.HTTPClient{
		BaseURL: cfg.CatalogBaseURL,
		HTTP:    outboundClient(cfg, "catalog", logger),
		Cache:   catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	}
	catalogHandler := &catalog.Handler{Client: catalogClient}

	rateProvider := &rates.Provider{
		BaseURL:      cfg.RatesBaseURL,
		HTTP:         outboundClient(cfg, "rates", logger),
		R:            redisClient,
		CacheTTL:     envDurationMillis("RATE_CACHE_TTL_MS", 3_600_000),
		FallbackRate: cfg.FallbackRateToLocal,
		Logger:       logger,
	}

	vaultClient := &payment.VaultClient{
		NodeURL:      cfg.VaultNodeURL,
		ContractAddr: cfg.VaultContractAddr,
		HTTP:         outboundClient(cfg, "crypto-vault", logger),
	}
	dispatcher := &payment.Dispatcher{
		Store:  db,
		Ledger: db,
		Card: &payment.CardProcessor{
			BaseURL: cfg.CardProviderBaseURL,
			APIKey:  cfg.CardProviderAPIKey,
			HTTP:    outboundClient(cfg, "card-processor", logger),
		},
		Vault:      vaultClient,
		Rates:      rateProvider,
		Events:     bus,
		Reconciler: enqueuer,
		StablePair: [2]string{"USDT", cfg.CurrencyCode},
		Logger:     logger,
	}
	paymentHandler := &payment.Handler{
		Store: db,
		Refresher: &payment.Reconciler{
			Store:  db,
			Vault:  vaultClient,
			Events: bus,
			Logger: logger,
		},
	}

	authService := &auth.Service{
		Secret: []byte(cfg.JWTSecret),
		Issuer: envOrDefault("JWT_ISSUER", "wisata"),
	}
	authMiddleware := auth.Middleware{Service: authService}

	validate := validator.New()
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	bookingSvc := &booking.Service{
		Drafts:     &booking.DraftStore{R: redisClient, TTL: cfg.DraftTTL},
		Catalog:    catalogClient,
		Store:      db,
		Dispatcher: dispatcher,
		Events:     bus,
		Currency:   cfg.CurrencyCode,
		Logger:     logger,
	}
	bookingHandler := &booking.Handler{Svc: bookingSvc, Validate: validate}

	cartSvc := &cart.Service{
		Store:      db,
		Drafts:     bookingSvc,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.RateLimitPerMinute > 0 {
		limit, err := ratelimit.NewMiddleware(redisClient, int(cfg.RateLimitPerMinute))
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise rate limiter")
		}
		r.Use(limit)
	}

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.PoolChecker{Pool: pool, R: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/catalog/origins", catalogHandler.Origins)
		v.Get("/destinations/{destinationId}/hotels", catalogHandler.Hotels)
		v.Get("/destinations/{destinationId}/activities", catalogHandler.Activities)

		v.Route("/destinations/{destinationId}/draft", func(d chi.Router) {
			d.Use(authMiddleware.RequireAuth)
			d.Post("/", bookingHandler.Start)
			d.Get("/", bookingHandler.Get)
			d.Delete("/", bookingHandler.Reset)
			d.Post("/actions", bookingHandler.Action)
			d.Get("/quote", bookingHandler.Quote)
			d.Get("/routes", bookingHandler.Routes)
			d.With(idem.Middleware).Post("/submit", bookingHandler.Submit)
		})

		v.Route("/carts", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/bookings", cartHandler.Add)
				g.Delete("/bookings/{bookingId}", cartHandler.Remove)
				g.Delete("/bookings", cartHandler.Clear)
				g.Post("/checkout", cartHandler.Checkout)
			})
		})

		v.Route("/payments", func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)
			p.Get("/bookings/{bookingId}/status", paymentHandler.BookingStatus)
			p.Get("/carts/{cartId}/status", paymentHandler.CartStatus)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

// outboundClient builds the resilient HTTP client used for every
// collaborator call, with a circuit breaker per target.
func outboundClient(cfg *config.Config, target string, logger zerolog.Logger) resilience.HTTPClient {
	breaker := resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRate, cfg.CircuitOpenFor).
		WithTarget(target).
		WithLogger(logger)
	return resilience.HTTPClient{
		Client: &http.Client{
			Timeout:   cfg.OutboundTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker:     breaker,
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: cfg.RetryMaxAttempts,
		Jitter:      cfg.RetryJitterPercent,
		Timeout:     cfg.OutboundTimeout,
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
