package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/config"
	"rollbook/internal/handler"
	"rollbook/internal/httpmiddleware"
	"rollbook/internal/logging"
	"rollbook/internal/metrics"
	"rollbook/internal/queue"
	"rollbook/internal/report"
	"rollbook/internal/roster"
	"rollbook/internal/store"
	"rollbook/internal/store/memstore"
	"rollbook/internal/users"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

type repositories struct {
	users      users.Repository
	students   roster.Repository
	attendance attendance.Repository
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repos repositories
	var checks []handler.HealthCheck
	switch cfg.StoreBackend {
	case "memory":
		mem := memstore.New()
		repos = repositories{users: mem.Users(), students: mem.Students(), attendance: mem.Attendance()}
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		repos = repositories{
			users:      users.NewPostgresRepository(db.Client),
			students:   roster.NewPostgresRepository(db.Client),
			attendance: attendance.NewPostgresRepository(db.Client),
		}
		checks = append(checks, handler.HealthCheck{Name: "db", Check: db.Healthy})
	}

	var (
		q           queue.Queue
		revocations auth.Revocations
		notifier    auth.Notifier
		limiter     httpmiddleware.Limiter
		cache       report.Cache
	)
	if cfg.QueueBackend == "redis" {
		rdb, err := store.NewRedis(cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		if !rdb.Healthy(ctx) {
			logger.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr))
		}
		q = queue.NewRedisQueue(rdb.Client, queue.DefaultKey).WithLogger(logger.Named("queue"))
		revocations = auth.NewRedisRevocations(rdb.Client)
		notifier = auth.NewRedisNotifier(rdb.Client)
		limiter = httpmiddleware.NewRedisWindow(rdb.Client, cfg.RateLimitPerMin)
		cache = report.NewRedisCache(rdb.Client, cfg.ReportCacheTTL)
		checks = append(checks, handler.HealthCheck{Name: "redis", Check: rdb.Healthy})
	} else {
		q = queue.NewInMemory(256)
		revocations = auth.NewMemoryRevocations()
		notifier = auth.NewMemoryNotifier()
		limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:   cfg.AuthJWTSecret,
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	})
	if err != nil {
		return err
	}
	defer verifier.Close()

	userSvc := users.NewService(repos.users)
	students := roster.NewService(repos.students, userSvc)
	reports := report.NewService(students, repos.attendance, cache, logger.Named("report"))

	// Without a separate worker the in-memory queue is drained here.
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := queue.Process(ctx, q, reports.HandleChange, logger.Named("consumer")); err != nil {
				logger.Error("in-process consumer stopped", zap.Error(err))
			}
		}()
	}

	var dev *handler.DevTokens
	if cfg.Env == "dev" && cfg.DevLogin {
		dev = &handler.DevTokens{Issuer: cfg.AuthIssuer, Secret: cfg.AuthJWTSecret, TTL: cfg.AccessTTL}
		logger.Warn("dev token endpoint enabled")
	}

	h := handler.New(handler.Deps{
		Users:       userSvc,
		Students:    students,
		Records:     repos.attendance,
		Reports:     reports,
		Queue:       q,
		Verifier:    verifier,
		Revocations: revocations,
		Notifier:    notifier,
		DevTokens:   dev,
		Health:      checks,
		Log:         logger.Named("http"),
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.AccessLog(gin.DefaultWriter, "/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(metrics.Gin())
	r.Use(httpmiddleware.RateLimit(limiter, httpmiddleware.ClientIP, logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r)

	// No WriteTimeout: the session event stream stays open.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreBackend), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
