package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	api "github.com/mind-engage/usersapi/internal/api/http"
	"github.com/mind-engage/usersapi/internal/auth/guard"
	auth "github.com/mind-engage/usersapi/internal/auth/middleware"
	"github.com/mind-engage/usersapi/internal/config"
	"github.com/mind-engage/usersapi/internal/db"
	"github.com/mind-engage/usersapi/internal/directory"
	"github.com/mind-engage/usersapi/internal/logging"
	"github.com/mind-engage/usersapi/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	log, err := logging.New("usersapi", string(cfg.Env), cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()

	// --- Photos ---
	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal("blob store", zap.Error(err))
	}

	// --- Single-use tokens ---
	var metrics *guard.Metrics
	if cfg.MetricsEnabled {
		metrics = guard.NewMetrics(prometheus.DefaultRegisterer)
	}
	tokens, err := guard.New(guard.Config{
		Secret:        cfg.AuthSecret,
		TTL:           cfg.TokenTTL,
		SweepInterval: cfg.TokenSweepInterval,
	}, guard.WithLogger(log.Named("guard")), guard.WithMetrics(metrics))
	if err != nil {
		log.Fatal("token guard", zap.Error(err))
	}
	tokens.Start()
	defer tokens.Stop()

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.Requests(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", auth.TokenHeader},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/token", auth.TokenHandler(tokens, log))
	api.MountDirectory(r, api.Directory{
		Store:         directory.NewSQLStore(dbh),
		Blobs:         blobs,
		Log:           log.Named("directory"),
		PhotoMaxBytes: cfg.PhotoMaxMB << 20,
		UsersURL:      cfg.PublicURL + "/users",
	}, auth.RequireToken(tokens, log.Named("auth")))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("db", cfg.DBDriver),
			zap.String("blob", cfg.BlobDriver),
			zap.Duration("token_ttl", tokens.TTL()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
}

func openBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	switch cfg.BlobDriver {
	case "minio", "s3":
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return storage.NewFSStore(cfg.BlobBasePath)
	}
}
