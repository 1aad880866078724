// Command server runs the label-verification intake HTTP service: it
// accepts label uploads, stages them in the blob store and job store, and
// enqueues them for the worker.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aerocristobal/label-verify/infrastructure/config"
	"github.com/aerocristobal/label-verify/infrastructure/database"
	"github.com/aerocristobal/label-verify/infrastructure/database/migrations"
	"github.com/aerocristobal/label-verify/infrastructure/logging"
	appmiddleware "github.com/aerocristobal/label-verify/infrastructure/middleware"
	"github.com/aerocristobal/label-verify/infrastructure/metrics"
	"github.com/aerocristobal/label-verify/internal/blobstore"
	"github.com/aerocristobal/label-verify/internal/cipher"
	"github.com/aerocristobal/label-verify/internal/intake"
	"github.com/aerocristobal/label-verify/internal/jobstore"
	"github.com/aerocristobal/label-verify/internal/queue"
)

const serviceName = "label-verify-intake"

func main() {
	logger := logging.NewFromEnv(serviceName)
	ctx := context.Background()
	m := metrics.New(serviceName)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(ctx, "load configuration", err)
	}

	db, err := database.Open(ctx, cfg.DatabaseURL, 20, 5, 5*time.Minute)
	if err != nil {
		logger.Fatal(ctx, "open database", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		logger.Fatal(ctx, "apply database migrations", err)
	}

	q, err := queue.NewFromURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal(ctx, "connect to redis", err)
	}

	enc, err := cipher.New(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal(ctx, "construct cipher", err)
	}

	blob := blobstore.New(blobstore.Config{
		Bucket:    cfg.R2Bucket,
		Endpoint:  cfg.R2Endpoint,
		AccessKey: cfg.R2AccessKey,
		SecretKey: cfg.R2SecretKey,
	})

	jobs := jobstore.New(db)

	handler := &intake.Handler{
		Cipher:  enc,
		Blob:    blob,
		Jobs:    jobs,
		Queue:   q,
		DB:      db,
		Logger:  logger,
		Metrics: m,
	}

	ready := false

	router := mux.NewRouter()
	handler.Routes(router)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/livez", appmiddleware.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", appmiddleware.ReadinessHandler(&ready)).Methods(http.MethodGet)
	router.HandleFunc("/debug/runtime", appmiddleware.RuntimeStatsHandler()).Methods(http.MethodGet)

	recovery := appmiddleware.NewRecoveryMiddleware(logger)
	cors := appmiddleware.NewCORSMiddleware(&appmiddleware.CORSConfig{AllowedOrigins: []string{"*"}})
	security := appmiddleware.NewSecurityHeadersMiddleware(nil)
	bodyLimit := appmiddleware.NewBodyLimitMiddleware(10 << 20)
	timeout := appmiddleware.NewTimeoutMiddleware(60 * time.Second)

	router.Use(appmiddleware.LoggingMiddleware(logger))
	router.Use(appmiddleware.MetricsMiddleware(serviceName, m))
	router.Use(recovery.Handler)
	router.Use(cors.Handler)
	router.Use(security.Handler)
	router.Use(bodyLimit.Handler)
	router.Use(timeout.Handler)

	srv := &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	shutdown := appmiddleware.NewGracefulShutdown(srv, 30*time.Second)
	shutdown.ListenForSignals()

	ready = true

	logger.Info(ctx, "intake service listening", map[string]interface{}{"addr": cfg.BindAddr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(ctx, "intake service crashed", err)
	}

	shutdown.Wait()
}
