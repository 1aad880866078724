// Command worker runs the label-verification processing loop: dequeue a
// job, decrypt its image, extract fields via the vision model, verify
// them against TTB standards and the reference catalog, and persist the
// result.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aerocristobal/label-verify/infrastructure/config"
	"github.com/aerocristobal/label-verify/infrastructure/database"
	"github.com/aerocristobal/label-verify/infrastructure/database/migrations"
	"github.com/aerocristobal/label-verify/infrastructure/logging"
	"github.com/aerocristobal/label-verify/infrastructure/metrics"
	"github.com/aerocristobal/label-verify/internal/blobstore"
	"github.com/aerocristobal/label-verify/internal/cipher"
	"github.com/aerocristobal/label-verify/internal/jobstore"
	"github.com/aerocristobal/label-verify/internal/queue"
	"github.com/aerocristobal/label-verify/internal/refcache"
	"github.com/aerocristobal/label-verify/internal/registry"
	"github.com/aerocristobal/label-verify/internal/verify"
	"github.com/aerocristobal/label-verify/internal/vision"
	"github.com/aerocristobal/label-verify/internal/worker"
)

func main() {
	logger := logging.NewFromEnv("label-verify-worker")
	rootCtx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(rootCtx, "load configuration", err)
	}

	db, err := database.Open(rootCtx, cfg.DatabaseURL, 20, 5, 5*time.Minute)
	if err != nil {
		logger.Fatal(rootCtx, "open database", err)
	}
	defer db.Close()

	if err := migrations.Apply(rootCtx, db); err != nil {
		logger.Fatal(rootCtx, "apply database migrations", err)
	}

	q, err := queue.NewFromURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal(rootCtx, "connect to redis", err)
	}

	enc, err := cipher.New(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal(rootCtx, "construct cipher", err)
	}

	blob := blobstore.New(blobstore.Config{
		Bucket:    cfg.R2Bucket,
		Endpoint:  cfg.R2Endpoint,
		AccessKey: cfg.R2AccessKey,
		SecretKey: cfg.R2SecretKey,
	})

	jobs := jobstore.New(db)
	visionClient := vision.New(cfg.VisionModelEndpoint, cfg.VisionModelAPIKey)
	cache := refcache.New(db)
	regClient := registry.New(cfg.TTBRegistryBaseURL)
	regClient.Logger = logger
	m := metrics.New("label-verify-worker")

	w := &worker.Worker{
		Blob:   blob,
		Cipher: enc,
		Jobs:   jobs,
		Queue:  q,
		Vision: visionClient,
		References: verify.ReferenceSources{
			Cache:    cache,
			Registry: regClient,
		},
		Logger:       logger,
		Metrics:      m,
		PollInterval: cfg.PollInterval,
	}

	if metrics.Enabled() {
		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(rootCtx, "metrics server stopped", err, nil)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "worker loop starting", map[string]interface{}{"poll_interval": cfg.PollInterval.String()})
	w.Run(ctx)
	logger.Info(ctx, "worker loop stopped", nil)
}
