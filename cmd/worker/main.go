package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"phitsreport/internal/activities"
	"phitsreport/internal/config"
	"phitsreport/internal/logging"
	"phitsreport/internal/metrics"
	"phitsreport/internal/storage"
	"phitsreport/internal/workflows"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log := logging.New("phitsreport-worker", logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: os.Stderr})

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal().Err(err).Str("temporal", cfg.TemporalAddress).Msg("dial temporal")
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	a, err := activities.New(cfg, db, log, m)
	if err != nil {
		log.Fatal().Err(err).Msg("build activities")
	}
	activities.Register(w, a)

	if cfg.WorkerMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			if err := srv.ListenAndServe(); err != nil {
				log.Error().Err(err).Str("addr", cfg.WorkerMetricsAddr).Msg("metrics listener stopped")
			}
		}()
	}

	log.Info().
		Str("temporal", cfg.TemporalAddress).
		Str("queue", cfg.TemporalTaskQueue).
		Str("phits_command", cfg.PhitsCommand).
		Msg("worker listening")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}
