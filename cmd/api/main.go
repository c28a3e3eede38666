package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"phitsreport/internal/api"
	"phitsreport/internal/config"
	"phitsreport/internal/logging"
	"phitsreport/internal/metrics"
	"phitsreport/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	tclient "go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log := logging.New("phitsreport-api", logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: os.Stderr})

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
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal().Err(err).Str("temporal", cfg.TemporalAddress).Msg("dial temporal")
	}
	defer tc.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	h := api.NewServer(cfg, api.Deps{
		Reports:  storage.NewReportRepo(db),
		Steps:    storage.NewStepRepo(db),
		Temporal: tc,
		Gatherer: reg,
		Metrics:  metrics.New(reg),
		Log:      log,
	})

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", cfg.APIAddr).Str("queue", cfg.TemporalTaskQueue).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("api stopped")
	}
}
