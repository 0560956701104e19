package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"echograph/internal/activities"
	"echograph/internal/backend"
	"echograph/internal/config"
	"echograph/internal/logging"
	"echograph/internal/providers"
	"echograph/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.LoadFile(os.Getenv("ECHOGRAPH_CONFIG"))
	if err != nil {
		bootLog := logging.New("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.LogLevel)

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Logger: logging.NewTemporalLogger(log)})
	if err != nil {
		log.Fatal().Err(err).Msg("dial temporal")
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	b, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open backend")
	}
	defer b.Close()

	pm, err := providers.NewManager(cfg.EmbedProviders, cfg.EmbedDim)
	if err != nil {
		log.Fatal().Err(err).Msg("build embed providers")
	}
	a, err := activities.New(cfg, activities.Deps{Store: b.Store, Catalog: b.Catalog, Runs: b.Runs, Index: b.Index, Providers: pm}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build activities")
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, a)

	log.Info().
		Str("temporal", cfg.TemporalAddress).
		Str("queue", cfg.TemporalTaskQueue).
		Str("embed_providers", cfg.EmbedProviders).
		Int("embed_provider_count", pm.EmbedCount()).
		Str("vector_index", cfg.VectorIndex).
		Msg("echograph worker listening")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
}
