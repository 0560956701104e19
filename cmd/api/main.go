package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"

	"echograph/internal/api"
	"echograph/internal/backend"
	"echograph/internal/config"
	"echograph/internal/embedding"
	"echograph/internal/ingest"
	"echograph/internal/logging"
	"echograph/internal/providers"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.LoadFile(os.Getenv("ECHOGRAPH_CONFIG"))
	if err != nil {
		bootLog := logging.New("info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	b, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open backend")
	}
	defer b.Close()

	embedder, err := embedding.NewService(embedding.ManagerFactory(cfg.EmbedProviders, cfg.EmbedDim), embedding.Options{
		Workers:           cfg.EmbedWorkers,
		CacheSize:         cfg.EmbedCacheSize,
		Dimension:         cfg.EmbedDim,
		RequestsPerSecond: cfg.EmbedRPS,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build embedding service")
	}
	embedCount := len(providers.ParseProviderList(cfg.EmbedProviders))

	deps := api.Deps{
		Catalog:        b.Catalog,
		Runs:           b.Runs,
		Ingestor:       ingest.New(b.Store, embedder, ingest.Options{PreserveParagraphs: cfg.PreserveParagraphs}, log),
		EmbedProviders: max(embedCount, 1),
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Logger: logging.NewTemporalLogger(log)})
	if err != nil {
		log.Warn().Err(err).Str("temporal", cfg.TemporalAddress).Msg("temporal unavailable, batch matching disabled")
	} else {
		defer tc.Close()
		deps.Temporal = tc
	}

	h := api.NewServer(cfg, deps, log)
	log.Info().Str("addr", cfg.APIAddr).Str("store", cfg.Store).Str("embed_providers", cfg.EmbedProviders).Msg("echograph api listening")
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal().Err(err).Msg("api stopped")
	}
}
