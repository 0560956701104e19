// Package backend opens the store and vector index selected by configuration.
package backend

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"echograph/internal/config"
	"echograph/internal/storage"
	"echograph/internal/storage/sqlite"
	"echograph/internal/util"
	"echograph/internal/vector"
)

type Backend struct {
	Store   storage.Store
	Catalog storage.Catalog
	Runs    storage.BatchRuns
	Index   vector.Index

	migrate func(ctx context.Context) error
	closers []func()
}

// Open connects the configured store and vector index. The pgvector index
// needs the Postgres store; with SQLite it falls back to the in-memory index.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Backend, error) {
	b := &Backend{}
	var pgDB *storage.DB
	switch cfg.Store {
	case config.StorePostgres:
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		pgDB = db
		store := storage.NewPGStore(db)
		b.Store, b.Catalog, b.Runs = store, store, storage.NewBatchRunRepo(db)
		b.migrate = db.Migrate
		b.closers = append(b.closers, db.Close)
	case config.StoreSQLite:
		if cfg.SQLitePath != ":memory:" {
			if err := util.EnsureDir(filepath.Dir(cfg.SQLitePath)); err != nil {
				return nil, err
			}
		}
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.Store, b.Catalog, b.Runs = store, store, store
		b.migrate = store.Migrate
		b.closers = append(b.closers, func() { _ = store.Close() })
	default:
		return nil, fmt.Errorf("store %q: %w", cfg.Store, util.ErrUnsupportedBackend)
	}

	switch cfg.VectorIndex {
	case config.IndexPGVector:
		if pgDB == nil {
			log.Warn().Str("store", cfg.Store).Msg("pgvector index needs postgres, using in-memory index")
			b.Index = vector.NewMemoryIndex()
			break
		}
		b.Index = vector.NewPGIndex(pgDB.Pool)
	case config.IndexQdrant:
		client, err := vector.NewQdrantClient(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantAPIKey)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		idx := vector.NewQdrantIndex(client, cfg.QdrantCollection, cfg.EmbedDim)
		if err := idx.EnsureCollection(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.Index = idx
	case config.IndexMemory:
		b.Index = vector.NewMemoryIndex()
	default:
		b.Close()
		return nil, fmt.Errorf("vector index %q: %w", cfg.VectorIndex, util.ErrUnsupportedBackend)
	}
	log.Info().Str("store", cfg.Store).Str("vector_index", cfg.VectorIndex).Msg("backend ready")
	return b, nil
}

// Migrate creates the schema when it does not exist yet.
func (b *Backend) Migrate(ctx context.Context) error {
	return b.migrate(ctx)
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
