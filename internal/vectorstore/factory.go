package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kubesage/kubesage/db"
	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/log"
)

// New creates the vector store backend selected by cfg.VectorStore.
//
// For the pgvector backend a connection pool is created and owned by the
// returned store's lifetime; callers shut it down via the returned close
// function. The close function is non-nil for every backend.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (Store, func(), error) {
	if cfg == nil {
		return nil, nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	switch cfg.VectorStore {
	case config.StorePinecone:
		store, err := NewPinecone(cfg.Pinecone.IndexHost, cfg.Pinecone.APIKey, cfg.Namespace,
			cfg.EmbeddingDimensions, logger.With("component", "pinecone"))
		if err != nil {
			return nil, nil, fmt.Errorf("creating pinecone store: %w", err)
		}
		return store, func() {}, nil

	case config.StoreChroma:
		store, err := NewChroma(cfg.Chroma.BaseURL, cfg.Chroma.Collection, cfg.Namespace,
			cfg.EmbeddingDimensions, logger.With("component", "chroma"))
		if err != nil {
			return nil, nil, fmt.Errorf("creating chroma store: %w", err)
		}
		return store, func() {}, nil

	case config.StorePgvector:
		if err := db.Migrate(cfg.PostgresURL()); err != nil {
			return nil, nil, fmt.Errorf("migrating database: %w", err)
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresURL())
		if err != nil {
			return nil, nil, fmt.Errorf("creating postgres pool: %w", err)
		}
		store, err := NewPgvector(pool, cfg.Namespace, cfg.EmbeddingDimensions,
			logger.With("component", "pgvector"))
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("creating pgvector store: %w", err)
		}
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, cfg.VectorStore)
	}
}
