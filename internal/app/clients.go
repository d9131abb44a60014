package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/casevault/discovery-backend/internal/platform/gcp"
	"github.com/casevault/discovery-backend/internal/platform/logger"
	"github.com/casevault/discovery-backend/internal/platform/neo4jdb"
	"github.com/casevault/discovery-backend/internal/platform/openai"
	"github.com/casevault/discovery-backend/internal/platform/qdrant"
	"github.com/casevault/discovery-backend/internal/platform/redisbus"
)

// Clients are the external collaborators. Each is optional: an unset env
// section leaves its client nil and the pipeline degrades around it.
type Clients struct {
	Embedder openai.Embedder
	Vectors  qdrant.VectorStore
	Events   redisbus.EventSink
	Graph    *neo4jdb.Client
	Archive  gcp.ArchiveService
}

func wireClients(log *logger.Logger) (Clients, error) {
	var c Clients

	if strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) != "" {
		embedder, err := openai.NewEmbedder(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init embedder: %w", err)
		}
		c.Embedder = embedder
	} else {
		log.Warn("OPENAI_API_KEY unset; chunks will stay embedding-pending")
	}

	if strings.TrimSpace(os.Getenv("QDRANT_URL")) != "" {
		cfg, err := qdrant.ResolveConfigFromEnv()
		if err != nil {
			return Clients{}, fmt.Errorf("resolve qdrant config: %w", err)
		}
		store, err := qdrant.NewVectorStore(cfg, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init qdrant: %w", err)
		}
		c.Vectors = store
	} else {
		log.Warn("QDRANT_URL unset; vector backend disabled")
	}

	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		sink, err := redisbus.NewEventSink(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init event sink: %w", err)
		}
		c.Events = sink
	} else {
		c.Events = redisbus.NopSink{}
	}

	graphClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	c.Graph = graphClient

	if strings.TrimSpace(os.Getenv("PRODUCTION_GCS_BUCKET_NAME")) != "" {
		archive, err := gcp.NewArchiveService(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init archive: %w", err)
		}
		c.Archive = archive
	}

	return c, nil
}
