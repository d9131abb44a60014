package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/casevault/discovery-backend/internal/data/repos"
	"github.com/casevault/discovery-backend/internal/dedup"
	"github.com/casevault/discovery-backend/internal/hierarchy"
	"github.com/casevault/discovery-backend/internal/indexing"
	"github.com/casevault/discovery-backend/internal/ingest"
	"github.com/casevault/discovery-backend/internal/isolation"
	"github.com/casevault/discovery-backend/internal/platform/logger"
	"github.com/casevault/discovery-backend/internal/platform/postgres"
)

type App struct {
	Log     *logger.Logger
	DB      *gorm.DB
	Cfg     Config
	Repos   repos.Set
	Clients Clients

	Dedup     dedup.Index
	Guard     *isolation.Guard
	Validator *isolation.Validator
	Store     hierarchy.Store
	Advisor   *indexing.Advisor
	Applier   *indexing.Applier
}

// New builds the full ingestion stack. The pipeline is constructed per batch
// via NewPipeline so extraction stays a caller concern.
func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	pg, err := postgres.NewService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	db := pg.DB()

	reposet := repos.NewSet(db, log)
	dedupIdx := dedup.NewIndex(db, log, reposet.DedupRecords)
	guard := isolation.NewGuard(log)
	validator := isolation.NewValidator(log, guard, reposet).
		WithGracePeriod(cfg.IsolationGracePeriod)

	advisor := indexing.NewAdvisor(log, cfg.Advisor)
	applier := indexing.NewApplier(db, log)

	store := instrumentStore(
		hierarchy.NewStore(db, log, guard, dedupIdx, reposet),
		advisor,
	)

	clients, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	return &App{
		Log:       log,
		DB:        db,
		Cfg:       cfg,
		Repos:     reposet,
		Clients:   clients,
		Dedup:     dedupIdx,
		Guard:     guard,
		Validator: validator,
		Store:     store,
		Advisor:   advisor,
		Applier:   applier,
	}, nil
}

// NewPipeline wires an ingest pipeline around the app's stack and the given
// extractor.
func (a *App) NewPipeline(extractor ingest.Extractor) (*ingest.Pipeline, error) {
	return ingest.New(ingest.Deps{
		Log:              a.Log,
		DB:               a.DB,
		Store:            a.Store,
		Extractor:        extractor,
		Embedder:         a.Clients.Embedder,
		Vectors:          a.Clients.Vectors,
		Graph:            a.Clients.Graph,
		Events:           a.Clients.Events,
		Chunks:           a.Repos.Chunks,
		Metadata:         a.Repos.Metadata,
		Relationships:    a.Repos.Relationships,
		ChunkConfig:      a.Cfg.Chunking,
		EmbedConcurrency: a.Cfg.EmbedConcurrency,
		EmbedBatchSize:   a.Cfg.EmbedBatchSize,
	})
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Clients.Events != nil {
		_ = a.Clients.Events.Close()
	}
	if a.Clients.Graph != nil {
		_ = a.Clients.Graph.Close(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
