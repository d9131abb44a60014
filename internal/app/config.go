package app

import (
	"time"

	"github.com/casevault/discovery-backend/internal/chunking"
	"github.com/casevault/discovery-backend/internal/indexing"
	"github.com/casevault/discovery-backend/internal/platform/envutil"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type Config struct {
	Chunking chunking.Config
	Advisor  indexing.AdvisorConfig

	EmbedConcurrency int
	EmbedBatchSize   int

	// IsolationGracePeriod is the window inside which cross-table
	// inconsistencies are reported as informational rather than violations.
	IsolationGracePeriod time.Duration
}

func LoadConfig(log *logger.Logger) (Config, error) {
	chunkCfg, err := chunking.LoadConfig()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Chunking: chunkCfg,
		Advisor: indexing.AdvisorConfig{
			FrequencyThreshold:    envutil.Int("ADVISOR_FREQUENCY_THRESHOLD", 10),
			SlowQueryThreshold:    time.Duration(envutil.Int("ADVISOR_SLOW_QUERY_MS", 500)) * time.Millisecond,
			HighPriorityFrequency: envutil.Int("ADVISOR_HIGH_PRIORITY_FREQUENCY", 20),
			HighPriorityAvg:       time.Duration(envutil.Int("ADVISOR_HIGH_PRIORITY_AVG_MS", 2000)) * time.Millisecond,
		},
		EmbedConcurrency:     envutil.Int("EMBED_CONCURRENCY", 8),
		EmbedBatchSize:       envutil.Int("EMBED_BATCH_SIZE", 16),
		IsolationGracePeriod: time.Duration(envutil.Int("ISOLATION_GRACE_PERIOD_SECONDS", 30)) * time.Second,
	}

	log.Info("config loaded",
		"chunk_target", cfg.Chunking.TargetSize,
		"chunk_overlap", cfg.Chunking.Overlap,
		"embed_concurrency", cfg.EmbedConcurrency,
	)
	return cfg, nil
}
