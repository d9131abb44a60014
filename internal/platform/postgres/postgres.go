package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/casevault/discovery-backend/internal/domain"
	"github.com/casevault/discovery-backend/internal/platform/envutil"
	"github.com/casevault/discovery-backend/internal/platform/logger"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewService(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.Str("POSTGRES_HOST", "localhost")
	port := envutil.Str("POSTGRES_PORT", "5432")
	user := envutil.Str("POSTGRES_USER", "postgres")
	password := envutil.Str("POSTGRES_PASSWORD", "")
	name := envutil.Str("POSTGRES_NAME", "discovery")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	serviceLog.Info("Connecting to Postgres...", "host", host, "db", name)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		// TranslateError maps driver unique-violation errors onto
		// gorm.ErrDuplicatedKey; the dedup index depends on it.
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &Service{db: db, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

// AutoMigrateAll creates/updates every persisted table. Field-level secondary
// indexes come from the gorm tags; composite indexes recommended by the
// indexing advisor are applied separately through its Apply step.
func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	return AutoMigrate(s.db)
}

// AutoMigrate is shared with the test harness, which runs against SQLite.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Matter{},
		&types.Case{},
		&types.DocumentCore{},
		&types.DocumentMetadata{},
		&types.DocumentCaseJunction{},
		&types.DocumentRelationship{},
		&types.ChunkMetadata{},
		&types.DeduplicationRecord{},
	)
}
