package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/casevault/discovery-backend/internal/domain"
)

// The test harness migrates the same model set against SQLite, so the DDL
// gorm derives from the tags has to be valid on both backends.
func TestAutoMigrateOnSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	for _, table := range []string{
		"matter", "legal_case", "document_core", "document_metadata",
		"document_case_junction", "document_relationship",
		"chunk_metadata", "deduplication_record",
	} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %s: want=present got=missing", table)
		}
	}
}

func TestCreateAutofillsTimestamps(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	m := &types.Matter{
		ID:           uuid.New(),
		MatterNumber: "2026-0001",
		ClientName:   "Acme Corp",
		MatterType:   types.MatterTypeLitigation,
		AccessLevel:  types.AccessLevelStandard,
		OpenedDate:   time.Now().UTC(),
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("create matter: %v", err)
	}
	if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
		t.Fatalf("timestamps: want=autofilled got=created_at %v updated_at %v",
			m.CreatedAt, m.UpdatedAt)
	}
}
