package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/casevault/discovery-backend/internal/domain"
)

func SeedMatter(tb testing.TB, ctx context.Context, tx *gorm.DB, matterNumber string) *types.Matter {
	tb.Helper()
	m := &types.Matter{
		ID:              uuid.New(),
		MatterNumber:    matterNumber,
		ClientName:      "Acme Corp",
		MatterType:      types.MatterTypeLitigation,
		AccessLevel:     types.AccessLevelStandard,
		OpenedDate:      time.Now().UTC(),
		AuthorizedUsers: datatypes.JSON([]byte(`[]`)),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed matter: %v", err)
	}
	return m
}

func SeedCase(tb testing.TB, ctx context.Context, tx *gorm.DB, matterID uuid.UUID, caseName string) *types.Case {
	tb.Helper()
	c := &types.Case{
		ID:                   uuid.New(),
		MatterID:             matterID,
		CaseNumber:           "2:26-cv-00100",
		CaseName:             caseName,
		Status:               types.CaseStatusActive,
		Plaintiffs:           datatypes.JSON([]byte(`["Acme Corp"]`)),
		Defendants:           datatypes.JSON([]byte(`["Initech LLC"]`)),
		ThirdParties:         datatypes.JSON([]byte(`[]`)),
		CaseSpecificAccess:   types.AccessLevelStandard,
		EffectiveAccessLevel: types.AccessLevelStandard,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed case: %v", err)
	}
	return c
}

func SeedDocumentCore(tb testing.TB, ctx context.Context, tx *gorm.DB, fileName string, content []byte) *types.DocumentCore {
	tb.Helper()
	sum := sha256.Sum256(content)
	d := &types.DocumentCore{
		ID:              uuid.New(),
		DocumentHash:    hex.EncodeToString(sum[:]),
		MetadataHash:    hex.EncodeToString(sum[:8]),
		FileName:        fileName,
		FileSize:        int64(len(content)),
		Status:          types.DocumentStatusComplete,
		FirstIngestedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document core: %v", err)
	}
	return d
}

func SeedJunction(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID, caseID uuid.UUID) *types.DocumentCaseJunction {
	tb.Helper()
	j := &types.DocumentCaseJunction{
		ID:                         uuid.New(),
		DocumentID:                 documentID,
		CaseID:                     caseID,
		ConfidentialityDesignation: types.DesignationNone,
		ResponsiveToRequests:       datatypes.JSON([]byte(`[]`)),
		UsedInMotions:              datatypes.JSON([]byte(`[]`)),
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed junction: %v", err)
	}
	return j
}
