package matters

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CaseStatus string

const (
	CaseStatusActive    CaseStatus = "active"
	CaseStatusClosed    CaseStatus = "closed"
	CaseStatusSuspended CaseStatus = "suspended"
	CaseStatusSettled   CaseStatus = "settled"
	CaseStatusDismissed CaseStatus = "dismissed"
	CaseStatusAppealed  CaseStatus = "appealed"
)

// Case is one legal proceeding within a Matter and the primary isolation
// boundary: every junction and chunk query is scoped to a case id.
// CaseName is a display/lookup alias (unique per firm); CaseID is canonical.
type Case struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MatterID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"matter_id"`
	Matter             *Matter        `gorm:"constraint:OnDelete:CASCADE;foreignKey:MatterID;references:ID" json:"matter,omitempty"`
	CaseNumber         string         `gorm:"column:case_number;not null" json:"case_number"`
	CaseName           string         `gorm:"column:case_name;not null;uniqueIndex" json:"case_name"`
	Status             CaseStatus     `gorm:"column:status;type:text;not null;default:'active';index" json:"status"`
	Plaintiffs         datatypes.JSON `gorm:"column:plaintiffs;type:jsonb" json:"plaintiffs"`
	Defendants         datatypes.JSON `gorm:"column:defendants;type:jsonb" json:"defendants"`
	ThirdParties       datatypes.JSON `gorm:"column:third_parties;type:jsonb" json:"third_parties"`
	CourtName          string         `gorm:"column:court_name" json:"court_name,omitempty"`
	CourtDistrict      string         `gorm:"column:court_district" json:"court_district,omitempty"`
	JudgeName          string         `gorm:"column:judge_name" json:"judge_name,omitempty"`
	CaseSpecificAccess AccessLevel    `gorm:"column:case_specific_access;type:text;not null;default:'standard'" json:"case_specific_access"`
	// EffectiveAccessLevel = MostRestrictive(matter.AccessLevel, CaseSpecificAccess),
	// recomputed by the hierarchy service whenever either side changes.
	EffectiveAccessLevel AccessLevel    `gorm:"column:effective_access_level;type:text;not null;default:'standard'" json:"effective_access_level"`
	CreatedAt            time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Case) TableName() string { return "legal_case" }
