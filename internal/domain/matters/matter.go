package matters

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MatterType string

const (
	MatterTypeLitigation            MatterType = "litigation"
	MatterTypeTransactional         MatterType = "transactional"
	MatterTypeRegulatory            MatterType = "regulatory"
	MatterTypeInternalInvestigation MatterType = "internal_investigation"
	MatterTypeOther                 MatterType = "other"
)

// AccessLevel values are ordered from least to most restrictive; the
// effective level of a case is the most restrictive of matter and case.
type AccessLevel string

const (
	AccessLevelPublic             AccessLevel = "public"
	AccessLevelStandard           AccessLevel = "standard"
	AccessLevelConfidential       AccessLevel = "confidential"
	AccessLevelHighlyConfidential AccessLevel = "highly_confidential"
)

var accessLevelRank = map[AccessLevel]int{
	AccessLevelPublic:             0,
	AccessLevelStandard:           1,
	AccessLevelConfidential:       2,
	AccessLevelHighlyConfidential: 3,
}

// MostRestrictive returns the stricter of two access levels. Unknown levels
// are treated as highly confidential so a typo can never widen access.
func MostRestrictive(a, b AccessLevel) AccessLevel {
	ra, ok := accessLevelRank[a]
	if !ok {
		return AccessLevelHighlyConfidential
	}
	rb, ok := accessLevelRank[b]
	if !ok {
		return AccessLevelHighlyConfidential
	}
	if ra >= rb {
		return a
	}
	return b
}

// Matter is the top-level client engagement. Closed matters are immutable
// except for access-control updates.
type Matter struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	MatterNumber    string         `gorm:"column:matter_number;not null;uniqueIndex" json:"matter_number"`
	ClientName      string         `gorm:"column:client_name;not null" json:"client_name"`
	MatterType      MatterType     `gorm:"column:matter_type;type:text;not null" json:"matter_type"`
	AccessLevel     AccessLevel    `gorm:"column:access_level;type:text;not null;default:'standard'" json:"access_level"`
	OpenedDate      time.Time      `gorm:"column:opened_date;not null" json:"opened_date"`
	ClosedDate      *time.Time     `gorm:"column:closed_date" json:"closed_date,omitempty"`
	AuthorizedUsers datatypes.JSON `gorm:"column:authorized_users;type:jsonb" json:"authorized_users"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Matter) TableName() string { return "matter" }

func (m *Matter) Closed() bool { return m != nil && m.ClosedDate != nil }
