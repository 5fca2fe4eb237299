package casestore

import (
	"time"

	"go-candor/internal/investigation"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CaseRecord is the persisted CaseState. Version is bumped on every save and
// guards against lost updates.
type CaseRecord struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Phase          int        `gorm:"not null;default:1" json:"phase"`
	SuspicionLevel string     `gorm:"type:varchar(16);not null;default:'unknown'" json:"suspicion_level"`
	Progress       int        `gorm:"not null;default:0" json:"progress"`
	Version        int64      `gorm:"not null;default:0" json:"-"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (CaseRecord) TableName() string { return "cases" }

func (r CaseRecord) State() investigation.CaseState {
	return investigation.CaseState{
		Phase:          investigation.Phase(r.Phase),
		SuspicionLevel: investigation.SuspicionLevel(r.SuspicionLevel),
		Progress:       r.Progress,
	}
}

type EvidenceRecord struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)"`
	UserID       uint           `gorm:"index;not null"`
	Type         string         `gorm:"type:varchar(16);not null"`
	Significance string         `gorm:"type:varchar(16);not null"`
	Description  string         `gorm:"type:text"`
	DateObserved time.Time
	Module       string `gorm:"type:varchar(1)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (EvidenceRecord) TableName() string { return "evidence" }

func (r EvidenceRecord) Item() investigation.EvidenceItem {
	return investigation.EvidenceItem{
		ID:           r.ID,
		Type:         investigation.EvidenceType(r.Type),
		Significance: investigation.Significance(r.Significance),
		Description:  r.Description,
		DateObserved: r.DateObserved,
		Module:       investigation.Module(r.Module),
		CreatedAt:    r.CreatedAt,
	}
}

func recordFromItem(userID uint, e investigation.EvidenceItem) EvidenceRecord {
	return EvidenceRecord{
		ID:           e.ID,
		UserID:       userID,
		Type:         string(e.Type),
		Significance: string(e.Significance),
		Description:  e.Description,
		DateObserved: e.DateObserved,
		Module:       string(e.Module),
		CreatedAt:    e.CreatedAt,
	}
}

// Signal event kinds.
const (
	SignalCrisis     = "crisis"
	SignalSuggestion = "suggestion"
)

// SignalEvent records what the scanner found in a user message.
type SignalEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	ChatID    uint           `gorm:"index" json:"chat_id"`
	Kind      string         `gorm:"type:varchar(16);not null" json:"kind"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Models lists the tables owned by this package for AutoMigrate.
func Models() []interface{} {
	return []interface{}{&CaseRecord{}, &EvidenceRecord{}, &SignalEvent{}}
}
