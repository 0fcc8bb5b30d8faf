package types

import (
	"time"

	"github.com/google/uuid"
)

type SuggestionStatus string

const (
	SuggestionStatusPending  SuggestionStatus = "Pending"
	SuggestionStatusAccepted SuggestionStatus = "Accepted"
	SuggestionStatusRejected SuggestionStatus = "Rejected"
)

func (s SuggestionStatus) Valid() bool {
	switch s {
	case SuggestionStatusPending, SuggestionStatusAccepted, SuggestionStatusRejected:
		return true
	}
	return false
}

// Suggestion is created in batches by the generation workflow (always Pending)
// and mutated only through SuggestionService.UpdateStatus.
type Suggestion struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RetrospectiveID uuid.UUID        `gorm:"index;not null;column:retrospective_id" json:"retrospective_id"`
	SuggestionText  string           `gorm:"not null;column:suggestion_text" json:"suggestion_text"`
	Status          SuggestionStatus `gorm:"not null;default:Pending;column:status" json:"status"`
	CreatedAt       time.Time        `gorm:"not null" json:"created_at"`
}

func (Suggestion) TableName() string {
	return "suggestion"
}
