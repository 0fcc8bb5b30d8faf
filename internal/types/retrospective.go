package types

import (
	"time"

	"github.com/google/uuid"
)

// Retrospective is the aggregate root: it owns its notes and suggestions, and
// carries the accepted/rejected counters that mirror its suggestions' statuses.
// The counters are maintained incrementally by SuggestionService, never
// recomputed per request.
type Retrospective struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID     `gorm:"index;not null;column:user_id" json:"user_id"`
	User          *User         `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Name          string        `gorm:"not null;column:name" json:"name"`
	Date          time.Time     `gorm:"not null;column:date" json:"date"`
	AcceptedCount int           `gorm:"not null;default:0;column:accepted_count" json:"accepted_count"`
	RejectedCount int           `gorm:"not null;default:0;column:rejected_count" json:"rejected_count"`
	Notes         []*Note       `gorm:"constraint:OnDelete:CASCADE;foreignKey:RetrospectiveID;references:ID" json:"notes,omitempty"`
	Suggestions   []*Suggestion `gorm:"constraint:OnDelete:CASCADE;foreignKey:RetrospectiveID;references:ID" json:"suggestions,omitempty"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updated_at"`
}

func (Retrospective) TableName() string {
	return "retrospective"
}
