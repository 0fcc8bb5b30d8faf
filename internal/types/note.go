package types

import (
	"time"

	"github.com/google/uuid"
)

type NoteCategory string

const (
	NoteCategoryImprovementArea NoteCategory = "ImprovementArea"
	NoteCategoryObservation     NoteCategory = "Observation"
	NoteCategorySuccess         NoteCategory = "Success"
)

func (c NoteCategory) Valid() bool {
	switch c {
	case NoteCategoryImprovementArea, NoteCategoryObservation, NoteCategorySuccess:
		return true
	}
	return false
}

// Note is immutable once created; it belongs to exactly one retrospective and
// goes away with it.
type Note struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	RetrospectiveID uuid.UUID    `gorm:"index;not null;column:retrospective_id" json:"retrospective_id"`
	Category        NoteCategory `gorm:"not null;column:category" json:"category"`
	Content         string       `gorm:"not null;column:content" json:"content"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
}

func (Note) TableName() string {
	return "note"
}
