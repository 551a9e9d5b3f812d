package models

import (
	"time"

	"github.com/google/uuid"
)

// Stage is one of the six fixed pipeline states a tender occupies.
type Stage string

const (
	StageNew      Stage = "new"
	StageScored   Stage = "scored"
	StageApproved Stage = "approved"
	StagePushed   Stage = "pushed"
	StageWon      Stage = "won"
	StageLost     Stage = "lost"
)

// StageOrder lists stages in pipeline order.
var StageOrder = []Stage{StageNew, StageScored, StageApproved, StagePushed, StageWon, StageLost}

// ValidStage reports whether s names one of the six pipeline stages.
func ValidStage(s Stage) bool {
	for _, st := range StageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a terminal stage. The move mechanism does
// not hard-block moves out of terminal stages; the remote authority decides.
func (s Stage) Terminal() bool {
	return s == StageWon || s == StageLost
}

// Tender is one tracked tender opportunity.
type Tender struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	UserID         uuid.UUID  `db:"user_id"         json:"user_id"`
	Title          string     `db:"title"           json:"title"`
	Entity         *string    `db:"entity"          json:"entity,omitempty"`
	TenderNumber   *string    `db:"tender_number"   json:"tender_number,omitempty"`
	Deadline       *string    `db:"deadline"        json:"deadline,omitempty"`
	EstimatedValue *float64   `db:"estimated_value" json:"estimated_value,omitempty"`
	Description    *string    `db:"description"     json:"description,omitempty"`
	SourceText     string     `db:"source_text"     json:"-"`
	Stage          Stage      `db:"stage"           json:"stage"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}
