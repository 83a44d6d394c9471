package intake

import (
	"time"

	"github.com/google/uuid"

	"therapy-intake/internal/assessment"
	"therapy-intake/internal/instrument"
	"therapy-intake/internal/scoring"
)

// Submission is a finalized assessment result as stored for the practice.
type Submission struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	Result    assessment.Result `json:"result" db:"payload"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// ContactRequest asks the practice to follow up on a submission.
type ContactRequest struct {
	ID               uuid.UUID `json:"id" db:"id"`
	SubmissionID     uuid.UUID `json:"submission_id" db:"submission_id"`
	Name             string    `json:"name" db:"name"`
	Email            string    `json:"email" db:"email"`
	Phone            string    `json:"phone" db:"phone"`
	PreferredContact string    `json:"preferred_contact" db:"preferred_contact"`
	Message          string    `json:"message" db:"message"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// SessionView is what the UI sees of an in-progress session.
type SessionView struct {
	ID               uuid.UUID                            `json:"id"`
	InstrumentID     string                               `json:"instrument_id"`
	Status           assessment.Status                    `json:"status"`
	CurrentIndex     int                                  `json:"current_index"`
	QuestionCount    int                                  `json:"question_count"`
	Answers          map[int]int                          `json:"answers"`
	Ancillary        map[string]instrument.AncillaryValue `json:"ancillary"`
	MissingAncillary []string                             `json:"missing_ancillary"`
	Score            scoring.Result                       `json:"score"`
}

// InstrumentSummary is the catalog listing entry.
type InstrumentSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	QuestionCount int    `json:"question_count"`
	MaxScore      int    `json:"max_score"`
}
