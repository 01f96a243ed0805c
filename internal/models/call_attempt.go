package models

import (
	"time"

	"gorm.io/gorm"
)

// Call attempt outcomes
const (
	AttemptOutcomeInitiated          = "initiated"
	AttemptOutcomeInterviewScheduled = "interview_scheduled"
	AttemptOutcomeNoAnswer           = "no_answer"
	AttemptOutcomeFailed             = "failed"

	// Recorded on the candidate's call history, not the ledger
	OutcomeFollowUpEmailed = "follow_up_emailed"
)

// CallAttempt is one append-only ledger entry per actual outbound call placement.
// The candidate's total_attempts must always equal the count of these records.
type CallAttempt struct {
	gorm.Model

	CallSid      string    `json:"call_sid" gorm:"uniqueIndex"`
	CandidateID  string    `json:"candidate_id" gorm:"index"`
	Phone        string    `json:"phone"`
	InitiatedAt  time.Time `json:"initiated_at"`
	TwilioStatus string    `json:"twilio_status"`
	Outcome      string    `json:"outcome"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}
