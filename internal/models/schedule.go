package models

import (
	"time"

	"gorm.io/gorm"
)

// Email notification outcomes (all three are non-fatal to scheduling)
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
	NotificationQueued = "queued" // queued for manual follow-up
)

// InterviewSchedule is the derived artifact of a successful finalizer run.
// At most one per (candidate, call SID); writes are idempotent under retry.
type InterviewSchedule struct {
	gorm.Model

	CandidateID string `json:"candidate_id" gorm:"index;uniqueIndex:idx_schedule_candidate_call"`
	CallSid     string `json:"call_sid" gorm:"uniqueIndex:idx_schedule_candidate_call"`

	Slot        string    `json:"slot"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status" gorm:"default:scheduled"`

	// Notification metadata, recorded by step 2 of the finalizer but never
	// allowed to reverse the schedule itself.
	EmailStatus  string     `json:"email_status" gorm:"default:queued"`
	EmailSentAt  *time.Time `json:"email_sent_at"`
	EmailError   string     `json:"email_error"`
	EmailAddress string     `json:"email_address"`
}
