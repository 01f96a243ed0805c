package services

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

// SchedulingFinalizer commits a confirmed interview slot exactly once per
// call and requests the confirmation notification. Each step is
// independently fault-tolerant: a failed email never rolls back a committed
// schedule.
type SchedulingFinalizer struct {
	store    storage.Store
	notifier Notifier
}

// FinalizeOutcome summarizes one finalizer run
type FinalizeOutcome struct {
	CandidateID string    `json:"candidate_id"`
	CallSid     string    `json:"call_sid"`
	Slot        string    `json:"slot"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Applied     bool      `json:"applied"` // false when an identical retry was absorbed
	EmailStatus string    `json:"email_status"`
}

// NewSchedulingFinalizer creates a new scheduling finalizer
func NewSchedulingFinalizer(store storage.Store, notifier Notifier) *SchedulingFinalizer {
	return &SchedulingFinalizer{store: store, notifier: notifier}
}

// Finalize persists the schedule, flips the candidate status, requests the
// confirmation email and writes the audit log. Re-invoking with the same
// (candidate, call SID, slot) is a no-op on the stored data.
func (f *SchedulingFinalizer) Finalize(candidateID, callSid, phone, slot string) FinalizeOutcome {
	now := time.Now()

	candidate, err := f.store.GetCandidate(candidateID)
	if err != nil {
		// Degraded-but-safe path: record the schedule under a synthetic key
		// rather than silently dropping the candidate's confirmation.
		candidateID = f.syntheticKey(phone)
		candidate = nil
		log.Printf("Candidate unresolved for call %s - recording schedule under %s", callSid, candidateID)
	}

	outcome := FinalizeOutcome{
		CandidateID: candidateID,
		CallSid:     callSid,
		Slot:        slot,
		ScheduledAt: now,
		EmailStatus: models.NotificationQueued,
	}

	// Step 1: durable schedule + candidate status, idempotent under retry
	schedule, scheduleErr := f.store.GetSchedule(candidateID, callSid)
	alreadyScheduled := scheduleErr == nil && schedule.Slot == slot
	if scheduleErr != nil {
		schedule, scheduleErr = f.store.CreateSchedule(&models.InterviewSchedule{
			CandidateID: candidateID,
			CallSid:     callSid,
			Slot:        slot,
			ScheduledAt: now,
			EmailStatus: models.NotificationQueued,
		})
		if scheduleErr != nil {
			log.Printf("Failed to persist schedule for call %s: %v", callSid, scheduleErr)
			schedule = nil
		}
	}

	if candidate != nil {
		applied, err := f.store.MarkInterviewScheduled(candidateID, slot, now)
		if err != nil {
			log.Printf("Failed to mark candidate %s scheduled: %v", candidateID, err)
		}
		outcome.Applied = applied
	} else {
		outcome.Applied = !alreadyScheduled && schedule != nil
	}

	// An identical retry has nothing left to do beyond reporting its state
	if alreadyScheduled && (candidate == nil || !outcome.Applied) {
		outcome.EmailStatus = schedule.EmailStatus
		log.Printf("Interview already finalized: candidate=%s call=%s slot=%q", candidateID, callSid, slot)
		return outcome
	}

	// Step 2: confirmation notification; recorded as metadata only
	emailStatus, emailErr := f.notify(candidate, slot, callSid)
	outcome.EmailStatus = emailStatus
	if schedule != nil {
		schedule.EmailStatus = emailStatus
		if candidate != nil {
			schedule.EmailAddress = candidate.Email
		}
		if emailStatus == models.NotificationSent {
			sentAt := time.Now()
			schedule.EmailSentAt = &sentAt
		}
		if emailErr != nil {
			schedule.EmailError = emailErr.Error()
		}
		if err := f.store.UpdateSchedule(schedule); err != nil {
			log.Printf("Failed to record email status on schedule for call %s: %v", callSid, err)
		}
	}

	// Step 3: audit entry
	log.Printf("Interview finalized: candidate=%s call=%s slot=%q applied=%v email=%s",
		candidateID, callSid, slot, outcome.Applied, emailStatus)

	return outcome
}

func (f *SchedulingFinalizer) notify(candidate *models.Candidate, slot, callSid string) (string, error) {
	if f.notifier == nil {
		return models.NotificationQueued, nil
	}
	status, err := f.notifier.SendInterviewConfirmation(candidate, slot, callSid)
	if err != nil {
		// Non-fatal: the schedule stands, the follow-up job retries delivery
		return status, err
	}
	return status, nil
}

// syntheticKey derives a stable best-effort identifier when only a raw phone
// number is known.
func (f *SchedulingFinalizer) syntheticKey(phone string) string {
	if phone != "" {
		return "phone:" + phone
	}
	return "anon:" + uuid.NewString()
}
