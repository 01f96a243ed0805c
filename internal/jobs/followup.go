package jobs

import (
	"log"
	"time"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/services"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

// FollowUpJob runs the periodic housekeeping sweeps: failing out stale
// sessions, retrying queued confirmation emails and flagging candidates
// whose call attempts are exhausted.
type FollowUpJob struct {
	store     storage.Store
	notifier  services.Notifier
	isRunning bool
	stop      chan struct{}
}

// How long a session may sit active before the sweep fails it out. A real
// call never lasts this long; anything older lost its final webhook.
const staleSessionAge = 30 * time.Minute

// NewFollowUpJob creates a new follow-up job scheduler
func NewFollowUpJob(store storage.Store, notifier services.Notifier) *FollowUpJob {
	return &FollowUpJob{
		store:    store,
		notifier: notifier,
	}
}

// Start begins the periodic sweeps. A stopped job can be started again.
func (j *FollowUpJob) Start() {
	if j.isRunning {
		log.Println("Follow-up job already running")
		return
	}
	j.isRunning = true
	j.stop = make(chan struct{})
	log.Println("Starting follow-up job...")

	go j.run(j.stop)
}

// Stop halts the sweeps
func (j *FollowUpJob) Stop() {
	if !j.isRunning {
		return
	}
	j.isRunning = false
	close(j.stop)
	log.Println("Stopping follow-up job...")
}

func (j *FollowUpJob) run(stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			j.sweepStaleSessions()
			j.retryPendingNotifications()
			j.emailExhaustedCandidates()
		}
	}
}

// sweepStaleSessions fails out sessions whose call ended without a final
// webhook, so they stop counting as active.
func (j *FollowUpJob) sweepStaleSessions() {
	cutoff := time.Now().Add(-staleSessionAge)
	sessions, err := j.store.GetStaleActiveSessions(cutoff)
	if err != nil {
		log.Printf("Stale session sweep failed: %v", err)
		return
	}

	for _, session := range sessions {
		now := time.Now()
		if session.ConfirmedSlot != "" {
			session.Status = models.SessionStatusCompleted
		} else {
			session.Status = models.SessionStatusFailed
		}
		session.EndedAt = &now
		if err := j.store.UpdateSession(session); err != nil {
			log.Printf("Failed to close stale session %s: %v", session.CallSid, err)
			continue
		}
		log.Printf("Closed stale session %s as %s", session.CallSid, session.Status)
	}
}

// retryPendingNotifications re-sends confirmation emails that failed or were
// queued while SMTP was unavailable. Delivery state is metadata on the
// schedule; the schedule itself is never touched.
func (j *FollowUpJob) retryPendingNotifications() {
	pending, err := j.store.GetSchedulesPendingNotification()
	if err != nil {
		log.Printf("Pending notification scan failed: %v", err)
		return
	}

	for _, schedule := range pending {
		candidate, err := j.store.GetCandidate(schedule.CandidateID)
		if err != nil {
			// Synthetic-key schedules have no candidate record to email
			continue
		}

		status, sendErr := j.notifier.SendInterviewConfirmation(candidate, schedule.Slot, schedule.CallSid)
		schedule.EmailStatus = status
		schedule.EmailAddress = candidate.Email
		if status == models.NotificationSent {
			sentAt := time.Now()
			schedule.EmailSentAt = &sentAt
			schedule.EmailError = ""
		} else if sendErr != nil {
			schedule.EmailError = sendErr.Error()
		}

		if err := j.store.UpdateSchedule(schedule); err != nil {
			log.Printf("Failed to record retried email status for call %s: %v", schedule.CallSid, err)
			continue
		}
		log.Printf("Retried confirmation email for call %s: %s", schedule.CallSid, status)
	}
}

// emailExhaustedCandidates sends one follow-up email to each candidate whose
// call attempts ran out without a confirmed slot. The send is recorded on the
// candidate's call history so the sweep never repeats it.
func (j *FollowUpJob) emailExhaustedCandidates() {
	candidates, err := j.store.GetCandidatesByStatus(models.CandidateStatusMaxAttempts)
	if err != nil {
		log.Printf("Exhausted candidate scan failed: %v", err)
		return
	}

	for _, candidate := range candidates {
		if candidate.Email == "" || hasFollowUpEmail(candidate) {
			continue
		}

		status, sendErr := j.notifier.SendSchedulingFollowUp(candidate)
		if status != models.NotificationSent {
			if sendErr != nil {
				log.Printf("Follow-up email to %s failed: %v", candidate.CandidateID, sendErr)
			}
			continue
		}

		if err := candidate.AppendHistory(models.CallHistoryEntry{
			InitiatedAt: time.Now(),
			Outcome:     models.OutcomeFollowUpEmailed,
			Notes:       "scheduling follow-up emailed after attempts exhausted",
		}); err != nil {
			log.Printf("Failed to record follow-up email for %s: %v", candidate.CandidateID, err)
			continue
		}
		if err := j.store.UpdateCandidate(candidate); err != nil {
			log.Printf("Failed to update candidate %s after follow-up email: %v", candidate.CandidateID, err)
			continue
		}
		log.Printf("Scheduling follow-up emailed to candidate %s", candidate.CandidateID)
	}
}

func hasFollowUpEmail(candidate *models.Candidate) bool {
	for _, entry := range candidate.History() {
		if entry.Outcome == models.OutcomeFollowUpEmailed {
			return true
		}
	}
	return false
}
