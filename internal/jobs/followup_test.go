package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

type fakeNotifier struct {
	status        string
	err           error
	calls         int
	followUpCalls int
}

func (f *fakeNotifier) SendInterviewConfirmation(candidate *models.Candidate, slot, callSid string) (string, error) {
	f.calls++
	return f.status, f.err
}

func (f *fakeNotifier) SendSchedulingFollowUp(candidate *models.Candidate) (string, error) {
	f.followUpCalls++
	return f.status, f.err
}

func TestSweepStaleSessions(t *testing.T) {
	store := storage.NewMemoryStore()
	job := NewFollowUpJob(store, &fakeNotifier{status: models.NotificationSent})

	abandoned := &models.ConversationSession{
		CallSid:   "CA_abandoned",
		Status:    models.SessionStatusActive,
		StartedAt: time.Now().Add(-time.Hour),
	}
	confirmed := &models.ConversationSession{
		CallSid:       "CA_confirmed",
		Status:        models.SessionStatusActive,
		ConfirmedSlot: "Tuesday at 2 PM",
		StartedAt:     time.Now().Add(-time.Hour),
	}
	live := &models.ConversationSession{
		CallSid:   "CA_live",
		Status:    models.SessionStatusActive,
		StartedAt: time.Now(),
	}
	require.NoError(t, store.CreateSession(abandoned))
	require.NoError(t, store.CreateSession(confirmed))
	require.NoError(t, store.CreateSession(live))

	job.sweepStaleSessions()

	// A stale session with a confirmed slot completed; without one it failed
	swept, err := store.GetSession("CA_abandoned")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFailed, swept.Status)
	assert.NotNil(t, swept.EndedAt)

	swept, err = store.GetSession("CA_confirmed")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, swept.Status)

	untouched, err := store.GetSession("CA_live")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, untouched.Status)
}

func TestRetryPendingNotifications(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &fakeNotifier{status: models.NotificationSent}
	job := NewFollowUpJob(store, notifier)

	candidate, err := store.CreateCandidate(&models.Candidate{
		Name:  "Priya Sharma",
		Phone: "+919876543210",
		Email: "priya@example.com",
	})
	require.NoError(t, err)

	_, err = store.CreateSchedule(&models.InterviewSchedule{
		CandidateID: candidate.CandidateID,
		CallSid:     "CA1",
		Slot:        "Tuesday at 2 PM",
		ScheduledAt: time.Now(),
		EmailStatus: models.NotificationFailed,
		EmailError:  "smtp timeout",
	})
	require.NoError(t, err)

	job.retryPendingNotifications()

	assert.Equal(t, 1, notifier.calls)
	schedule, err := store.GetSchedule(candidate.CandidateID, "CA1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationSent, schedule.EmailStatus)
	assert.Empty(t, schedule.EmailError)
	assert.NotNil(t, schedule.EmailSentAt)
}

func TestRetryPendingNotificationsKeepsFailureState(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &fakeNotifier{status: models.NotificationFailed, err: errors.New("smtp still down")}
	job := NewFollowUpJob(store, notifier)

	candidate, err := store.CreateCandidate(&models.Candidate{
		Name:  "Priya Sharma",
		Phone: "+919876543210",
		Email: "priya@example.com",
	})
	require.NoError(t, err)
	_, err = store.CreateSchedule(&models.InterviewSchedule{
		CandidateID: candidate.CandidateID,
		CallSid:     "CA1",
		Slot:        "Tuesday at 2 PM",
		EmailStatus: models.NotificationQueued,
	})
	require.NoError(t, err)

	job.retryPendingNotifications()

	schedule, err := store.GetSchedule(candidate.CandidateID, "CA1")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationFailed, schedule.EmailStatus)
	assert.Contains(t, schedule.EmailError, "smtp still down")
}

func TestRetrySkipsSyntheticCandidates(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &fakeNotifier{status: models.NotificationSent}
	job := NewFollowUpJob(store, notifier)

	// Schedules recorded under a synthetic key have nobody to email
	_, err := store.CreateSchedule(&models.InterviewSchedule{
		CandidateID: "phone:+919800000000",
		CallSid:     "CA1",
		Slot:        "Monday at 10 AM",
		EmailStatus: models.NotificationQueued,
	})
	require.NoError(t, err)

	job.retryPendingNotifications()

	assert.Equal(t, 0, notifier.calls)
}

func TestEmailExhaustedCandidatesSendsOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &fakeNotifier{status: models.NotificationSent}
	job := NewFollowUpJob(store, notifier)

	exhausted, err := store.CreateCandidate(&models.Candidate{
		Name:   "Priya Sharma",
		Phone:  "+919876543210",
		Email:  "priya@example.com",
		Status: models.CandidateStatusMaxAttempts,
	})
	require.NoError(t, err)
	_, err = store.CreateCandidate(&models.Candidate{
		Name:  "Rahul Verma",
		Phone: "+919876543211",
		Email: "rahul@example.com",
	})
	require.NoError(t, err)

	job.emailExhaustedCandidates()
	assert.Equal(t, 1, notifier.followUpCalls, "only exhausted candidates get the follow-up")

	// The send is recorded on the call history, so the next sweep skips it
	job.emailExhaustedCandidates()
	assert.Equal(t, 1, notifier.followUpCalls)

	updated, err := store.GetCandidate(exhausted.CandidateID)
	require.NoError(t, err)
	entries := updated.History()
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeFollowUpEmailed, entries[0].Outcome)
}

func TestEmailExhaustedCandidatesSkipsMissingAddress(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &fakeNotifier{status: models.NotificationSent}
	job := NewFollowUpJob(store, notifier)

	_, err := store.CreateCandidate(&models.Candidate{
		Name:   "No Email",
		Phone:  "+919876543212",
		Status: models.CandidateStatusMaxAttempts,
	})
	require.NoError(t, err)

	job.emailExhaustedCandidates()
	assert.Equal(t, 0, notifier.followUpCalls)
}

func TestStartStopIsIdempotent(t *testing.T) {
	job := NewFollowUpJob(storage.NewMemoryStore(), &fakeNotifier{status: models.NotificationSent})

	job.Stop() // stopping before any start is a no-op
	job.Start()
	job.Start()
	job.Stop()
	job.Stop()
}

func TestJobCanBeRestartedAfterStop(t *testing.T) {
	job := NewFollowUpJob(storage.NewMemoryStore(), &fakeNotifier{status: models.NotificationSent})

	job.Start()
	job.Stop()

	// A fresh stop channel backs the second run
	job.Start()
	assert.True(t, job.isRunning)
	job.Stop()
	assert.False(t, job.isRunning)
}
