package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

// stubNotifier records confirmation requests without touching SMTP
type stubNotifier struct {
	status string
	err    error
	calls  int
}

func (s *stubNotifier) SendInterviewConfirmation(candidate *models.Candidate, slot, callSid string) (string, error) {
	s.calls++
	return s.status, s.err
}

func (s *stubNotifier) SendSchedulingFollowUp(candidate *models.Candidate) (string, error) {
	s.calls++
	return s.status, s.err
}

func TestFinalizeHappyPath(t *testing.T) {
	store := storage.NewMemoryStore()
	candidate := seedCandidate(t, store, "+919876543210")
	notifier := &stubNotifier{status: models.NotificationSent}
	finalizer := NewSchedulingFinalizer(store, notifier)

	outcome := finalizer.Finalize(candidate.CandidateID, "CA100", candidate.Phone, "Tuesday at 2 PM")

	assert.True(t, outcome.Applied)
	assert.Equal(t, models.NotificationSent, outcome.EmailStatus)
	assert.Equal(t, 1, notifier.calls)

	updated, err := store.GetCandidate(candidate.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusInterviewScheduled, updated.Status)
	assert.Equal(t, "Tuesday at 2 PM", updated.ConfirmedSlot)
	require.NotNil(t, updated.ScheduledAt)

	schedule, err := store.GetSchedule(candidate.CandidateID, "CA100")
	require.NoError(t, err)
	assert.Equal(t, "Tuesday at 2 PM", schedule.Slot)
	assert.Equal(t, models.NotificationSent, schedule.EmailStatus)
	assert.NotNil(t, schedule.EmailSentAt)
	assert.Equal(t, candidate.Email, schedule.EmailAddress)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	candidate := seedCandidate(t, store, "+919876543210")
	notifier := &stubNotifier{status: models.NotificationSent}
	finalizer := NewSchedulingFinalizer(store, notifier)

	first := finalizer.Finalize(candidate.CandidateID, "CA100", candidate.Phone, "Tuesday at 2 PM")
	second := finalizer.Finalize(candidate.CandidateID, "CA100", candidate.Phone, "Tuesday at 2 PM")

	assert.True(t, first.Applied)
	assert.False(t, second.Applied, "identical retry must be absorbed")
	assert.Equal(t, models.NotificationSent, second.EmailStatus)
	assert.Equal(t, 1, notifier.calls, "retry must not re-send the email")
}

func TestFinalizeEmailFailureKeepsSchedule(t *testing.T) {
	store := storage.NewMemoryStore()
	candidate := seedCandidate(t, store, "+919876543210")
	notifier := &stubNotifier{status: models.NotificationFailed, err: errors.New("smtp connection refused")}
	finalizer := NewSchedulingFinalizer(store, notifier)

	outcome := finalizer.Finalize(candidate.CandidateID, "CA200", candidate.Phone, "Wednesday at 11 AM")

	// The schedule and candidate flip stand; delivery failure is metadata only
	assert.True(t, outcome.Applied)
	assert.Equal(t, models.NotificationFailed, outcome.EmailStatus)

	updated, err := store.GetCandidate(candidate.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusInterviewScheduled, updated.Status)

	schedule, err := store.GetSchedule(candidate.CandidateID, "CA200")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationFailed, schedule.EmailStatus)
	assert.Contains(t, schedule.EmailError, "smtp connection refused")

	// The failed delivery is visible to the retry sweep
	pending, err := store.GetSchedulesPendingNotification()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestFinalizeUnresolvedCandidateUsesSyntheticKey(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &stubNotifier{status: models.NotificationSent}
	finalizer := NewSchedulingFinalizer(store, notifier)

	outcome := finalizer.Finalize("", "CA300", "+919812345678", "Thursday at 3 PM")

	assert.True(t, outcome.Applied)
	assert.Equal(t, "phone:+919812345678", outcome.CandidateID)

	schedule, err := store.GetSchedule("phone:+919812345678", "CA300")
	require.NoError(t, err)
	assert.Equal(t, "Thursday at 3 PM", schedule.Slot)
}

func TestFinalizeUnresolvedCandidateWithoutPhone(t *testing.T) {
	store := storage.NewMemoryStore()
	finalizer := NewSchedulingFinalizer(store, &stubNotifier{status: models.NotificationQueued})

	outcome := finalizer.Finalize("", "CA400", "", "Monday at 10 AM")

	assert.True(t, outcome.Applied)
	assert.True(t, strings.HasPrefix(outcome.CandidateID, "anon:"))
}

func TestFinalizeNilNotifierQueues(t *testing.T) {
	store := storage.NewMemoryStore()
	candidate := seedCandidate(t, store, "+919876543210")
	finalizer := NewSchedulingFinalizer(store, nil)

	outcome := finalizer.Finalize(candidate.CandidateID, "CA500", candidate.Phone, "Tuesday at 2 PM")

	assert.True(t, outcome.Applied)
	assert.Equal(t, models.NotificationQueued, outcome.EmailStatus)
}
