package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentline/interview-caller-backend/internal/models"
)

func newTestCandidate(t *testing.T, store *MemoryStore, phone string) *models.Candidate {
	t.Helper()
	candidate, err := store.CreateCandidate(&models.Candidate{
		Name:     "Priya Sharma",
		Phone:    phone,
		Email:    "priya@example.com",
		Position: "Backend Engineer",
		Company:  "TalentLine",
	})
	require.NoError(t, err)
	return candidate
}

func TestCreateCandidateAssignsDefaults(t *testing.T) {
	store := NewMemoryStore()
	candidate := newTestCandidate(t, store, "+919876543210")

	assert.NotEmpty(t, candidate.CandidateID)
	assert.Equal(t, models.DefaultMaxCallAttempts, candidate.MaxAttempts)
	assert.Equal(t, models.CandidateStatusActive, candidate.Status)
}

func TestCreateCandidateRejectsDuplicatePhone(t *testing.T) {
	store := NewMemoryStore()
	newTestCandidate(t, store, "+919876543210")

	_, err := store.CreateCandidate(&models.Candidate{Name: "Other", Phone: "+919876543210"})
	assert.Error(t, err)
}

func TestGetCandidateByPhone(t *testing.T) {
	store := NewMemoryStore()
	created := newTestCandidate(t, store, "+919876543210")

	found, err := store.GetCandidateByPhone("+919876543210")
	require.NoError(t, err)
	assert.Equal(t, created.CandidateID, found.CandidateID)

	_, err = store.GetCandidateByPhone("+910000000000")
	assert.Error(t, err)
}

func TestMarkInterviewScheduledIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	candidate := newTestCandidate(t, store, "+919876543210")
	when := time.Now()

	applied, err := store.MarkInterviewScheduled(candidate.CandidateID, "Tuesday at 2 PM", when)
	require.NoError(t, err)
	assert.True(t, applied)

	// Same slot again: observable no-op
	applied, err = store.MarkInterviewScheduled(candidate.CandidateID, "Tuesday at 2 PM", when)
	require.NoError(t, err)
	assert.False(t, applied)

	updated, err := store.GetCandidate(candidate.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusInterviewScheduled, updated.Status)
	assert.Equal(t, "Tuesday at 2 PM", updated.ConfirmedSlot)
}

func TestSessionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	session := &models.ConversationSession{
		CallSid:   "CA1",
		Phone:     "+919876543210",
		Stage:     models.StageGreeting,
		Status:    models.SessionStatusActive,
		StartedAt: time.Now(),
	}

	require.NoError(t, store.CreateSession(session))
	assert.Error(t, store.CreateSession(session), "duplicate call SID must be rejected")

	loaded, err := store.GetSession("CA1")
	require.NoError(t, err)
	assert.Equal(t, models.StageGreeting, loaded.Stage)

	loaded.Stage = models.StageScheduling
	require.NoError(t, store.UpdateSession(loaded))

	require.NoError(t, store.DeleteSession("CA1"))
	_, err = store.GetSession("CA1")
	assert.Error(t, err)
	assert.Error(t, store.DeleteSession("CA1"))
}

func TestGetStaleActiveSessions(t *testing.T) {
	store := NewMemoryStore()

	stale := &models.ConversationSession{
		CallSid:   "CA_stale",
		Status:    models.SessionStatusActive,
		StartedAt: time.Now().Add(-time.Hour),
	}
	fresh := &models.ConversationSession{
		CallSid:   "CA_fresh",
		Status:    models.SessionStatusActive,
		StartedAt: time.Now(),
	}
	done := &models.ConversationSession{
		CallSid:   "CA_done",
		Status:    models.SessionStatusCompleted,
		StartedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.CreateSession(stale))
	require.NoError(t, store.CreateSession(fresh))
	require.NoError(t, store.CreateSession(done))

	found, err := store.GetStaleActiveSessions(time.Now().Add(-30 * time.Minute))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "CA_stale", found[0].CallSid)
}

func TestRecordCallAttemptDeduplicatesOnCallSid(t *testing.T) {
	store := NewMemoryStore()
	candidate := newTestCandidate(t, store, "+919876543210")

	first, err := store.RecordCallAttempt(&models.CallAttempt{
		CallSid:     "CA1",
		CandidateID: candidate.CandidateID,
		Phone:       candidate.Phone,
	})
	require.NoError(t, err)

	second, err := store.RecordCallAttempt(&models.CallAttempt{
		CallSid:     "CA1",
		CandidateID: candidate.CandidateID,
		Phone:       candidate.Phone,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := store.CountCallAttempts(candidate.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateScheduleReturnsExistingOnDuplicate(t *testing.T) {
	store := NewMemoryStore()

	first, err := store.CreateSchedule(&models.InterviewSchedule{
		CandidateID: "CAND1",
		CallSid:     "CA1",
		Slot:        "Tuesday at 2 PM",
		ScheduledAt: time.Now(),
		EmailStatus: models.NotificationQueued,
	})
	require.NoError(t, err)
	assert.Equal(t, "scheduled", first.Status)

	second, err := store.CreateSchedule(&models.InterviewSchedule{
		CandidateID: "CAND1",
		CallSid:     "CA1",
		Slot:        "Monday at 10 AM",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Tuesday at 2 PM", second.Slot, "first write wins")
}

func TestGetSchedulesPendingNotification(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.CreateSchedule(&models.InterviewSchedule{
		CandidateID: "CAND1", CallSid: "CA1", Slot: "Tuesday at 2 PM",
		EmailStatus: models.NotificationQueued,
	})
	require.NoError(t, err)
	_, err = store.CreateSchedule(&models.InterviewSchedule{
		CandidateID: "CAND2", CallSid: "CA2", Slot: "Monday at 10 AM",
		EmailStatus: models.NotificationFailed,
	})
	require.NoError(t, err)
	_, err = store.CreateSchedule(&models.InterviewSchedule{
		CandidateID: "CAND3", CallSid: "CA3", Slot: "Thursday at 3 PM",
		EmailStatus: models.NotificationSent,
	})
	require.NoError(t, err)

	pending, err := store.GetSchedulesPendingNotification()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
