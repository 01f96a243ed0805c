package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

func TestGetOrCreatePersistsNewSession(t *testing.T) {
	store := storage.NewMemoryStore()
	sm := NewSessionManager(store)

	session, err := sm.GetOrCreate("CA1", "+919876543210", "CAND00001")
	require.NoError(t, err)
	assert.Equal(t, models.StageGreeting, session.Stage)
	assert.Equal(t, models.SessionStatusActive, session.Status)

	// Written through before the webhook is answered
	stored, err := store.GetSession("CA1")
	require.NoError(t, err)
	assert.Equal(t, "CAND00001", stored.CandidateID)
}

func TestGetOrCreateReturnsExistingSession(t *testing.T) {
	store := storage.NewMemoryStore()
	sm := NewSessionManager(store)

	first, err := sm.GetOrCreate("CA1", "+919876543210", "CAND00001")
	require.NoError(t, err)
	second, err := sm.GetOrCreate("CA1", "", "")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestGetOrCreateReloadsAfterRestart(t *testing.T) {
	store := storage.NewMemoryStore()
	sm := NewSessionManager(store)
	original, err := sm.GetOrCreate("CA1", "+919876543210", "CAND00001")
	require.NoError(t, err)
	sm.AppendTurn(original, models.CallInitiatedMarker, "Hello!", "", 0)

	// A fresh manager on the same store simulates a process restart mid-call
	restarted := NewSessionManager(store)
	reloaded, err := restarted.GetOrCreate("CA1", "", "")
	require.NoError(t, err)

	assert.Equal(t, "CAND00001", reloaded.CandidateID)
	assert.Len(t, reloaded.Turns, 1)
}

func TestAppendTurnNumbersAreGapless(t *testing.T) {
	store := storage.NewMemoryStore()
	sm := NewSessionManager(store)
	session, err := sm.GetOrCreate("CA1", "+919876543210", "")
	require.NoError(t, err)

	sm.AppendTurn(session, models.CallInitiatedMarker, "Hello!", "", 0)
	sm.AppendTurn(session, "yes", "Great!", IntentConfirmation, 0.85)
	sm.AppendTurn(session, "tuesday", "Confirmed.", IntentTimeMention, 0.8)

	require.Len(t, session.Turns, 3)
	for i, turn := range session.Turns {
		assert.Equal(t, i+1, turn.TurnNumber)
	}
}

func TestTerminalTransitionsAreSticky(t *testing.T) {
	store := storage.NewMemoryStore()
	sm := NewSessionManager(store)
	session, err := sm.GetOrCreate("CA1", "+919876543210", "")
	require.NoError(t, err)

	sm.Complete(session)
	require.True(t, session.IsTerminal())
	endedAt := session.EndedAt

	// Failing a completed session must not overwrite the terminal state
	sm.Fail(session)
	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	assert.Equal(t, endedAt, session.EndedAt)
}

func TestConfirmSlotIsSetOnce(t *testing.T) {
	store := storage.NewMemoryStore()
	sm := NewSessionManager(store)
	session, err := sm.GetOrCreate("CA1", "+919876543210", "")
	require.NoError(t, err)

	sm.ConfirmSlot(session, "Tuesday at 2 PM")
	sm.ConfirmSlot(session, "Monday at 10 AM")

	assert.Equal(t, "Tuesday at 2 PM", session.ConfirmedSlot)
}

func TestActiveCountExcludesTerminalSessions(t *testing.T) {
	store := storage.NewMemoryStore()
	sm := NewSessionManager(store)

	a, _ := sm.GetOrCreate("CA_A", "+919876543210", "")
	_, _ = sm.GetOrCreate("CA_B", "+919876543211", "")
	sm.Complete(a)

	assert.Equal(t, 1, sm.ActiveCount())
}

func TestDeleteRemovesSessionEverywhere(t *testing.T) {
	store := storage.NewMemoryStore()
	sm := NewSessionManager(store)
	_, err := sm.GetOrCreate("CA1", "+919876543210", "")
	require.NoError(t, err)

	require.NoError(t, sm.Delete("CA1"))

	_, err = store.GetSession("CA1")
	assert.Error(t, err)
	_, err = sm.Get("CA1")
	assert.Error(t, err)
}
