package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

// SessionManager owns the lifecycle of one conversation session per call SID.
// Reads go through an in-memory cache; creates and updates are written
// through to durable storage immediately so a crash between webhooks does
// not lose turn 1. The telephony provider serializes webhooks per call SID,
// so locking here only guards distinct calls racing on the shared maps.
type SessionManager struct {
	store    storage.Store
	sessions map[string]*models.ConversationSession // cache keyed by call SID
	mu       sync.RWMutex
}

// NewSessionManager creates a new session manager
func NewSessionManager(store storage.Store) *SessionManager {
	return &SessionManager{
		store:    store,
		sessions: make(map[string]*models.ConversationSession),
	}
}

// GetOrCreate resolves the session for a call SID, creating and persisting a
// fresh one on first contact.
func (sm *SessionManager) GetOrCreate(callSid, phone, candidateID string) (*models.ConversationSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[callSid]; exists {
		return session, nil
	}

	// Cache miss: the process may have restarted mid-call
	if session, err := sm.store.GetSession(callSid); err == nil {
		sm.sessions[callSid] = session
		return session, nil
	}

	session := &models.ConversationSession{
		CallSid:     callSid,
		Phone:       phone,
		CandidateID: candidateID,
		Stage:       models.StageGreeting,
		Status:      models.SessionStatusActive,
		StartedAt:   time.Now(),
	}

	// Write through before answering the webhook
	if err := sm.store.CreateSession(session); err != nil {
		log.Printf("Failed to persist new session %s: %v", callSid, err)
		// Keep serving the call from cache; storage hiccups must not hang up
	}
	sm.sessions[callSid] = session

	log.Printf("Session created for call %s (candidate %s)", callSid, candidateID)
	return session, nil
}

// Get returns the session for a call SID, loading from storage on cache miss
func (sm *SessionManager) Get(callSid string) (*models.ConversationSession, error) {
	sm.mu.RLock()
	session, exists := sm.sessions[callSid]
	sm.mu.RUnlock()
	if exists {
		return session, nil
	}

	session, err := sm.store.GetSession(callSid)
	if err != nil {
		return nil, fmt.Errorf("session not found for call %s", callSid)
	}

	sm.mu.Lock()
	sm.sessions[callSid] = session
	sm.mu.Unlock()
	return session, nil
}

// AppendTurn appends an immutable turn with the next gapless turn number and
// persists the session. Returns the appended turn.
func (sm *SessionManager) AppendTurn(session *models.ConversationSession, input, response, intent string, confidence float64) models.ConversationTurn {
	turn := models.ConversationTurn{
		TurnNumber:      session.NextTurnNumber(),
		CandidateInput:  input,
		AIResponse:      response,
		Timestamp:       time.Now(),
		IntentDetected:  intent,
		ConfidenceScore: confidence,
	}
	session.Turns = append(session.Turns, turn)
	sm.persist(session)
	return turn
}

// Complete moves a session to its terminal completed state. Terminal states
// are sticky: completing an already-terminal session is a no-op.
func (sm *SessionManager) Complete(session *models.ConversationSession) {
	if session.IsTerminal() {
		return
	}
	now := time.Now()
	session.Status = models.SessionStatusCompleted
	session.EndedAt = &now
	sm.persist(session)
}

// Fail moves a session to its terminal failed state
func (sm *SessionManager) Fail(session *models.ConversationSession) {
	if session.IsTerminal() {
		return
	}
	now := time.Now()
	session.Status = models.SessionStatusFailed
	session.EndedAt = &now
	sm.persist(session)
}

// ConfirmSlot records the confirmed slot; once set it is never cleared
func (sm *SessionManager) ConfirmSlot(session *models.ConversationSession, slot string) {
	if session.ConfirmedSlot != "" {
		return
	}
	session.ConfirmedSlot = slot
	sm.persist(session)
}

// Update persists any other session mutation (stage moves, flags)
func (sm *SessionManager) Update(session *models.ConversationSession) {
	sm.persist(session)
}

// Delete removes a session from cache and durable storage. Sessions are
// never deleted automatically; this backs the explicit delete endpoint.
func (sm *SessionManager) Delete(callSid string) error {
	sm.mu.Lock()
	delete(sm.sessions, callSid)
	sm.mu.Unlock()
	return sm.store.DeleteSession(callSid)
}

// ActiveCount returns the number of cached, non-terminal sessions (for the
// health endpoint).
func (sm *SessionManager) ActiveCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	count := 0
	for _, session := range sm.sessions {
		if !session.IsTerminal() {
			count++
		}
	}
	return count
}

func (sm *SessionManager) persist(session *models.ConversationSession) {
	if err := sm.store.UpdateSession(session); err != nil {
		// Never leave the candidate mid-call because of a storage hiccup
		log.Printf("Failed to persist session %s: %v", session.CallSid, err)
	}
}
