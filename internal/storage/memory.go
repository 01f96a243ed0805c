package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/talentline/interview-caller-backend/internal/models"
)

// MemoryStore holds all data in memory for tests and local development
type MemoryStore struct {
	candidates map[string]*models.Candidate           // keyed by CandidateID
	sessions   map[string]*models.ConversationSession // keyed by CallSid
	attempts   map[string][]*models.CallAttempt       // keyed by CandidateID
	schedules  map[string]*models.InterviewSchedule   // keyed by CandidateID+CallSid

	candidateMu sync.RWMutex
	sessionMu   sync.RWMutex
	attemptMu   sync.RWMutex
	scheduleMu  sync.RWMutex

	candidateCounter int
	scheduleCounter  int
	attemptCounter   int
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		candidates: make(map[string]*models.Candidate),
		sessions:   make(map[string]*models.ConversationSession),
		attempts:   make(map[string][]*models.CallAttempt),
		schedules:  make(map[string]*models.InterviewSchedule),
	}
}

func scheduleKey(candidateID, callSid string) string {
	return candidateID + "/" + callSid
}

// Candidate operations

func (m *MemoryStore) CreateCandidate(candidate *models.Candidate) (*models.Candidate, error) {
	m.candidateMu.Lock()
	defer m.candidateMu.Unlock()

	for _, existing := range m.candidates {
		if existing.Phone == candidate.Phone {
			return nil, fmt.Errorf("candidate with phone %s already exists", candidate.Phone)
		}
	}

	m.candidateCounter++
	if candidate.CandidateID == "" {
		candidate.CandidateID = fmt.Sprintf("CAND%05d", m.candidateCounter)
	}
	if candidate.MaxAttempts == 0 {
		candidate.MaxAttempts = models.DefaultMaxCallAttempts
	}
	if candidate.Status == "" {
		candidate.Status = models.CandidateStatusActive
	}
	candidate.CreatedAt = time.Now()
	candidate.UpdatedAt = time.Now()

	m.candidates[candidate.CandidateID] = candidate
	return candidate, nil
}

func (m *MemoryStore) GetCandidate(candidateID string) (*models.Candidate, error) {
	m.candidateMu.RLock()
	defer m.candidateMu.RUnlock()

	candidate, exists := m.candidates[candidateID]
	if !exists {
		return nil, fmt.Errorf("candidate not found")
	}
	return candidate, nil
}

func (m *MemoryStore) GetCandidateByPhone(phone string) (*models.Candidate, error) {
	m.candidateMu.RLock()
	defer m.candidateMu.RUnlock()

	for _, candidate := range m.candidates {
		if candidate.Phone == phone {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("candidate not found")
}

func (m *MemoryStore) GetAllCandidates() ([]*models.Candidate, error) {
	m.candidateMu.RLock()
	defer m.candidateMu.RUnlock()

	candidates := make([]*models.Candidate, 0, len(m.candidates))
	for _, candidate := range m.candidates {
		candidates = append(candidates, candidate)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CandidateID < candidates[j].CandidateID
	})
	return candidates, nil
}

func (m *MemoryStore) GetCandidatesByStatus(status string) ([]*models.Candidate, error) {
	m.candidateMu.RLock()
	defer m.candidateMu.RUnlock()

	var matched []*models.Candidate
	for _, candidate := range m.candidates {
		if candidate.Status == status {
			matched = append(matched, candidate)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CandidateID < matched[j].CandidateID
	})
	return matched, nil
}

func (m *MemoryStore) UpdateCandidate(candidate *models.Candidate) error {
	m.candidateMu.Lock()
	defer m.candidateMu.Unlock()

	if _, exists := m.candidates[candidate.CandidateID]; !exists {
		return fmt.Errorf("candidate not found")
	}
	candidate.UpdatedAt = time.Now()
	m.candidates[candidate.CandidateID] = candidate
	return nil
}

func (m *MemoryStore) MarkInterviewScheduled(candidateID, slot string, scheduledAt time.Time) (bool, error) {
	m.candidateMu.Lock()
	defer m.candidateMu.Unlock()

	candidate, exists := m.candidates[candidateID]
	if !exists {
		return false, fmt.Errorf("candidate not found")
	}

	// Check-then-set: a second invocation with the same slot is a no-op.
	if candidate.Status == models.CandidateStatusInterviewScheduled && candidate.ConfirmedSlot == slot {
		return false, nil
	}

	candidate.Status = models.CandidateStatusInterviewScheduled
	candidate.ConfirmedSlot = slot
	candidate.ScheduledAt = &scheduledAt
	candidate.UpdatedAt = time.Now()
	return true, nil
}

// Conversation session operations

func (m *MemoryStore) CreateSession(session *models.ConversationSession) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if _, exists := m.sessions[session.CallSid]; exists {
		return fmt.Errorf("session already exists for call %s", session.CallSid)
	}
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()
	m.sessions[session.CallSid] = session
	return nil
}

func (m *MemoryStore) GetSession(callSid string) (*models.ConversationSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, exists := m.sessions[callSid]
	if !exists {
		return nil, fmt.Errorf("session not found")
	}
	return session, nil
}

func (m *MemoryStore) UpdateSession(session *models.ConversationSession) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if _, exists := m.sessions[session.CallSid]; !exists {
		return fmt.Errorf("session not found")
	}
	session.UpdatedAt = time.Now()
	m.sessions[session.CallSid] = session
	return nil
}

func (m *MemoryStore) DeleteSession(callSid string) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if _, exists := m.sessions[callSid]; !exists {
		return fmt.Errorf("session not found")
	}
	delete(m.sessions, callSid)
	return nil
}

func (m *MemoryStore) GetStaleActiveSessions(cutoff time.Time) ([]*models.ConversationSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	var stale []*models.ConversationSession
	for _, session := range m.sessions {
		if session.Status == models.SessionStatusActive && session.StartedAt.Before(cutoff) {
			stale = append(stale, session)
		}
	}
	return stale, nil
}

// Call attempt ledger

func (m *MemoryStore) RecordCallAttempt(attempt *models.CallAttempt) (*models.CallAttempt, error) {
	m.attemptMu.Lock()
	defer m.attemptMu.Unlock()

	// Duplicate delivery of the same call SID must not inflate the ledger
	for _, existing := range m.attempts[attempt.CandidateID] {
		if existing.CallSid == attempt.CallSid {
			return existing, nil
		}
	}

	m.attemptCounter++
	attempt.ID = uint(m.attemptCounter)
	attempt.CreatedAt = time.Now()
	if attempt.InitiatedAt.IsZero() {
		attempt.InitiatedAt = time.Now()
	}
	m.attempts[attempt.CandidateID] = append(m.attempts[attempt.CandidateID], attempt)
	return attempt, nil
}

func (m *MemoryStore) CountCallAttempts(candidateID string) (int, error) {
	m.attemptMu.RLock()
	defer m.attemptMu.RUnlock()
	return len(m.attempts[candidateID]), nil
}

func (m *MemoryStore) GetCallAttempts(candidateID string) ([]*models.CallAttempt, error) {
	m.attemptMu.RLock()
	defer m.attemptMu.RUnlock()

	attempts := make([]*models.CallAttempt, len(m.attempts[candidateID]))
	copy(attempts, m.attempts[candidateID])
	return attempts, nil
}

// Interview schedules

func (m *MemoryStore) CreateSchedule(schedule *models.InterviewSchedule) (*models.InterviewSchedule, error) {
	m.scheduleMu.Lock()
	defer m.scheduleMu.Unlock()

	key := scheduleKey(schedule.CandidateID, schedule.CallSid)
	if existing, exists := m.schedules[key]; exists {
		return existing, nil
	}

	m.scheduleCounter++
	schedule.ID = uint(m.scheduleCounter)
	schedule.CreatedAt = time.Now()
	schedule.UpdatedAt = time.Now()
	if schedule.Status == "" {
		schedule.Status = "scheduled"
	}
	m.schedules[key] = schedule
	return schedule, nil
}

func (m *MemoryStore) GetSchedule(candidateID, callSid string) (*models.InterviewSchedule, error) {
	m.scheduleMu.RLock()
	defer m.scheduleMu.RUnlock()

	schedule, exists := m.schedules[scheduleKey(candidateID, callSid)]
	if !exists {
		return nil, fmt.Errorf("schedule not found")
	}
	return schedule, nil
}

func (m *MemoryStore) UpdateSchedule(schedule *models.InterviewSchedule) error {
	m.scheduleMu.Lock()
	defer m.scheduleMu.Unlock()

	key := scheduleKey(schedule.CandidateID, schedule.CallSid)
	if _, exists := m.schedules[key]; !exists {
		return fmt.Errorf("schedule not found")
	}
	schedule.UpdatedAt = time.Now()
	m.schedules[key] = schedule
	return nil
}

func (m *MemoryStore) GetSchedulesPendingNotification() ([]*models.InterviewSchedule, error) {
	m.scheduleMu.RLock()
	defer m.scheduleMu.RUnlock()

	var pending []*models.InterviewSchedule
	for _, schedule := range m.schedules {
		if schedule.EmailStatus == models.NotificationQueued || schedule.EmailStatus == models.NotificationFailed {
			pending = append(pending, schedule)
		}
	}
	return pending, nil
}
