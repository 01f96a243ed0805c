package storage

import (
	"time"

	"github.com/talentline/interview-caller-backend/internal/models"
)

// Store defines the interface for storage operations
type Store interface {
	// Candidate operations
	CreateCandidate(candidate *models.Candidate) (*models.Candidate, error)
	GetCandidate(candidateID string) (*models.Candidate, error)
	GetCandidateByPhone(phone string) (*models.Candidate, error)
	GetAllCandidates() ([]*models.Candidate, error)
	GetCandidatesByStatus(status string) ([]*models.Candidate, error)
	UpdateCandidate(candidate *models.Candidate) error

	// MarkInterviewScheduled flips the candidate to interview_scheduled and
	// records the confirmed slot in one conditional update. Returns false
	// when the transition was already applied (idempotent retry).
	MarkInterviewScheduled(candidateID, slot string, scheduledAt time.Time) (bool, error)

	// Conversation session operations
	CreateSession(session *models.ConversationSession) error
	GetSession(callSid string) (*models.ConversationSession, error)
	UpdateSession(session *models.ConversationSession) error
	DeleteSession(callSid string) error
	GetStaleActiveSessions(cutoff time.Time) ([]*models.ConversationSession, error)

	// Call attempt ledger (append-only)
	RecordCallAttempt(attempt *models.CallAttempt) (*models.CallAttempt, error)
	CountCallAttempts(candidateID string) (int, error)
	GetCallAttempts(candidateID string) ([]*models.CallAttempt, error)

	// Interview schedules
	CreateSchedule(schedule *models.InterviewSchedule) (*models.InterviewSchedule, error)
	GetSchedule(candidateID, callSid string) (*models.InterviewSchedule, error)
	UpdateSchedule(schedule *models.InterviewSchedule) error
	GetSchedulesPendingNotification() ([]*models.InterviewSchedule, error)
}
