package models

import (
	"time"

	"gorm.io/gorm"
)

// Session statuses (terminal once completed or failed)
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusFailed    = "failed"
)

// Conversation stages for the dialogue state machine
const (
	StageGreeting   = "greeting"
	StageInitial    = "initial"
	StageScheduling = "scheduling"
	StageClosing    = "closing"
)

// CallInitiatedMarker is the synthetic candidate input recorded for turn 1.
const CallInitiatedMarker = "[CALL INITIATED]"

// ConversationSession stores one conversation per Twilio call SID
type ConversationSession struct {
	gorm.Model

	CallSid     string `json:"call_sid" gorm:"uniqueIndex"`
	Phone       string `json:"phone"`
	CandidateID string `json:"candidate_id" gorm:"index"`

	Stage         string     `json:"stage" gorm:"default:greeting"`
	Status        string     `json:"status" gorm:"default:active"`
	ConfirmedSlot string     `json:"confirmed_slot"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at"`

	// Set once an email fallback has been offered after a rejection,
	// so the same offer is not repeated every turn.
	FallbackOffered bool `json:"fallback_offered"`

	Turns []ConversationTurn `json:"turns" gorm:"serializer:json"`
}

// ConversationTurn is immutable once appended to a session
type ConversationTurn struct {
	TurnNumber      int       `json:"turn_number"`
	CandidateInput  string    `json:"candidate_input"`
	AIResponse      string    `json:"ai_response"`
	Timestamp       time.Time `json:"timestamp"`
	IntentDetected  string    `json:"intent_detected"`
	ConfidenceScore float64   `json:"confidence_score"`
}

// IsTerminal reports whether the session reached a final state
func (s *ConversationSession) IsTerminal() bool {
	return s.Status == SessionStatusCompleted || s.Status == SessionStatusFailed
}

// NextTurnNumber returns the turn number the next appended turn must carry
func (s *ConversationSession) NextTurnNumber() int {
	return len(s.Turns) + 1
}

// LastResponse returns the most recent spoken reply, if any
func (s *ConversationSession) LastResponse() string {
	if len(s.Turns) == 0 {
		return ""
	}
	return s.Turns[len(s.Turns)-1].AIResponse
}
