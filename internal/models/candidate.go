package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Candidate statuses for call tracking
const (
	CandidateStatusActive             = "active"
	CandidateStatusMaxAttempts        = "max_attempts"
	CandidateStatusInterviewScheduled = "interview_scheduled"
)

// DefaultMaxCallAttempts is how many times we call a candidate before giving up.
const DefaultMaxCallAttempts = 3

// Candidate represents a shortlisted candidate we are trying to schedule
type Candidate struct {
	gorm.Model

	CandidateID string `json:"candidate_id" gorm:"uniqueIndex"`
	Name        string `json:"name"`
	Phone       string `json:"phone" gorm:"uniqueIndex"` // E.164
	Email       string `json:"email"`
	Position    string `json:"position"`
	Company     string `json:"company"`

	// Call tracking
	TotalAttempts   int            `json:"total_attempts" gorm:"default:0"`
	MaxAttempts     int            `json:"max_attempts" gorm:"default:3"`
	Status          string         `json:"status" gorm:"default:active"`
	LastContactDate *time.Time     `json:"last_contact_date"`
	CallHistory     datatypes.JSON `json:"call_history"`

	// Interview details (set once scheduling succeeds)
	ConfirmedSlot string     `json:"confirmed_slot"`
	ScheduledAt   *time.Time `json:"scheduled_at"`
}

// CallHistoryEntry is one element of the candidate's call_history JSON column
type CallHistoryEntry struct {
	CallSid     string    `json:"call_sid"`
	InitiatedAt time.Time `json:"initiated_at"`
	Status      string    `json:"status"`
	Outcome     string    `json:"outcome"`
	Notes       string    `json:"notes,omitempty"`
}

// BeforeCreate hook to auto-generate CandidateID and normalize data
func (c *Candidate) BeforeCreate(tx *gorm.DB) error {
	if c.CandidateID == "" {
		c.CandidateID = fmt.Sprintf("CAND%d%03d", time.Now().Unix(), time.Now().Nanosecond()%1000)
	}

	// Normalize phone number to E.164-ish (assume Indian numbers without prefix)
	c.Phone = strings.ReplaceAll(c.Phone, " ", "")
	if c.Phone != "" && !strings.HasPrefix(c.Phone, "+") {
		c.Phone = "+91" + strings.TrimPrefix(c.Phone, "91")
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxCallAttempts
	}
	if c.Status == "" {
		c.Status = CandidateStatusActive
	}

	return nil
}

// History decodes the call_history JSON column
func (c *Candidate) History() []CallHistoryEntry {
	if len(c.CallHistory) == 0 {
		return nil
	}
	var entries []CallHistoryEntry
	if err := json.Unmarshal(c.CallHistory, &entries); err != nil {
		return nil
	}
	return entries
}

// AppendHistory records one call attempt on the candidate document
func (c *Candidate) AppendHistory(entry CallHistoryEntry) error {
	entries := append(c.History(), entry)
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	c.CallHistory = datatypes.JSON(raw)
	return nil
}

// RemainingAttempts is how many more calls the governor will allow
func (c *Candidate) RemainingAttempts() int {
	remaining := c.MaxAttempts - c.TotalAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}
