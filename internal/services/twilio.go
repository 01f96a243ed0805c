package services

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

// TwilioService places outbound calls and records them in the attempt
// ledger. This is the only place a candidate's total_attempts increments:
// reading or resuming a session never counts as an attempt.
type TwilioService struct {
	client *twilio.RestClient
	store  storage.Store
	from   string
	base   string // public webhook base URL
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(store storage.Store) (*TwilioService, error) {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	from := os.Getenv("TWILIO_PHONE_NUMBER")

	if accountSid == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials in environment variables")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})

	base := os.Getenv("WEBHOOK_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	return &TwilioService{
		client: client,
		store:  store,
		from:   from,
		base:   base,
	}, nil
}

// WebhookBase returns the public base URL Twilio calls back on
func (t *TwilioService) WebhookBase() string {
	return t.base
}

// PlaceCall initiates an outbound call to the candidate and appends the
// attempt to the ledger. Returns the recorded attempt.
func (t *TwilioService) PlaceCall(candidate *models.Candidate) (*models.CallAttempt, error) {
	params := &twilioApi.CreateCallParams{}
	params.SetTo(candidate.Phone)
	params.SetFrom(t.from)
	params.SetUrl(t.base + "/webhook/voice")
	params.SetMethod("POST")

	log.Printf("Initiating call to %s (%s)", candidate.Name, candidate.Phone)

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		// A placement that never reached the provider is not an attempt
		return nil, fmt.Errorf("call placement failed: %w", err)
	}

	callSid := ""
	if resp.Sid != nil {
		callSid = *resp.Sid
	}
	status := ""
	if resp.Status != nil {
		status = *resp.Status
	}

	attempt, err := t.RecordAttempt(candidate, callSid, status)
	if err != nil {
		log.Printf("Call %s placed but attempt not recorded: %v", callSid, err)
		return &models.CallAttempt{
			CallSid:      callSid,
			CandidateID:  candidate.CandidateID,
			Phone:        candidate.Phone,
			InitiatedAt:  time.Now(),
			TwilioStatus: status,
			Outcome:      models.AttemptOutcomeInitiated,
		}, nil
	}

	log.Printf("Call initiated - SID: %s, status: %s", callSid, status)
	return attempt, nil
}

// RecordAttempt appends a ledger entry for a placed call and updates the
// candidate's tracking counters. Idempotent on call SID, so a duplicate
// "call attempt recorded" event cannot inflate total_attempts.
func (t *TwilioService) RecordAttempt(candidate *models.Candidate, callSid, twilioStatus string) (*models.CallAttempt, error) {
	attempt, err := t.store.RecordCallAttempt(&models.CallAttempt{
		CallSid:      callSid,
		CandidateID:  candidate.CandidateID,
		Phone:        candidate.Phone,
		InitiatedAt:  time.Now(),
		TwilioStatus: twilioStatus,
		Outcome:      models.AttemptOutcomeInitiated,
	})
	if err != nil {
		return nil, err
	}

	// Keep the candidate document's counter equal to the ledger count
	count, err := t.store.CountCallAttempts(candidate.CandidateID)
	if err != nil {
		count = candidate.TotalAttempts + 1
	}
	if count == candidate.TotalAttempts {
		// Duplicate delivery absorbed by the ledger; nothing to update
		return attempt, nil
	}

	now := time.Now()
	candidate.TotalAttempts = count
	candidate.LastContactDate = &now
	if candidate.Status == models.CandidateStatusActive && candidate.TotalAttempts >= candidate.MaxAttempts {
		candidate.Status = models.CandidateStatusMaxAttempts
	}
	if err := candidate.AppendHistory(models.CallHistoryEntry{
		CallSid:     callSid,
		InitiatedAt: attempt.InitiatedAt,
		Status:      twilioStatus,
		Outcome:     models.AttemptOutcomeInitiated,
	}); err != nil {
		log.Printf("Failed to append call history for %s: %v", candidate.CandidateID, err)
	}
	if err := t.store.UpdateCandidate(candidate); err != nil {
		log.Printf("Failed to update candidate %s after call placement: %v", candidate.CandidateID, err)
	}

	return attempt, nil
}
