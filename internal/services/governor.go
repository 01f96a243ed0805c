package services

import (
	"fmt"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

// ContactGovernor decides, per candidate, whether another call attempt is
// permitted. It only reads: the attempt count comes from the call-attempt
// ledger and is incremented elsewhere, when a call is actually placed.
type ContactGovernor struct {
	store storage.Store
}

// NewContactGovernor creates a new contact governor
func NewContactGovernor(store storage.Store) *ContactGovernor {
	return &ContactGovernor{store: store}
}

// CanCall reports whether the candidate may be called again, together with
// the attempts already made and a human-readable reason when denied.
func (g *ContactGovernor) CanCall(candidateID string) (bool, int, string) {
	candidate, err := g.store.GetCandidate(candidateID)
	if err != nil {
		return false, 0, fmt.Sprintf("candidate lookup failed: %v", err)
	}

	attempts, err := g.store.CountCallAttempts(candidateID)
	if err != nil {
		// The candidate document carries a copy of the counter; fall back to
		// it rather than blocking the call on a ledger read failure.
		attempts = candidate.TotalAttempts
	}

	// A scheduled interview ends the negotiation regardless of attempt count
	if candidate.Status == models.CandidateStatusInterviewScheduled {
		return false, attempts, "interview already scheduled"
	}

	maxAttempts := candidate.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxCallAttempts
	}
	if attempts >= maxAttempts {
		return false, attempts, fmt.Sprintf("maximum attempts reached (%d of %d)", attempts, maxAttempts)
	}

	return true, attempts, ""
}
