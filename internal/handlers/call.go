package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/services"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

// CallHandler exposes the call-placement and candidate-status API
type CallHandler struct {
	store         storage.Store
	governor      *services.ContactGovernor
	twilioService *services.TwilioService
	sessions      *services.SessionManager
}

// NewCallHandler creates a new call API handler
func NewCallHandler(store storage.Store, governor *services.ContactGovernor, twilioService *services.TwilioService, sessions *services.SessionManager) *CallHandler {
	return &CallHandler{
		store:         store,
		governor:      governor,
		twilioService: twilioService,
		sessions:      sessions,
	}
}

// MakeCallRequest is the body of POST /api/calls
type MakeCallRequest struct {
	CandidateID string `json:"candidate_id"`
}

// MakeCall checks the contact governor and places an outbound call
func (h *CallHandler) MakeCall(c *fiber.Ctx) error {
	var req MakeCallRequest
	if err := c.BodyParser(&req); err != nil || req.CandidateID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status": "error",
			"error":  "candidate_id is required",
		})
	}

	allowed, attempts, reason := h.governor.CanCall(req.CandidateID)
	if !allowed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":         "denied",
			"candidate_id":   req.CandidateID,
			"total_attempts": attempts,
			"reason":         reason,
		})
	}

	candidate, err := h.store.GetCandidate(req.CandidateID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status": "error",
			"error":  "candidate not found",
		})
	}

	if h.twilioService == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "error",
			"error":  "telephony not configured",
		})
	}

	attempt, err := h.twilioService.PlaceCall(candidate)
	if err != nil {
		log.Printf("Call placement failed for %s: %v", candidate.CandidateID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status": "error",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status":      "success",
		"message":     "Call initiated to " + candidate.Phone,
		"call_sid":    attempt.CallSid,
		"call_status": attempt.TwilioStatus,
		"candidate": fiber.Map{
			"id":       candidate.CandidateID,
			"name":     candidate.Name,
			"phone":    candidate.Phone,
			"email":    candidate.Email,
			"position": candidate.Position,
			"company":  candidate.Company,
		},
		"call_tracking": fiber.Map{
			"total_attempts": candidate.TotalAttempts,
			"max_attempts":   candidate.MaxAttempts,
			"can_call_again": candidate.RemainingAttempts() > 0,
		},
	})
}

// CandidateStatus returns the comprehensive status for one candidate:
// identity, call tracking, scheduling and notification state, and a
// suggested next action.
func (h *CallHandler) CandidateStatus(c *fiber.Ctx) error {
	candidateID := c.Params("id")

	candidate, err := h.store.GetCandidate(candidateID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "candidate not found",
		})
	}

	allowed, attempts, reason := h.governor.CanCall(candidateID)

	scheduling := fiber.Map{
		"interview_status": "not_scheduled",
		"confirmed_slot":   nil,
		"scheduled_at":     nil,
		"email_status":     "not_sent",
		"email_sent_at":    nil,
		"recipient_email":  candidate.Email,
	}
	if candidate.Status == models.CandidateStatusInterviewScheduled {
		scheduling["interview_status"] = "scheduled"
		scheduling["confirmed_slot"] = candidate.ConfirmedSlot
		scheduling["scheduled_at"] = candidate.ScheduledAt
	}

	overall := overallStatus(candidate, allowed)

	return c.JSON(fiber.Map{
		"candidate_id": candidate.CandidateID,
		"candidate_info": fiber.Map{
			"name":     candidate.Name,
			"phone":    candidate.Phone,
			"email":    candidate.Email,
			"position": candidate.Position,
			"company":  candidate.Company,
		},
		"call_tracking": fiber.Map{
			"can_call":           allowed,
			"total_attempts":     attempts,
			"max_attempts":       candidate.MaxAttempts,
			"remaining_attempts": candidate.RemainingAttempts(),
			"status":             candidate.Status,
			"reason":             reason,
			"last_contact_date":  candidate.LastContactDate,
			"call_history":       candidate.History(),
		},
		"scheduling_status": scheduling,
		"overall_status":    overall,
	})
}

// overallStatus derives the summary block with a suggested next action
func overallStatus(candidate *models.Candidate, canCall bool) fiber.Map {
	switch {
	case candidate.Status == models.CandidateStatusInterviewScheduled:
		return fiber.Map{
			"status":      "interview_scheduled_confirmed",
			"message":     "Interview scheduled and confirmation requested",
			"priority":    "low",
			"next_action": "No action needed - await interview",
		}
	case candidate.TotalAttempts == 0:
		return fiber.Map{
			"status":      "not_contacted",
			"message":     "No contact attempts made yet",
			"priority":    "normal",
			"next_action": "Make initial call",
		}
	case !canCall:
		return fiber.Map{
			"status":      "max_attempts_reached",
			"message":     "Call attempts exhausted without a confirmed slot",
			"priority":    "high",
			"next_action": "Follow up by email",
		}
	default:
		return fiber.Map{
			"status":      "in_progress",
			"message":     "Contact attempts in progress",
			"priority":    "normal",
			"next_action": "Retry call",
		}
	}
}

// CreateCandidate seeds a candidate record
func (h *CallHandler) CreateCandidate(c *fiber.Ctx) error {
	var candidate models.Candidate
	if err := c.BodyParser(&candidate); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid candidate payload",
		})
	}
	if candidate.Name == "" || candidate.Phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and phone are required",
		})
	}

	created, err := h.store.CreateCandidate(&candidate)
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// ListCandidates returns all candidates
func (h *CallHandler) ListCandidates(c *fiber.Ctx) error {
	candidates, err := h.store.GetAllCandidates()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"count":      len(candidates),
		"candidates": candidates,
	})
}

// GetSession returns the stored conversation for one call SID
func (h *CallHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("callSid"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "session not found",
		})
	}
	return c.JSON(session)
}

// DeleteSession removes a conversation session. Sessions are never deleted
// automatically; this is the explicit external operation.
func (h *CallHandler) DeleteSession(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.Params("callSid")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "session not found",
		})
	}
	return c.JSON(fiber.Map{"deleted": true})
}
