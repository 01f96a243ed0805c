package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

// MaxConversationTurns is the hard ceiling on turns per call. A session that
// passes it is forced to a terminal state to bound call duration and cost.
const MaxConversationTurns = 6

// DefaultSpeechConfidenceThreshold rejects transcripts the speech recognizer
// itself was unsure about, before any intent classification.
const DefaultSpeechConfidenceThreshold = 0.3

// PolicyResult is the policy's answer to one webhook: the line to speak and
// whether to hang up afterwards (otherwise gather the next utterance).
type PolicyResult struct {
	Say    string
	Hangup bool
}

// CallFlowService is the dialogue policy: given session state and a
// classified intent it produces the next spoken prompt and the next state.
// It never lets an error escape to the webhook boundary; every failure
// degrades to a coherent closing line.
type CallFlowService struct {
	store     storage.Store
	sessions  *SessionManager
	intents   *IntentClassifier
	catalog   *SlotCatalog
	finalizer *SchedulingFinalizer
	responder ResponseGenerator

	confidenceThreshold float64
}

// NewCallFlowService creates the dialogue policy service
func NewCallFlowService(
	store storage.Store,
	sessions *SessionManager,
	catalog *SlotCatalog,
	finalizer *SchedulingFinalizer,
	responder ResponseGenerator,
) *CallFlowService {
	threshold := DefaultSpeechConfidenceThreshold
	if raw := os.Getenv("SPEECH_CONFIDENCE_THRESHOLD"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed <= 1 {
			threshold = parsed
		}
	}

	return &CallFlowService{
		store:               store,
		sessions:            sessions,
		intents:             NewIntentClassifier(),
		catalog:             catalog,
		finalizer:           finalizer,
		responder:           responder,
		confidenceThreshold: threshold,
	}
}

// ProcessCallStart handles the call-started callback: create or resume the
// session and return the turn-1 greeting. Turn 1 is always synthetic; no
// candidate input exists yet.
func (s *CallFlowService) ProcessCallStart(callSid, phone string) (result PolicyResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Policy panic on call %s: %v", callSid, r)
			result = PolicyResult{Say: s.apologyLine(), Hangup: true}
		}
	}()

	candidateID := ""
	candidate, err := s.store.GetCandidateByPhone(phone)
	if err == nil {
		candidateID = candidate.CandidateID
	} else {
		// Unknown candidate: proceed with a degraded, information-free
		// session rather than aborting the call.
		log.Printf("No candidate on record for %s, continuing without details", phone)
	}

	session, err := s.sessions.GetOrCreate(callSid, phone, candidateID)
	if err != nil {
		return PolicyResult{Say: s.apologyLine(), Hangup: true}
	}

	// Retried delivery of the start webhook must not add a second turn 1
	if len(session.Turns) > 0 {
		return PolicyResult{Say: session.LastResponse()}
	}

	greeting := s.greetingLine(candidate)
	session.Stage = models.StageInitial
	s.sessions.AppendTurn(session, models.CallInitiatedMarker, greeting, "", 0)

	log.Printf("Call %s started for %s (turn 1)", callSid, phone)
	return PolicyResult{Say: greeting}
}

// ProcessSpeech handles a speech-result callback: classify the utterance,
// advance the state machine, enforce the turn cap and persist the turn.
func (s *CallFlowService) ProcessSpeech(callSid, transcript string, confidence float64) (result PolicyResult) {
	// Policy evaluation must never throw past the webhook boundary
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Policy panic on call %s: %v", callSid, r)
			result = PolicyResult{Say: s.apologyLine(), Hangup: true}
		}
	}()

	session, err := s.sessions.GetOrCreate(callSid, "", "")
	if err != nil {
		return PolicyResult{Say: s.apologyLine(), Hangup: true}
	}

	// Terminal states are sticky: do not re-run the policy, repeat the
	// closing line and hang up.
	if session.IsTerminal() {
		closing := session.LastResponse()
		if closing == "" {
			closing = s.goodbyeLine()
		}
		return PolicyResult{Say: closing, Hangup: true}
	}

	turnNumber := session.NextTurnNumber()
	candidate := s.resolveCandidate(session)

	var reply, intent, terminal string
	var score float64

	if s.unusableInput(transcript, confidence) {
		// The classifier is never invoked on unusable input; re-prompt
		// without advancing the stage. The turn still counts toward the cap.
		reply = "I'm sorry, I didn't catch that. Could you please repeat?"
	} else {
		intent, score = s.intents.Classify(transcript)
		reply, terminal = s.advance(session, candidate, transcript, intent, score, turnNumber)
	}

	// Hard cap, applied after every other rule and regardless of stage
	if terminal == "" && turnNumber > MaxConversationTurns {
		if session.ConfirmedSlot != "" {
			terminal = models.SessionStatusCompleted
			reply = fmt.Sprintf("Perfect! Your interview is confirmed for %s. Thank you, and have a great day!", session.ConfirmedSlot)
		} else {
			terminal = models.SessionStatusFailed
			reply = s.goodbyeLine()
		}
	}

	log.Printf("Call %s turn %d: intent=%s confidence=%.2f stage=%s", callSid, turnNumber, intent, score, session.Stage)
	s.sessions.AppendTurn(session, transcript, reply, intent, score)

	switch terminal {
	case models.SessionStatusCompleted:
		s.sessions.Complete(session)
		return PolicyResult{Say: reply, Hangup: true}
	case models.SessionStatusFailed:
		s.sessions.Fail(session)
		return PolicyResult{Say: reply, Hangup: true}
	}
	return PolicyResult{Say: reply}
}

// advance runs one state-machine step and returns the reply plus the
// terminal status to apply ("" when the session stays active).
func (s *CallFlowService) advance(
	session *models.ConversationSession,
	candidate *models.Candidate,
	transcript, intent string,
	confidence float64,
	turnNumber int,
) (string, string) {
	switch session.Stage {
	case models.StageGreeting, models.StageInitial:
		return s.advanceInitial(session, transcript, intent), ""
	case models.StageScheduling, models.StageClosing:
		return s.advanceScheduling(session, candidate, transcript, intent, confidence, turnNumber)
	default:
		// Unknown stage from an old record: re-establish availability
		session.Stage = models.StageInitial
		s.sessions.Update(session)
		return s.availabilityQuestion(), ""
	}
}

// advanceInitial establishes availability before any slot negotiation
func (s *CallFlowService) advanceInitial(session *models.ConversationSession, transcript, intent string) string {
	lower := strings.ToLower(transcript)

	switch {
	case intent == IntentConfirmation || strings.Contains(lower, "yes") || strings.Contains(lower, "available"):
		session.Stage = models.StageScheduling
		s.sessions.Update(session)
		return fmt.Sprintf("Great! I have these slots available: %s. Which one works best for you?", s.catalog.List())

	case intent == IntentRejection:
		// Offer the asynchronous fallback and hold; the candidate can still
		// change their mind before the turn cap ends the call.
		if !session.FallbackOffered {
			session.FallbackOffered = true
			s.sessions.Update(session)
		}
		return "No problem. We can follow up by email with available times instead. Or if you have a moment now, I can offer you a few slots."

	default:
		return s.availabilityQuestion()
	}
}

// advanceScheduling negotiates a specific slot
func (s *CallFlowService) advanceScheduling(
	session *models.ConversationSession,
	candidate *models.Candidate,
	transcript, intent string,
	confidence float64,
	turnNumber int,
) (string, string) {
	switch {
	case intent == IntentConfirmation && confidence > 0.6:
		if slot := s.catalog.FindSlot(transcript); slot != "" {
			return s.commitSlot(session, slot), models.SessionStatusCompleted
		}
		return fmt.Sprintf("Just to confirm, which slot works for you: %s?", s.catalog.List()), ""

	case s.intents.MentionsWeekday(transcript):
		// A directly named weekday is as good as a confirmed match
		if slot := s.catalog.FindSlot(transcript); slot != "" {
			return s.commitSlot(session, slot), models.SessionStatusCompleted
		}
		return fmt.Sprintf("I don't have that day available. The open slots are %s. Would any of these work?", s.catalog.List()), ""

	case intent == IntentRejection:
		// Candidate interactions exclude the synthetic greeting turn
		if turnNumber-1 >= 3 {
			return s.goodbyeLine(), models.SessionStatusFailed
		}
		return fmt.Sprintf("I understand. We also have %s. Would any of these work instead?", s.catalog.List()), ""

	default:
		if turnNumber < 5 {
			return s.genericPrompt(candidate, session, transcript), ""
		}
		// Wrapping up: keep the ask concrete so the last turns can still land
		if session.Stage != models.StageClosing {
			session.Stage = models.StageClosing
			s.sessions.Update(session)
		}
		return fmt.Sprintf("I have these slots available: %s. Please say confirm and the time you prefer.", s.catalog.List()), ""
	}
}

// commitSlot records the confirmed slot on the session and runs the
// scheduling finalizer exactly once per call.
func (s *CallFlowService) commitSlot(session *models.ConversationSession, slot string) string {
	s.sessions.ConfirmSlot(session, slot)
	outcome := s.finalizer.Finalize(session.CandidateID, session.CallSid, session.Phone, session.ConfirmedSlot)
	log.Printf("Slot committed on call %s: %q (email %s)", session.CallSid, outcome.Slot, outcome.EmailStatus)
	return fmt.Sprintf("Perfect! Your interview is confirmed for %s. Thank you, and have a great day!", session.ConfirmedSlot)
}

// genericPrompt delegates wording to the response generator with a bounded
// deterministic fallback, favoring a fast canned reply over blocking on a
// slow optional dependency.
func (s *CallFlowService) genericPrompt(candidate *models.Candidate, session *models.ConversationSession, transcript string) string {
	if s.responder == nil {
		return s.fallbackPrompt()
	}
	reply, err := s.responder.Reply(context.Background(), candidate, session, transcript)
	if err != nil || strings.TrimSpace(reply) == "" {
		return s.fallbackPrompt()
	}
	return reply
}

func (s *CallFlowService) resolveCandidate(session *models.ConversationSession) *models.Candidate {
	if session.CandidateID != "" {
		if candidate, err := s.store.GetCandidate(session.CandidateID); err == nil {
			return candidate
		}
	}
	if session.Phone != "" {
		if candidate, err := s.store.GetCandidateByPhone(session.Phone); err == nil {
			return candidate
		}
	}
	return nil
}

func (s *CallFlowService) unusableInput(transcript string, confidence float64) bool {
	return strings.TrimSpace(transcript) == "" || confidence < s.confidenceThreshold
}

func (s *CallFlowService) greetingLine(candidate *models.Candidate) string {
	if candidate == nil {
		return "Hello! I'm calling regarding your upcoming interview. Are you available to discuss timing?"
	}
	return fmt.Sprintf("Hello %s! I'm calling from %s regarding your %s interview. Are you available to discuss timing?",
		candidate.Name, candidate.Company, candidate.Position)
}

func (s *CallFlowService) availabilityQuestion() string {
	return "Are you available to discuss your interview timing? A simple yes or no is fine."
}

func (s *CallFlowService) fallbackPrompt() string {
	return fmt.Sprintf("Thank you. Are you available for an interview on %s? Please say confirm if yes.", s.catalog.First())
}

func (s *CallFlowService) goodbyeLine() string {
	return "Thank you for your time. We'll follow up by email to find a time that works. Goodbye!"
}

func (s *CallFlowService) apologyLine() string {
	return "I'm sorry, something went wrong on our end. We'll follow up by email. Goodbye."
}
