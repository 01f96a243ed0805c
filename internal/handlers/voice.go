package handlers

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/twiml"

	"github.com/talentline/interview-caller-backend/internal/services"
)

// VoiceHandler handles Twilio voice webhook requests
type VoiceHandler struct {
	flow *services.CallFlowService
	base string // public webhook base URL for gather callbacks
}

// NewVoiceHandler creates a new voice webhook handler
func NewVoiceHandler(flow *services.CallFlowService, webhookBase string) *VoiceHandler {
	return &VoiceHandler{flow: flow, base: webhookBase}
}

// VoiceWebhookPayload represents the call-started callback from Twilio
type VoiceWebhookPayload struct {
	CallSid    string `form:"CallSid"`
	AccountSid string `form:"AccountSid"`
	From       string `form:"From"` // our Twilio number on outbound calls
	To         string `form:"To"`   // the candidate's number
	CallStatus string `form:"CallStatus"`
	Direction  string `form:"Direction"`
}

// SpeechWebhookPayload represents the speech-result callback from Twilio
type SpeechWebhookPayload struct {
	CallSid      string `form:"CallSid"`
	SpeechResult string `form:"SpeechResult"`
	Confidence   string `form:"Confidence"`
}

// HandleCallStart answers the call-started webhook with the greeting and an
// instruction to gather the candidate's first utterance.
func (h *VoiceHandler) HandleCallStart(c *fiber.Ctx) error {
	var payload VoiceWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing voice webhook: %v", err)
		return h.respondHangup(c, "Goodbye.")
	}

	// A callback without a call SID cannot be attached to a session;
	// answer with a minimal safe hangup and create nothing.
	if payload.CallSid == "" {
		log.Println("Voice webhook missing CallSid - hanging up")
		return h.respondHangup(c, "Goodbye.")
	}

	log.Printf("Call started: %s -> %s (status %s)", payload.CallSid, payload.To, payload.CallStatus)

	result := h.flow.ProcessCallStart(payload.CallSid, payload.To)
	if result.Hangup {
		return h.respondHangup(c, result.Say)
	}
	return h.respondGather(c, result.Say)
}

// HandleSpeechResult runs the full pipeline on one transcript and answers
// with either "speak and gather again" or "speak and hang up".
func (h *VoiceHandler) HandleSpeechResult(c *fiber.Ctx) error {
	var payload SpeechWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing speech webhook: %v", err)
		return h.respondHangup(c, "Goodbye.")
	}

	if payload.CallSid == "" {
		log.Println("Speech webhook missing CallSid - hanging up")
		return h.respondHangup(c, "Goodbye.")
	}

	// Twilio omits Confidence on some gathers; treat absent as fully trusted
	confidence := 1.0
	if payload.Confidence != "" {
		if parsed, err := strconv.ParseFloat(payload.Confidence, 64); err == nil {
			confidence = parsed
		}
	}

	log.Printf("Speech on call %s (confidence %.2f): %q", payload.CallSid, confidence, payload.SpeechResult)

	result := h.flow.ProcessSpeech(payload.CallSid, payload.SpeechResult, confidence)
	if result.Hangup {
		return h.respondHangup(c, result.Say)
	}
	return h.respondGather(c, result.Say)
}

// respondGather speaks the reply inside a speech gather so the next
// utterance comes back to the processing webhook.
func (h *VoiceHandler) respondGather(c *fiber.Ctx, say string) error {
	gather := &twiml.VoiceGather{
		Input:   "speech",
		Action:  h.base + "/webhook/voice/process",
		Method:  "POST",
		Timeout: "10",
		InnerElements: []twiml.Element{
			&twiml.VoiceSay{Message: say, Voice: "alice", Language: "en-IN"},
		},
	}
	// Spoken when the gather times out with no speech
	timeoutSay := &twiml.VoiceSay{
		Message:  "Thank you. We'll send you an email to follow up. Goodbye.",
		Voice:    "alice",
		Language: "en-IN",
	}

	return h.sendTwiml(c, []twiml.Element{gather, timeoutSay})
}

// respondHangup speaks a final line and ends the call
func (h *VoiceHandler) respondHangup(c *fiber.Ctx, say string) error {
	verbs := []twiml.Element{
		&twiml.VoiceSay{Message: say, Voice: "alice", Language: "en-IN"},
		&twiml.VoiceHangup{},
	}
	return h.sendTwiml(c, verbs)
}

func (h *VoiceHandler) sendTwiml(c *fiber.Ctx, verbs []twiml.Element) error {
	doc, err := twiml.Voice(verbs)
	if err != nil {
		log.Printf("Failed to render TwiML: %v", err)
		doc = `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup/></Response>`
	}
	c.Set(fiber.HeaderContentType, "application/xml")
	return c.SendString(doc)
}
