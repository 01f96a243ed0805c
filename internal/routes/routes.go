package routes

import (
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/talentline/interview-caller-backend/internal/handlers"
	"github.com/talentline/interview-caller-backend/internal/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, voiceHandler *handlers.VoiceHandler, callHandler *handlers.CallHandler) {

	// Liveness probe; /health in main.go additionally pings the database
	app.Get("/healthz", handlers.HealthCheck)

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		// Development: skip signature validation for ngrok tunnels
		webhooks.Post("/voice", voiceHandler.HandleCallStart)
		webhooks.Post("/voice/process", voiceHandler.HandleSpeechResult)
		if os.Getenv("ENVIRONMENT") == "development" {
			println("⚠️  Twilio webhook validation DISABLED for development")
		}
	} else {
		webhooks.Post("/voice", middleware.ValidateTwilioSignature(), voiceHandler.HandleCallStart)
		webhooks.Post("/voice/process", middleware.ValidateTwilioSignature(), voiceHandler.HandleSpeechResult)
	}

	// ========== API ROUTES ==========
	api := app.Group("/api")

	// Call placement (governor-gated)
	api.Post("/calls", callHandler.MakeCall)

	// Candidate management
	candidates := api.Group("/candidates")
	candidates.Post("/", callHandler.CreateCandidate)
	candidates.Get("/", callHandler.ListCandidates)
	candidates.Get("/:id/status", callHandler.CandidateStatus)

	// Conversation sessions (read + explicit delete only)
	sessions := api.Group("/sessions")
	sessions.Get("/:callSid", callHandler.GetSession)
	sessions.Delete("/:callSid", callHandler.DeleteSession)
}
