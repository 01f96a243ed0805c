package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/talentline/interview-caller-backend/database"
	"github.com/talentline/interview-caller-backend/internal/handlers"
	"github.com/talentline/interview-caller-backend/internal/jobs"
	"github.com/talentline/interview-caller-backend/internal/models"
	"github.com/talentline/interview-caller-backend/internal/routes"
	"github.com/talentline/interview-caller-backend/internal/services"
	"github.com/talentline/interview-caller-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		err := godotenv.Load(".env")
		if err != nil {
			err = godotenv.Load("environments/.env.development")
			if err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}

		log.Printf("🔍 TWILIO_ACCOUNT_SID exists: %v", os.Getenv("TWILIO_ACCOUNT_SID") != "")
		log.Printf("🔍 TWILIO_AUTH_TOKEN exists: %v", os.Getenv("TWILIO_AUTH_TOKEN") != "")
		log.Printf("🔍 WEBHOOK_BASE_URL: %s", os.Getenv("WEBHOOK_BASE_URL"))
	}

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		if err := database.Connect(); err != nil {
			log.Fatal(err)
		}

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Candidate{},
			&models.ConversationSession{},
			&models.CallAttempt{},
			&models.InterviewSchedule{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Initialize Twilio service (optional locally - webhooks still work)
	twilioService, err := services.NewTwilioService(store)
	if err != nil {
		log.Printf("⚠️  Twilio service not initialized: %v", err)
		log.Println("⚠️  Outbound calls disabled - webhook processing still available")
	} else {
		log.Println("✅ Twilio service initialized")
	}

	webhookBase := os.Getenv("WEBHOOK_BASE_URL")
	if webhookBase == "" {
		webhookBase = "http://localhost:8080"
	}

	// Conversation core
	catalog := services.NewSlotCatalog()
	emailService := services.NewEmailService()
	sessionManager := services.NewSessionManager(store)
	finalizer := services.NewSchedulingFinalizer(store, emailService)
	governor := services.NewContactGovernor(store)

	var responder services.ResponseGenerator = services.NewTemplateResponder(catalog)
	if llm := services.NewOpenAIResponder(catalog, responder); llm != nil {
		responder = llm
		log.Println("✅ LLM response generation enabled (with template fallback)")
	} else {
		log.Println("ℹ️  OPENAI_API_KEY not set - using template responses")
	}

	flowService := services.NewCallFlowService(store, sessionManager, catalog, finalizer, responder)

	// Background follow-up sweeps
	followUpJob := jobs.NewFollowUpJob(store, emailService)
	followUpJob.Start()

	log.Println("✅ All services initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Interview Caller Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Root endpoint with configuration overview
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Interview Caller Backend",
			"version": "1.0.0",
			"config": fiber.Map{
				"twilio_configured": twilioService != nil,
				"openai_configured": os.Getenv("OPENAI_API_KEY") != "",
				"smtp_configured":   os.Getenv("SMTP_HOST") != "",
				"webhook_url":       webhookBase,
				"storage":           getStorageType(),
				"interview_slots":   catalog.Slots(),
			},
			"endpoints": fiber.Map{
				"health":         "/health",
				"make_call":      "/api/calls",
				"candidates":     "/api/candidates",
				"voice_webhook":  "/webhook/voice",
				"speech_webhook": "/webhook/voice/process",
			},
		})
	})

	// Health check endpoint for monitoring
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "healthy"
		statusCode := 200

		if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
			sqlDB, err := database.DB.DB()
			if err != nil || sqlDB.Ping() != nil {
				status = "unhealthy"
				statusCode = 503
			}
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"services": fiber.Map{
				"database":        status == "healthy",
				"twilio":          twilioService != nil,
				"active_sessions": sessionManager.ActiveCount(),
			},
		})
	})

	// Setup routes
	voiceHandler := handlers.NewVoiceHandler(flowService, webhookBase)
	callHandler := handlers.NewCallHandler(store, governor, twilioService, sessionManager)
	routes.SetupRoutes(app, voiceHandler, callHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		log.Println("⏹️  Stopping follow-up job...")
		followUpJob.Stop()
		log.Println("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 Interview Caller Backend starting on port %s", port)
	log.Printf("📊 Storage: %s", getStorageType())
	log.Printf("📞 Telephony: %s", getTwilioStatus(twilioService))
	log.Printf("🗓  Slots: %d offered", len(catalog.Slots()))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

func getStorageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func getTwilioStatus(svc *services.TwilioService) string {
	if svc == nil {
		return "Not configured"
	}
	return "Configured"
}
