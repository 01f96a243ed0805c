package services

import (
	"fmt"
	"log"
	"os"
	"strconv"

	gomail "gopkg.in/gomail.v2"

	"github.com/talentline/interview-caller-backend/internal/models"
)

// Notifier delivers interview confirmation messages. Every outcome is
// non-fatal to the caller: sent, failed and queued all leave the schedule in
// place.
type Notifier interface {
	SendInterviewConfirmation(candidate *models.Candidate, slot, callSid string) (string, error)
	SendSchedulingFollowUp(candidate *models.Candidate) (string, error)
}

// EmailService sends confirmation emails over SMTP
type EmailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailService builds the SMTP notifier from environment configuration.
// With no SMTP host configured, deliveries are queued for manual follow-up
// instead of failing.
func NewEmailService() *EmailService {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		log.Println("SMTP not configured - confirmation emails will be queued for manual follow-up")
		return &EmailService{}
	}

	port := 587
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			port = parsed
		}
	}

	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}

	return &EmailService{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

// SendInterviewConfirmation emails the confirmed slot to the candidate.
// Returns the notification outcome (sent/failed/queued) plus the underlying
// error for the failed case.
func (e *EmailService) SendInterviewConfirmation(candidate *models.Candidate, slot, callSid string) (string, error) {
	if candidate == nil || candidate.Email == "" {
		return models.NotificationQueued, nil
	}
	if e.dialer == nil {
		log.Printf("Email to %s queued (SMTP not configured)", candidate.Email)
		return models.NotificationQueued, nil
	}

	subject := fmt.Sprintf("Interview Confirmation - %s Position at %s", candidate.Position, candidate.Company)
	body := fmt.Sprintf(
		"Dear %s,\n\nYour interview for the %s position at %s is confirmed for %s.\n\nIf this time no longer works for you, reply to this email and we will reschedule.\n\nBest regards,\n%s Recruiting",
		candidate.Name, candidate.Position, candidate.Company, slot, candidate.Company)

	message := gomail.NewMessage()
	message.SetHeader("From", e.from)
	message.SetHeader("To", candidate.Email)
	message.SetHeader("Subject", subject)
	message.SetHeader("X-Call-Sid", callSid)
	message.SetBody("text/plain", body)

	if err := e.dialer.DialAndSend(message); err != nil {
		log.Printf("Failed to send confirmation email to %s: %v", candidate.Email, err)
		return models.NotificationFailed, err
	}

	log.Printf("Confirmation email sent to %s for %s", candidate.Email, slot)
	return models.NotificationSent, nil
}

// SendSchedulingFollowUp emails a candidate whose call attempts ran out
// without a confirmed slot, asking for their availability by reply.
func (e *EmailService) SendSchedulingFollowUp(candidate *models.Candidate) (string, error) {
	if candidate == nil || candidate.Email == "" {
		return models.NotificationQueued, nil
	}
	if e.dialer == nil {
		log.Printf("Follow-up email to %s queued (SMTP not configured)", candidate.Email)
		return models.NotificationQueued, nil
	}

	subject := fmt.Sprintf("Scheduling Your %s Interview at %s", candidate.Position, candidate.Company)
	body := fmt.Sprintf(
		"Dear %s,\n\nWe tried to reach you by phone to schedule your interview for the %s position at %s but couldn't connect.\n\nPlease reply to this email with a few times that work for you and we will confirm one.\n\nBest regards,\n%s Recruiting",
		candidate.Name, candidate.Position, candidate.Company, candidate.Company)

	message := gomail.NewMessage()
	message.SetHeader("From", e.from)
	message.SetHeader("To", candidate.Email)
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", body)

	if err := e.dialer.DialAndSend(message); err != nil {
		log.Printf("Failed to send follow-up email to %s: %v", candidate.Email, err)
		return models.NotificationFailed, err
	}

	log.Printf("Follow-up email sent to %s", candidate.Email)
	return models.NotificationSent, nil
}
