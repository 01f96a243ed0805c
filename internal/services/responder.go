package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/talentline/interview-caller-backend/internal/models"
)

// ResponseGenerator produces the free-text reply for turns the state machine
// has no specific answer for. Implementations must return quickly; the
// telephony provider hangs up if we stall.
type ResponseGenerator interface {
	Reply(ctx context.Context, candidate *models.Candidate, session *models.ConversationSession, utterance string) (string, error)
}

// TemplateResponder is the deterministic generator. Always available, used
// as the contract implementation in tests and as the fallback for the
// LLM-backed one.
type TemplateResponder struct {
	catalog *SlotCatalog
}

// NewTemplateResponder creates the deterministic responder
func NewTemplateResponder(catalog *SlotCatalog) *TemplateResponder {
	return &TemplateResponder{catalog: catalog}
}

func (t *TemplateResponder) Reply(ctx context.Context, candidate *models.Candidate, session *models.ConversationSession, utterance string) (string, error) {
	return fmt.Sprintf("Thank you. Are you available for an interview on %s? Please say confirm if yes.", t.catalog.First()), nil
}

// OpenAIResponder generates replies with a chat model, bounded in time, and
// degrades to the deterministic responder on any error or timeout.
type OpenAIResponder struct {
	client   *openai.Client
	fallback ResponseGenerator
	catalog  *SlotCatalog
	timeout  time.Duration
}

// NewOpenAIResponder returns the LLM-backed responder, or nil when no API
// key is configured (callers should then use the template responder).
func NewOpenAIResponder(catalog *SlotCatalog, fallback ResponseGenerator) *OpenAIResponder {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil
	}
	return &OpenAIResponder{
		client:   openai.NewClient(apiKey),
		fallback: fallback,
		catalog:  catalog,
		timeout:  3 * time.Second,
	}
}

func (o *OpenAIResponder) Reply(ctx context.Context, candidate *models.Candidate, session *models.ConversationSession, utterance string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	name, position, company := "the candidate", "the open", "our company"
	if candidate != nil {
		name, position, company = candidate.Name, candidate.Position, candidate.Company
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     openai.GPT4oMini,
		MaxTokens: 50,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(
					"You are a professional recruiter scheduling an interview for %s for a %s position at %s. Be direct and professional. Available slots: %s. Ask them to confirm a specific slot.",
					name, position, company, o.catalog.List()),
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(
					"Candidate response: '%s'. Respond in under 20 words. Focus on getting them to confirm a specific time slot.",
					utterance),
			},
		},
	})
	if err != nil {
		log.Printf("AI generation failed, using template fallback: %v", err)
		return o.fallback.Reply(ctx, candidate, session, utterance)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return o.fallback.Reply(ctx, candidate, session, utterance)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
