package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nvoskov/outreach-bot/internal/models"
)

// Generator produces one reply for a bounded conversation context.
// Implementations are stateless per call; the caller supplies the full
// context every time.
type Generator interface {
	Generate(ctx context.Context, turns []models.ContextTurn, styleHint, clientName string) (string, error)
}

// DefaultSystemPrompt steers the dialogue style when no prompt is
// configured.
const DefaultSystemPrompt = "Ты профессиональный менеджер по продажам. Веди диалог естественно, " +
	"используй эмодзи, задавай открытые вопросы. Твоя цель - понять потребности клиента " +
	"и предложить подходящее решение. Будь дружелюбным и профессиональным. " +
	"Не пиши длинные сообщения - максимум 2-3 предложения."

// OpenAIGenerator generates replies with the OpenAI chat completion API.
type OpenAIGenerator struct {
	client       *openai.Client
	model        string
	maxTokens    int
	temperature  float64
	systemPrompt string
	logger       *zap.Logger
}

func NewOpenAIGenerator(apiKey, model string, maxTokens int, temperature float64, systemPrompt string, logger *zap.Logger) *OpenAIGenerator {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &OpenAIGenerator{
		client:       openai.NewClient(apiKey),
		model:        model,
		maxTokens:    maxTokens,
		temperature:  temperature,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, turns []models.ContextTurn, styleHint, clientName string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: g.systemMessage(styleHint, clientName),
	})
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:            g.model,
			Messages:         messages,
			MaxTokens:        g.maxTokens,
			Temperature:      float32(g.temperature),
			TopP:             0.95,
			FrequencyPenalty: 0.5,
			PresencePenalty:  0.5,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("completion returned empty text")
	}

	g.logger.Debug("Generated reply",
		zap.String("model", g.model),
		zap.Int("context_turns", len(turns)),
		zap.Int("reply_length", len(reply)))

	return reply, nil
}

func (g *OpenAIGenerator) systemMessage(styleHint, clientName string) string {
	var b strings.Builder
	b.WriteString(g.systemPrompt)
	if styleHint != "" {
		b.WriteString(" ")
		b.WriteString(styleHint)
	}
	if clientName != "" {
		fmt.Fprintf(&b, " Клиента зовут %s.", clientName)
	}
	return b.String()
}
