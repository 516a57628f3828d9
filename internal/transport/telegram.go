package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/nvoskov/outreach-bot/internal/models"
)

// TelegramTransport talks to the Telegram Bot API. Receive is driven
// by the caller via offset-based GetUpdates, so the poll loop stays in
// control of when events are fetched.
type TelegramTransport struct {
	token   string
	account string
	logger  *zap.Logger

	api    *tgbotapi.BotAPI
	offset int
}

func NewTelegramTransport(token string, logger *zap.Logger) *TelegramTransport {
	return &TelegramTransport{
		token:  token,
		logger: logger,
	}
}

func (t *TelegramTransport) Platform() string { return "telegram" }

func (t *TelegramTransport) Account() string {
	if t.account != "" {
		return t.account
	}
	return "telegram-bot"
}

func (t *TelegramTransport) Authenticate(ctx context.Context) error {
	api, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	t.api = api
	t.account = api.Self.UserName
	t.logger.Info("Telegram bot authenticated", zap.String("username", t.account))
	return nil
}

func (t *TelegramTransport) Send(ctx context.Context, recipientID, text string) (SendResult, error) {
	if t.api == nil {
		return SendResult{}, fmt.Errorf("not authenticated: %w", ErrAuthExpired)
	}

	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return SendResult{}, fmt.Errorf("invalid telegram recipient %q: %w", recipientID, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	sent, err := t.api.Send(msg)
	if err != nil {
		return SendResult{}, t.classify(fmt.Errorf("failed to send message to %s: %w", recipientID, err))
	}

	return SendResult{MessageID: strconv.Itoa(sent.MessageID)}, nil
}

func (t *TelegramTransport) Receive(ctx context.Context) ([]InboundMessage, error) {
	if t.api == nil {
		return nil, fmt.Errorf("not authenticated: %w", ErrAuthExpired)
	}

	u := tgbotapi.NewUpdate(t.offset)
	u.Timeout = 0

	updates, err := t.api.GetUpdates(u)
	if err != nil {
		return nil, t.classify(fmt.Errorf("failed to get updates: %w", err))
	}

	var messages []InboundMessage
	for _, update := range updates {
		if update.UpdateID >= t.offset {
			t.offset = update.UpdateID + 1
		}
		m := update.Message
		if m == nil || m.Text == "" || m.IsCommand() || m.From == nil {
			continue
		}
		messages = append(messages, InboundMessage{
			MessageID: strconv.Itoa(m.MessageID),
			ThreadID:  strconv.FormatInt(m.Chat.ID, 10),
			UserID:    strconv.FormatInt(m.From.ID, 10),
			Text:      m.Text,
			Timestamp: time.Unix(int64(m.Date), 0),
		})
	}

	return messages, nil
}

// AcceptPending is a no-op: Telegram has no pending-request inbox.
func (t *TelegramTransport) AcceptPending(ctx context.Context) (int, error) {
	return 0, nil
}

func (t *TelegramTransport) UserInfo(ctx context.Context, userID string) (models.UserProfile, error) {
	if t.api == nil {
		return models.UserProfile{}, fmt.Errorf("not authenticated: %w", ErrAuthExpired)
	}

	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("invalid telegram user id %q: %w", userID, err)
	}

	chat, err := t.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return models.UserProfile{}, t.classify(fmt.Errorf("failed to get chat %s: %w", userID, err))
	}

	return models.UserProfile{
		Username:  chat.UserName,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
	}, nil
}

// classify maps Telegram API failures onto the transport error
// taxonomy so the session guard can recognize revoked tokens.
func (t *TelegramTransport) classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 401 {
		return fmt.Errorf("%v: %w", err, ErrAuthExpired)
	}
	if strings.Contains(err.Error(), "Unauthorized") {
		return fmt.Errorf("%v: %w", err, ErrAuthExpired)
	}
	return err
}
