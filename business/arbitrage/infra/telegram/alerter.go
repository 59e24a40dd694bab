// Package telegram sends engine alerts through the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/arb-engine/business/arbitrage/app"
	"github.com/fd1az/arb-engine/internal/apperror"
	"github.com/fd1az/arb-engine/internal/httpclient"
)

const apiBase = "https://api.telegram.org"

// Alerter posts alert messages to a Telegram chat.
type Alerter struct {
	client httpclient.Client
	token  string
	chatID string
}

// NewAlerter creates a Telegram alerter for the given bot token and chat.
func NewAlerter(token, chatID string) (*Alerter, error) {
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("telegram"),
		httpclient.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("creating telegram client: %w", err)
	}
	return &Alerter{
		client: client,
		token:  token,
		chatID: chatID,
	}, nil
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send posts the message to the configured chat. Urgent alerts are prefixed
// so they stand out in the chat history.
func (a *Alerter) Send(ctx context.Context, level app.AlertLevel, message string) error {
	text := message
	if level == app.AlertUrgent {
		text = "🚨 URGENT: " + message
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", apiBase, a.token)
	resp, err := a.client.NewRequest().
		SetBody(sendMessageRequest{ChatID: a.chatID, Text: text}).
		Post(ctx, url)
	if err != nil {
		return apperror.External(apperror.CodeExternalServiceError, "telegram sendMessage", err)
	}
	if resp.IsError() {
		return apperror.New(apperror.CodeExternalServiceError,
			apperror.WithMessage(fmt.Sprintf("telegram sendMessage returned status %d", resp.StatusCode)))
	}
	return nil
}
