package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const telegramDefaultTimeout = 10 * time.Second

type TelegramOptions struct {
	BotToken   string
	ChatID     string
	BaseURL    string
	HTTPClient *http.Client
}

// TelegramNotifier sends messages through the Telegram bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

type telegramSendMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func NewTelegramNotifier(opts TelegramOptions) (*TelegramNotifier, error) {
	if strings.TrimSpace(opts.BotToken) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if strings.TrimSpace(opts.ChatID) == "" {
		return nil, errors.New("telegram chat id is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: telegramDefaultTimeout}
	}
	return &TelegramNotifier{
		botToken: strings.TrimSpace(opts.BotToken),
		chatID:   strings.TrimSpace(opts.ChatID),
		baseURL:  baseURL,
		client:   client,
	}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, message string, severity Severity) error {
	var buf bytes.Buffer
	payload := telegramSendMessage{ChatID: t.chatID, Text: decorate(message, severity)}
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}
	return nil
}

func decorate(message string, severity Severity) string {
	switch severity {
	case SeveritySuccess:
		return "✅ " + message
	case SeverityError:
		return "❌ " + message
	default:
		return "ℹ️ " + message
	}
}

var _ Notifier = (*TelegramNotifier)(nil)
