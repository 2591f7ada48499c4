package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewTelegramNotifierValidation(t *testing.T) {
	if _, err := NewTelegramNotifier(TelegramOptions{ChatID: "1"}); err == nil {
		t.Fatal("expected error for missing bot token")
	}
	if _, err := NewTelegramNotifier(TelegramOptions{BotToken: "t"}); err == nil {
		t.Fatal("expected error for missing chat id")
	}
}

func TestNotifySendsDecoratedMessage(t *testing.T) {
	var gotPath string
	var captured telegramSendMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
	}))
	defer srv.Close()

	n, err := NewTelegramNotifier(TelegramOptions{BotToken: "token", ChatID: "42", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}
	if err := n.Notify(context.Background(), "run finished", SeveritySuccess); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotPath != "/bottoken/sendMessage" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if captured.ChatID != "42" {
		t.Fatalf("unexpected chat id %q", captured.ChatID)
	}
	if !strings.HasPrefix(captured.Text, "✅ ") || !strings.Contains(captured.Text, "run finished") {
		t.Fatalf("unexpected text %q", captured.Text)
	}
}

func TestNotifyErrorSeverityPrefix(t *testing.T) {
	if got := decorate("boom", SeverityError); got != "❌ boom" {
		t.Fatalf("decorate error = %q", got)
	}
	if got := decorate("note", SeverityInfo); got != "ℹ️ note" {
		t.Fatalf("decorate info = %q", got)
	}
}

func TestNotifyNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n, err := NewTelegramNotifier(TelegramOptions{BotToken: "token", ChatID: "42", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}
	if err := n.Notify(context.Background(), "x", SeverityInfo); err == nil {
		t.Fatal("expected error for 400 response")
	}
}
