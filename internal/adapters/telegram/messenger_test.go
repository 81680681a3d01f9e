package telegram

import (
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-release-bot/internal/domain"
)

func TestClassifyFloodWait(t *testing.T) {
	src := &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 17",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 17},
	}

	err := classifyError(-100, "", src)

	var flood *domain.FloodWaitError
	if !errors.As(err, &flood) {
		t.Fatalf("ожидали FloodWaitError, получили %T: %v", err, err)
	}
	if flood.RetryAfter != 17*time.Second {
		t.Fatalf("ожидали паузу 17s, получили %v", flood.RetryAfter)
	}
}

func TestClassifyPermission(t *testing.T) {
	cases := []string{
		"Forbidden: bot is not a member of the channel chat",
		"Bad Request: not enough rights to send text messages to the chat",
		"Bad Request: CHAT_ADMIN_REQUIRED",
		"Bad Request: chat not found",
		"Forbidden: bot was kicked from the channel chat",
	}
	for _, msg := range cases {
		err := classifyError(-100, "", &tgbotapi.Error{Code: 400, Message: msg})

		var perm *domain.PermissionError
		if !errors.As(err, &perm) {
			t.Fatalf("%q: ожидали PermissionError, получили %T", msg, err)
		}
		if perm.ChatID != -100 {
			t.Fatalf("%q: в ошибке должен быть чат -100, получили %d", msg, perm.ChatID)
		}
	}
}

func TestClassifyRemoteContent(t *testing.T) {
	cases := []string{
		"Bad Request: failed to get HTTP URL content",
		"Bad Request: wrong file identifier/HTTP URL specified",
		"Bad Request: WEBPAGE_CURL_FAILED",
	}
	for _, msg := range cases {
		err := classifyError(-100, "https://posters.example/p.jpg", &tgbotapi.Error{Code: 400, Message: msg})

		var remote *domain.RemoteContentError
		if !errors.As(err, &remote) {
			t.Fatalf("%q: ожидали RemoteContentError, получили %T", msg, err)
		}
		if remote.URL != "https://posters.example/p.jpg" {
			t.Fatalf("%q: в ошибке должен быть URL контента, получили %q", msg, remote.URL)
		}
	}
}

func TestClassifyPassThrough(t *testing.T) {
	plain := errors.New("сеть недоступна")
	if got := classifyError(-100, "", plain); got != plain {
		t.Fatalf("не-Telegram ошибка должна проходить без изменений, получили %v", got)
	}

	unknown := &tgbotapi.Error{Code: 400, Message: "Bad Request: message is too long"}
	if got := classifyError(-100, "", unknown); got != error(unknown) {
		t.Fatalf("неопознанная ошибка Bot API должна проходить без изменений, получили %v", got)
	}
}
