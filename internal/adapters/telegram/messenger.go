package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-release-bot/internal/domain"
)

// Messenger реализует domain.Messenger поверх Bot API и приводит ошибки
// платформы к типизированным. Bot API не даёт машиночитаемой таксономии
// ошибок, поэтому классификация опирается на retry_after и текст.
type Messenger struct {
	api *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.Messenger = (*Messenger)(nil)

// NewMessenger создаёт адаптер.
func NewMessenger(api *tgbotapi.BotAPI, log zerolog.Logger) *Messenger {
	return &Messenger{api: api, log: log}
}

// CopyMessage копирует сообщение и возвращает id копии.
func (m *Messenger) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	res, err := m.api.CopyMessage(tgbotapi.NewCopyMessage(toChatID, fromChatID, messageID))
	if err != nil {
		return 0, classifyError(toChatID, "", err)
	}
	return res.MessageID, nil
}

// SendPhoto отправляет фото по URL с HTML-подписью.
func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, footer []domain.FooterButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	cfg.Caption = caption
	cfg.ParseMode = tgbotapi.ModeHTML
	if markup := footerMarkup(footer); markup != nil {
		cfg.ReplyMarkup = *markup
	}
	if _, err := m.api.Send(cfg); err != nil {
		return classifyError(chatID, photoURL, err)
	}
	return nil
}

// SendMessage отправляет текст с HTML-разметкой, разбивая его на части
// при превышении лимита Telegram. Клавиатура вешается на последнюю часть.
func (m *Messenger) SendMessage(ctx context.Context, chatID int64, text string, footer []domain.FooterButton) error {
	parts := SplitMessage(text)
	markup := footerMarkup(footer)
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := tgbotapi.NewMessage(chatID, part)
		cfg.ParseMode = tgbotapi.ModeHTML
		cfg.DisableWebPagePreview = true
		if markup != nil && i == len(parts)-1 {
			cfg.ReplyMarkup = *markup
		}
		if _, err := m.api.Send(cfg); err != nil {
			return classifyError(chatID, "", err)
		}
	}
	return nil
}

func footerMarkup(footer []domain.FooterButton) *tgbotapi.InlineKeyboardMarkup {
	if len(footer) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(footer))
	for _, btn := range footer {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(btn.Name, btn.URL)))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// Маркеры текстов ошибок Bot API по классам отказа.
var (
	permissionMarkers = []string{
		"not enough rights",
		"chat_admin_required",
		"bot is not a member",
		"bot was kicked",
		"bot is not a participant",
		"channel_private",
		"chat not found",
		"forbidden",
	}
	remoteContentMarkers = []string{
		"failed to get http url content",
		"wrong file identifier/http url specified",
		"wrong type of the web page content",
		"webpage_curl_failed",
		"webpage_media_empty",
	}
)

// classifyError переводит ошибку Bot API в типизированную доменную.
// Неопознанные ошибки возвращаются как есть.
func classifyError(chatID int64, contentURL string, err error) error {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return err
	}

	if tgErr.RetryAfter > 0 {
		return &domain.FloodWaitError{RetryAfter: time.Duration(tgErr.RetryAfter) * time.Second}
	}

	msg := strings.ToLower(tgErr.Message)
	for _, marker := range permissionMarkers {
		if strings.Contains(msg, marker) {
			return &domain.PermissionError{ChatID: chatID, Reason: tgErr.Message}
		}
	}
	for _, marker := range remoteContentMarkers {
		if strings.Contains(msg, marker) {
			return &domain.RemoteContentError{URL: contentURL, Reason: tgErr.Message}
		}
	}
	return err
}
