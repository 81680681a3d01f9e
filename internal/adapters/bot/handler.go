package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-release-bot/internal/domain"
	"tg-release-bot/internal/infra/metrics"
)

const deepLinkPrefix = "get_"

const welcomeText = "Привет! Пришли мне ссылку вида t.me/...?start=get_... из поста с релизом, " +
	"и я отправлю тебе файл."

// Handler обслуживает вебхук бота: приём медиа из архивных каналов и
// выдачу файлов по deep-link команде /start.
type Handler struct {
	log       zerolog.Logger
	queue     domain.IntakeQueue
	users     domain.UserRepo
	files     domain.FileRepo
	settings  domain.SettingsRepo
	messenger domain.Messenger
	adminID   int64
}

// NewHandler создаёт обработчик. adminID получает файлы из общего
// архивного канала, у которого нет персонального владельца.
func NewHandler(log zerolog.Logger, queue domain.IntakeQueue, users domain.UserRepo, files domain.FileRepo, settings domain.SettingsRepo, messenger domain.Messenger, adminID int64) *Handler {
	return &Handler{
		log:       log,
		queue:     queue,
		users:     users,
		files:     files,
		settings:  settings,
		messenger: messenger,
		adminID:   adminID,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.ChannelPost != nil:
		h.handleMedia(ctx, upd.ChannelPost)
	case upd.Message != nil:
		if upd.Message.Chat != nil && upd.Message.Chat.IsPrivate() {
			h.handlePrivate(ctx, upd.Message)
			return
		}
		// Медиа из групп обрабатываем так же, как посты каналов.
		h.handleMedia(ctx, upd.Message)
	}
}

// handleMedia ставит файл из архивного канала в очередь обработки.
// Сообщения без файла и сообщения из незнакомых чатов игнорируются.
func (h *Handler) handleMedia(ctx context.Context, msg *tgbotapi.Message) {
	file, ok := extractFile(msg)
	if !ok {
		return
	}
	if file.FileName == "" {
		h.log.Debug().Int64("chat", msg.Chat.ID).Int("message", msg.MessageID).Msg("медиа без имени файла, пропускаем")
		return
	}

	ownerID, err := h.resolveOwner(ctx, msg.Chat.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("не удалось определить владельца канала")
		return
	}

	h.queue.Push(domain.QueueItem{File: file, OwnerID: ownerID})
	metrics.FilesQueued.Inc()
	h.log.Info().Int64("owner", ownerID).Int64("chat", msg.Chat.ID).Str("file", file.FileName).Msg("файл принят в очередь")
}

// resolveOwner находит владельца канала-источника. Общий архивный канал
// принадлежит администратору бота.
func (h *Handler) resolveOwner(ctx context.Context, chatID int64) (int64, error) {
	ownerID, err := h.users.FindOwnerByArchiveChannel(ctx, chatID)
	if err == nil {
		return ownerID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	if h.adminID != 0 {
		archiveID, settingsErr := h.settings.GetArchiveChannel(ctx)
		if settingsErr != nil {
			return 0, settingsErr
		}
		if archiveID != 0 && archiveID == chatID {
			return h.adminID, nil
		}
	}
	return 0, domain.ErrNotFound
}

func (h *Handler) handlePrivate(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}
	switch msg.Command() {
	case "start":
		payload := strings.TrimSpace(msg.CommandArguments())
		if strings.HasPrefix(payload, deepLinkPrefix) {
			h.deliverFile(ctx, msg.Chat.ID, strings.TrimPrefix(payload, deepLinkPrefix))
			return
		}
		h.reply(ctx, msg.Chat.ID, welcomeText)
	case "help":
		h.reply(ctx, msg.Chat.ID, welcomeText)
	}
}

// deliverFile копирует архивную копию файла в чат пользователя.
func (h *Handler) deliverFile(ctx context.Context, chatID int64, fileUniqueID string) {
	rec, err := h.files.GetFileByUniqueID(ctx, fileUniqueID)
	if errors.Is(err, domain.ErrNotFound) {
		h.reply(ctx, chatID, "Файл не найден. Возможно, пост устарел.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("file", fileUniqueID).Msg("не удалось найти файл для выдачи")
		h.reply(ctx, chatID, "Не получилось отправить файл, попробуйте позже.")
		return
	}

	if _, err := h.messenger.CopyMessage(ctx, chatID, rec.ArchiveChatID, rec.ArchiveMessageID); err != nil {
		h.log.Error().Err(err).Str("file", fileUniqueID).Int64("chat", chatID).Msg("не удалось выдать файл")
		h.reply(ctx, chatID, "Не получилось отправить файл, попробуйте позже.")
		return
	}
	h.log.Info().Str("file", fileUniqueID).Int64("chat", chatID).Msg("файл выдан по deep link")
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	if err := h.messenger.SendMessage(ctx, chatID, text, nil); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить ответ")
	}
}

// extractFile достаёт описание файла из сообщения с документом, видео
// или аудио.
func extractFile(msg *tgbotapi.Message) (domain.InboundFile, bool) {
	base := domain.InboundFile{ChatID: msg.Chat.ID, MessageID: msg.MessageID}
	switch {
	case msg.Document != nil:
		base.FileID = msg.Document.FileID
		base.FileUniqueID = msg.Document.FileUniqueID
		base.FileName = msg.Document.FileName
		base.FileSize = int64(msg.Document.FileSize)
	case msg.Video != nil:
		base.FileID = msg.Video.FileID
		base.FileUniqueID = msg.Video.FileUniqueID
		base.FileName = msg.Video.FileName
		base.FileSize = int64(msg.Video.FileSize)
	case msg.Audio != nil:
		base.FileID = msg.Audio.FileID
		base.FileUniqueID = msg.Audio.FileUniqueID
		base.FileName = msg.Audio.FileName
		base.FileSize = int64(msg.Audio.FileSize)
	default:
		return domain.InboundFile{}, false
	}
	return base, true
}

// DeepLinkURL строит ссылку выдачи файла для публичных постов.
func DeepLinkURL(botUsername, fileUniqueID string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%s", botUsername, deepLinkPrefix, fileUniqueID)
}
