package domain

import (
	"context"
	"time"
)

// UserRepo управляет пользователями и их списками каналов.
type UserRepo interface {
	GetUser(ctx context.Context, tgUserID int64) (User, error)
	FindOwnerByArchiveChannel(ctx context.Context, chatID int64) (int64, error)
	RemoveChannelFromList(ctx context.Context, tgUserID int64, list string, chatID int64) error
}

// Списки каналов пользователя для RemoveChannelFromList.
const (
	ListPostChannels    = "post_channels"
	ListArchiveChannels = "archive_channels"
)

// FileRepo хранит записи о сохранённых файлах.
type FileRepo interface {
	SaveFileRecord(ctx context.Context, rec FileRecord) error
	GetFileByUniqueID(ctx context.Context, fileUniqueID string) (FileRecord, error)
}

// SettingsRepo хранит глобальные настройки бота.
type SettingsRepo interface {
	// GetArchiveChannel возвращает id общего архивного канала,
	// либо 0, если он ещё не назначен.
	GetArchiveChannel(ctx context.Context) (int64, error)
}

// Messenger — операции Telegram, необходимые конвейеру.
// Ошибки платформы приводятся к типизированным (FloodWaitError,
// PermissionError, RemoteContentError), остальное отдаётся как есть.
type Messenger interface {
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, footer []FooterButton) error
	SendMessage(ctx context.Context, chatID int64, text string, footer []FooterButton) error
}

// PosterProvider находит постер релиза. Тотальная операция: при любом
// исходе возвращает пригодный URL (в худшем случае — заглушку).
type PosterProvider interface {
	FetchPoster(ctx context.Context, title, year string) string
}

// IntakeQueue — очередь приёма файлов: много производителей, один
// потребитель. Push никогда не блокируется, Pop ждёт элемент или отмены
// контекста.
type IntakeQueue interface {
	Push(item QueueItem)
	Pop(ctx context.Context) (QueueItem, error)
	Len() int
}

// Composer собирает публикуемый пост из батча архивных копий.
// Возвращает nil без ошибки, если публиковать нечего (например, у
// владельца нет записи настроек).
type Composer interface {
	Compose(ctx context.Context, ownerID int64, copies []ArchiveCopy) (*ComposedPost, error)
}

// Publisher рассылает пост по каналам владельца. Ошибки отдельных
// каналов обрабатываются внутри и наружу не выходят.
type Publisher interface {
	Publish(ctx context.Context, ownerID int64, post ComposedPost)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
