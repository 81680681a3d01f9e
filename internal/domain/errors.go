package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound возвращается репозиториями, когда запись отсутствует.
var ErrNotFound = errors.New("запись не найдена")

// FloodWaitError — платформа попросила подождать перед повтором.
type FloodWaitError struct {
	RetryAfter time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: повтор через %s", e.RetryAfter)
}

// PermissionError — у бота нет прав в чате: не админ, канал приватный
// или бот не участник. Для канала это терминальная ошибка.
type PermissionError struct {
	ChatID int64
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("нет прав в чате %d: %s", e.ChatID, e.Reason)
}

// RemoteContentError — платформа не смогла загрузить контент по URL
// (например, постер). Отправитель может деградировать до текста.
type RemoteContentError struct {
	URL    string
	Reason string
}

func (e *RemoteContentError) Error() string {
	return fmt.Sprintf("не удалось получить контент %q: %s", e.URL, e.Reason)
}
