package domain

import "time"

// ReleaseKind различает фильм и сериал.
type ReleaseKind string

const (
	// KindMovie — одиночный фильм.
	KindMovie ReleaseKind = "movie"
	// KindSeries — сериал (найден сезон и/или эпизод).
	KindSeries ReleaseKind = "series"
)

// ReleaseMeta — структурированные сведения, извлечённые из имени файла.
// Пересчитывается заново для каждого имени, собственной идентичности не имеет.
type ReleaseMeta struct {
	OriginalName string
	CleanTitle   string
	Year         string
	Kind         ReleaseKind
	Season       int
	Episode      int
	Resolution   string
	Quality      string
	Source       string
	Audio        []string
}

// User описывает пользователя бота и его настройки публикации.
type User struct {
	ID              int64
	TGUserID        int64
	ArchiveChannels []int64
	PostChannels    []int64
	FooterButtons   []FooterButton
	ShowPoster      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Configured сообщает, завершил ли пользователь первичную настройку.
func (u User) Configured() bool {
	return len(u.ArchiveChannels) > 0 && len(u.PostChannels) > 0
}

// FooterButton — кнопка-ссылка под постом.
type FooterButton struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// InboundFile описывает входящее медиа-сообщение из архивного канала.
type InboundFile struct {
	ChatID       int64
	MessageID    int
	FileID       string
	FileUniqueID string
	FileName     string
	FileSize     int64
}

// QueueItem — единица очереди приёма: файл и его владелец.
type QueueItem struct {
	File    InboundFile
	OwnerID int64
}

// ArchiveCopy — ссылка на копию файла в архивном канале бота.
type ArchiveCopy struct {
	ChatID       int64
	MessageID    int
	FileUniqueID string
	FileName     string
}

// FileRecord — запись о сохранённом файле.
type FileRecord struct {
	OwnerID          int64
	FileUniqueID     string
	FileName         string
	FileSize         int64
	SourceChatID     int64
	SourceMessageID  int
	ArchiveChatID    int64
	ArchiveMessageID int
	CreatedAt        time.Time
}

// ComposedPost — готовый к публикации пост. Живёт один цикл публикации,
// нигде не сохраняется.
type ComposedPost struct {
	PosterURL string
	Caption   string
	Footer    []FooterButton
}
