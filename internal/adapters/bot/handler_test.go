package bot

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-release-bot/internal/domain"
)

type stubQueue struct {
	items []domain.QueueItem
}

func (q *stubQueue) Push(item domain.QueueItem) { q.items = append(q.items, item) }
func (q *stubQueue) Pop(ctx context.Context) (domain.QueueItem, error) {
	<-ctx.Done()
	return domain.QueueItem{}, ctx.Err()
}
func (q *stubQueue) Len() int { return len(q.items) }

type stubUsers struct {
	owners map[int64]int64
}

func (s *stubUsers) GetUser(context.Context, int64) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}

func (s *stubUsers) FindOwnerByArchiveChannel(_ context.Context, chatID int64) (int64, error) {
	if owner, ok := s.owners[chatID]; ok {
		return owner, nil
	}
	return 0, domain.ErrNotFound
}

func (s *stubUsers) RemoveChannelFromList(context.Context, int64, string, int64) error {
	return nil
}

type stubFiles struct {
	records map[string]domain.FileRecord
}

func (s *stubFiles) SaveFileRecord(context.Context, domain.FileRecord) error { return nil }

func (s *stubFiles) GetFileByUniqueID(_ context.Context, id string) (domain.FileRecord, error) {
	if rec, ok := s.records[id]; ok {
		return rec, nil
	}
	return domain.FileRecord{}, domain.ErrNotFound
}

type stubSettings struct {
	archive int64
}

func (s *stubSettings) GetArchiveChannel(context.Context) (int64, error) { return s.archive, nil }

type copyCall struct {
	toChatID   int64
	fromChatID int64
	messageID  int
}

type stubMessenger struct {
	copies   []copyCall
	messages []string
}

func (m *stubMessenger) CopyMessage(_ context.Context, to, from int64, messageID int) (int, error) {
	m.copies = append(m.copies, copyCall{toChatID: to, fromChatID: from, messageID: messageID})
	return 1, nil
}

func (m *stubMessenger) SendPhoto(context.Context, int64, string, string, []domain.FooterButton) error {
	return nil
}

func (m *stubMessenger) SendMessage(_ context.Context, _ int64, text string, _ []domain.FooterButton) error {
	m.messages = append(m.messages, text)
	return nil
}

type env struct {
	handler   *Handler
	queue     *stubQueue
	messenger *stubMessenger
}

func newEnv(adminID int64) *env {
	queue := &stubQueue{}
	messenger := &stubMessenger{}
	handler := NewHandler(
		zerolog.Nop(),
		queue,
		&stubUsers{owners: map[int64]int64{-100: 42}},
		&stubFiles{records: map[string]domain.FileRecord{
			"abc": {FileUniqueID: "abc", ArchiveChatID: -500, ArchiveMessageID: 7},
		}},
		&stubSettings{archive: -900},
		messenger,
		adminID,
	)
	return &env{handler: handler, queue: queue, messenger: messenger}
}

func channelPost(chatID int64, doc *tgbotapi.Document) tgbotapi.Update {
	return tgbotapi.Update{ChannelPost: &tgbotapi.Message{
		MessageID: 10,
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "channel"},
		Document:  doc,
	}}
}

func TestMediaFromKnownChannelQueued(t *testing.T) {
	e := newEnv(0)

	e.handler.HandleUpdate(context.Background(), channelPost(-100, &tgbotapi.Document{
		FileID:       "f1",
		FileUniqueID: "u1",
		FileName:     "Movie.2021.1080p.mkv",
		FileSize:     100,
	}))

	if len(e.queue.items) != 1 {
		t.Fatalf("файл должен попасть в очередь, элементов %d", len(e.queue.items))
	}
	item := e.queue.items[0]
	if item.OwnerID != 42 {
		t.Fatalf("владельцем должен быть хозяин канала, получили %d", item.OwnerID)
	}
	if item.File.FileName != "Movie.2021.1080p.mkv" || item.File.ChatID != -100 {
		t.Fatalf("координаты файла перенесены неверно: %+v", item.File)
	}
}

func TestMediaFromUnknownChannelIgnored(t *testing.T) {
	e := newEnv(0)

	e.handler.HandleUpdate(context.Background(), channelPost(-333, &tgbotapi.Document{
		FileID: "f1", FileUniqueID: "u1", FileName: "Movie.mkv",
	}))

	if len(e.queue.items) != 0 {
		t.Fatal("файл из незнакомого канала должен игнорироваться")
	}
}

func TestMediaFromGlobalArchiveGoesToAdmin(t *testing.T) {
	e := newEnv(7)

	e.handler.HandleUpdate(context.Background(), channelPost(-900, &tgbotapi.Document{
		FileID: "f1", FileUniqueID: "u1", FileName: "Movie.mkv",
	}))

	if len(e.queue.items) != 1 || e.queue.items[0].OwnerID != 7 {
		t.Fatalf("файл из общего архива должен уйти администратору: %+v", e.queue.items)
	}
}

func TestMediaWithoutFileNameSkipped(t *testing.T) {
	e := newEnv(0)

	e.handler.HandleUpdate(context.Background(), channelPost(-100, &tgbotapi.Document{
		FileID: "f1", FileUniqueID: "u1",
	}))

	if len(e.queue.items) != 0 {
		t.Fatal("медиа без имени файла не классифицируется и должно пропускаться")
	}
}

func privateCommand(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 11,
		Chat:      &tgbotapi.Chat{ID: 555, Type: "private"},
		Text:      text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len("/start")},
		},
	}}
}

func TestStartDeepLinkDeliversFile(t *testing.T) {
	e := newEnv(0)

	e.handler.HandleUpdate(context.Background(), privateCommand("/start get_abc"))

	if len(e.messenger.copies) != 1 {
		t.Fatalf("файл должен копироваться из архива, копий %d", len(e.messenger.copies))
	}
	c := e.messenger.copies[0]
	if c.toChatID != 555 || c.fromChatID != -500 || c.messageID != 7 {
		t.Fatalf("копия должна идти из архивной записи в чат пользователя: %+v", c)
	}
}

func TestStartDeepLinkUnknownFile(t *testing.T) {
	e := newEnv(0)

	e.handler.HandleUpdate(context.Background(), privateCommand("/start get_missing"))

	if len(e.messenger.copies) != 0 {
		t.Fatal("неизвестный файл не должен копироваться")
	}
	if len(e.messenger.messages) != 1 {
		t.Fatalf("пользователь должен получить ответ об отсутствии файла, сообщений %d", len(e.messenger.messages))
	}
}

func TestStartWithoutPayloadGreets(t *testing.T) {
	e := newEnv(0)

	e.handler.HandleUpdate(context.Background(), privateCommand("/start"))

	if len(e.messenger.messages) != 1 || e.messenger.messages[0] != welcomeText {
		t.Fatalf("ожидали приветствие, получили %v", e.messenger.messages)
	}
}

func TestDeepLinkURL(t *testing.T) {
	got := DeepLinkURL("testbot", "abc")
	if got != "https://t.me/testbot?start=get_abc" {
		t.Fatalf("неверная ссылка выдачи: %q", got)
	}
}
