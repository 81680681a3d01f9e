package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-release-bot/internal/domain"
	"tg-release-bot/internal/infra/metrics"
	"tg-release-bot/internal/usecase/release"
)

const guidanceTTL = 24 * time.Hour

const guidanceText = "Привет! Чтобы бот публиковал посты, сначала настройте " +
	"архивный канал и канал публикации командой /start."

// Options — политика конвейера приёма.
type Options struct {
	// FlushDelay — окно тишины перед сборкой батча.
	FlushDelay time.Duration
	// ItemDelay — пауза между файлами, чтобы не упереться в лимиты.
	ItemDelay time.Duration
	// ArchiveBackoff — пауза перед повтором, пока общий архивный канал
	// не назначен.
	ArchiveBackoff time.Duration
}

// Service — воркер обработки файлов: единственный потребитель очереди
// приёма. Копирует файлы в архив, сохраняет записи и раскладывает копии
// по батчам; первая вставка по ключу планирует отложенный сброс.
type Service struct {
	queue     domain.IntakeQueue
	users     domain.UserRepo
	files     domain.FileRepo
	settings  domain.SettingsRepo
	messenger domain.Messenger
	cache     domain.Cache
	composer  domain.Composer
	publisher domain.Publisher
	registry  *Registry
	log       zerolog.Logger
	opts      Options

	archiveChatID atomic.Int64
}

// NewService создаёт воркер.
func NewService(
	queue domain.IntakeQueue,
	users domain.UserRepo,
	files domain.FileRepo,
	settings domain.SettingsRepo,
	messenger domain.Messenger,
	cache domain.Cache,
	composer domain.Composer,
	publisher domain.Publisher,
	log zerolog.Logger,
	opts Options,
) *Service {
	return &Service{
		queue:     queue,
		users:     users,
		files:     files,
		settings:  settings,
		messenger: messenger,
		cache:     cache,
		composer:  composer,
		publisher: publisher,
		registry:  NewRegistry(),
		log:       log,
		opts:      opts,
	}
}

// Run запускает цикл воркера. Ошибка отдельного файла логируется и не
// останавливает цикл; выходим только по отмене контекста.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info().Msg("воркер обработки файлов запущен")
	for {
		item, err := s.queue.Pop(ctx)
		if err != nil {
			s.log.Info().Msg("воркер остановлен")
			return err
		}
		if err := s.processItem(ctx, item); err != nil {
			metrics.WorkerErrors.Inc()
			s.log.Error().Err(err).
				Int64("owner", item.OwnerID).
				Str("file", item.File.FileName).
				Msg("ошибка обработки файла")
			continue
		}
		sleepCtx(ctx, s.opts.ItemDelay)
	}
}

func (s *Service) processItem(ctx context.Context, item domain.QueueItem) error {
	user, err := s.users.GetUser(ctx, item.OwnerID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("получение пользователя: %w", err)
	}
	if errors.Is(err, domain.ErrNotFound) || !user.Configured() {
		// Повтор не исправит незавершённую настройку: файл отбрасываем,
		// владельцу отправляем подсказку (не чаще раза в сутки).
		metrics.FilesDropped.Inc()
		s.log.Warn().Int64("owner", item.OwnerID).Msg("настройка не завершена, файл отброшен")
		s.sendGuidance(ctx, item.OwnerID)
		return nil
	}

	archive := s.archiveChannel(ctx)
	if archive == 0 {
		// Архивный канал рано или поздно назначат: возвращаем файл в
		// хвост очереди и пережидаем.
		metrics.FilesRequeued.Inc()
		s.log.Error().Msg("общий архивный канал не назначен, файл возвращён в очередь")
		s.queue.Push(item)
		sleepCtx(ctx, s.opts.ArchiveBackoff)
		return nil
	}

	copiedID, err := s.messenger.CopyMessage(ctx, archive, item.File.ChatID, item.File.MessageID)
	if err != nil {
		return fmt.Errorf("копирование в архив: %w", err)
	}

	rec := domain.FileRecord{
		OwnerID:          item.OwnerID,
		FileUniqueID:     item.File.FileUniqueID,
		FileName:         item.File.FileName,
		FileSize:         item.File.FileSize,
		SourceChatID:     item.File.ChatID,
		SourceMessageID:  item.File.MessageID,
		ArchiveChatID:    archive,
		ArchiveMessageID: copiedID,
	}
	if err := s.files.SaveFileRecord(ctx, rec); err != nil {
		return fmt.Errorf("сохранение записи файла: %w", err)
	}

	key := release.BatchKey(item.File.FileName)
	archived := domain.ArchiveCopy{
		ChatID:       archive,
		MessageID:    copiedID,
		FileUniqueID: item.File.FileUniqueID,
		FileName:     item.File.FileName,
	}
	if s.registry.Insert(item.OwnerID, key, archived) == FirstInsert {
		metrics.BatchesOpened.Inc()
		s.log.Info().Int64("owner", item.OwnerID).Str("key", key).Msg("открыт новый батч")
		go s.flushAfter(ctx, item.OwnerID, key)
	}

	metrics.FilesProcessed.Inc()
	return nil
}

// flushAfter — планировщик сброса: одна горутина на открытый батч,
// завершается после единственного прогона.
func (s *Service) flushAfter(ctx context.Context, ownerID int64, key string) {
	log := s.log.With().
		Str("job", uuid.NewString()).
		Int64("owner", ownerID).
		Str("key", key).
		Logger()

	select {
	case <-ctx.Done():
		// Процесс останавливается: несброшенные батчи теряются вместе
		// с памятью. Принятое ограничение.
		return
	case <-time.After(s.opts.FlushDelay):
	}

	start := time.Now()
	copies := s.registry.Drain(ownerID, key)
	if len(copies) == 0 {
		return
	}
	metrics.BatchesFlushed.Inc()

	user, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		log.Error().Err(err).Msg("сброс батча: не удалось получить пользователя")
		return
	}
	if len(user.PostChannels) == 0 {
		log.Warn().Msg("сброс батча: у владельца не осталось каналов публикации")
		return
	}

	post, err := s.composer.Compose(ctx, ownerID, copies)
	if err != nil {
		log.Error().Err(err).Msg("сброс батча: ошибка сборки поста")
		return
	}
	if post == nil || post.Caption == "" {
		return
	}

	s.publisher.Publish(ctx, ownerID, *post)
	metrics.BatchFlushSeconds.Observe(time.Since(start).Seconds())
	log.Info().Int("files", len(copies)).Msg("батч опубликован")
}

// archiveChannel возвращает id общего архивного канала, кэшируя первое
// успешное разрешение.
func (s *Service) archiveChannel(ctx context.Context) int64 {
	if id := s.archiveChatID.Load(); id != 0 {
		return id
	}
	id, err := s.settings.GetArchiveChannel(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("не удалось получить архивный канал")
		return 0
	}
	if id != 0 {
		s.archiveChatID.Store(id)
	}
	return id
}

func (s *Service) sendGuidance(ctx context.Context, ownerID int64) {
	send := func() error {
		return s.messenger.SendMessage(ctx, ownerID, guidanceText, nil)
	}
	var err error
	if s.cache != nil {
		err = s.cache.Once(fmt.Sprintf("guidance:%d", ownerID), guidanceTTL, send)
	} else {
		err = send()
	}
	if err != nil {
		s.log.Error().Err(err).Int64("owner", ownerID).Msg("не удалось отправить подсказку по настройке")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
