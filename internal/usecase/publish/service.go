package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-release-bot/internal/domain"
	"tg-release-bot/internal/infra/metrics"
)

// Service рассылает собранный пост по каналам публикации владельца.
// Ошибка в одном канале никогда не мешает остальным: каждый класс
// отказа обрабатывается на месте.
type Service struct {
	users     domain.UserRepo
	messenger domain.Messenger
	log       zerolog.Logger
	sendDelay time.Duration

	// sleep подменяется в тестах.
	sleep func(ctx context.Context, d time.Duration)
}

var _ domain.Publisher = (*Service)(nil)

// NewService создаёт публикатор.
func NewService(users domain.UserRepo, messenger domain.Messenger, log zerolog.Logger, sendDelay time.Duration) *Service {
	return &Service{
		users:     users,
		messenger: messenger,
		log:       log,
		sendDelay: sendDelay,
		sleep:     sleepCtx,
	}
}

// Publish отправляет пост во все каналы владельца. Работает со снимком
// списка: удаление канала по ходу цикла не ломает итерацию.
func (s *Service) Publish(ctx context.Context, ownerID int64, post domain.ComposedPost) {
	user, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		s.log.Error().Err(err).Int64("owner", ownerID).Msg("публикация: не удалось получить пользователя")
		return
	}

	channels := append([]int64(nil), user.PostChannels...)
	for _, chatID := range channels {
		if ctx.Err() != nil {
			return
		}
		if s.publishToChannel(ctx, ownerID, chatID, post) {
			s.sleep(ctx, s.sendDelay)
		}
	}
}

// publishToChannel возвращает true при успешной доставке в канал.
func (s *Service) publishToChannel(ctx context.Context, ownerID, chatID int64, post domain.ComposedPost) bool {
	err := s.send(ctx, chatID, post)
	if err == nil {
		metrics.PostsPublished.WithLabelValues("ok").Inc()
		return true
	}

	var flood *domain.FloodWaitError
	if errors.As(err, &flood) {
		// Платформа сообщила, сколько ждать: ждём и повторяем ровно
		// один раз. Повторный отказ уходит в общий путь.
		metrics.FloodWaits.Inc()
		s.log.Warn().Int64("chat", chatID).Dur("wait", flood.RetryAfter).Msg("flood wait, повтор после паузы")
		s.sleep(ctx, flood.RetryAfter)
		err = s.send(ctx, chatID, post)
		if err == nil {
			metrics.PostsPublished.WithLabelValues("ok_retry").Inc()
			return true
		}
	}

	var perm *domain.PermissionError
	if errors.As(err, &perm) {
		// Права не вернутся сами: канал убираем из настроек и ставим
		// владельца в известность.
		metrics.ChannelsRevoked.Inc()
		s.log.Error().Int64("owner", ownerID).Int64("chat", chatID).Str("reason", perm.Reason).Msg("нет прав в канале, канал удалён из настроек")
		if err := s.users.RemoveChannelFromList(ctx, ownerID, domain.ListPostChannels, chatID); err != nil {
			s.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось удалить канал из настроек")
		}
		s.notify(ctx, ownerID, fmt.Sprintf(
			"⚠️ Автопостинг отключён для канала %d: бот не админ или канал приватный. Канал удалён из настроек.", chatID))
		return false
	}

	var remote *domain.RemoteContentError
	if errors.As(err, &remote) && post.PosterURL != "" {
		// Постер не загрузился на стороне Telegram: деградируем до
		// текста и считаем доставку успешной.
		s.log.Warn().Int64("chat", chatID).Str("url", remote.URL).Msg("постер недоступен, отправляем текстом")
		if err := s.messenger.SendMessage(ctx, chatID, post.Caption, post.Footer); err == nil {
			metrics.PostsPublished.WithLabelValues("ok_text_fallback").Inc()
			return true
		}
	}

	metrics.PostsPublished.WithLabelValues("error").Inc()
	s.log.Error().Err(err).Int64("owner", ownerID).Int64("chat", chatID).Msg("не удалось опубликовать пост")
	s.notify(ctx, ownerID, fmt.Sprintf("Ошибка публикации в канал %d: %v", chatID, err))
	return false
}

func (s *Service) send(ctx context.Context, chatID int64, post domain.ComposedPost) error {
	if post.PosterURL != "" {
		return s.messenger.SendPhoto(ctx, chatID, post.PosterURL, post.Caption, post.Footer)
	}
	return s.messenger.SendMessage(ctx, chatID, post.Caption, post.Footer)
}

func (s *Service) notify(ctx context.Context, ownerID int64, text string) {
	if err := s.messenger.SendMessage(ctx, ownerID, text, nil); err != nil {
		s.log.Error().Err(err).Int64("owner", ownerID).Msg("не удалось отправить уведомление владельцу")
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
