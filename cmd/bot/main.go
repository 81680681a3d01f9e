package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-release-bot/internal/adapters/bot"
	"tg-release-bot/internal/adapters/poster"
	"tg-release-bot/internal/adapters/repo"
	"tg-release-bot/internal/adapters/telegram"
	"tg-release-bot/internal/infra/cache"
	"tg-release-bot/internal/infra/config"
	"tg-release-bot/internal/infra/db"
	"tg-release-bot/internal/infra/log"
	"tg-release-bot/internal/infra/metrics"
	"tg-release-bot/internal/infra/queue"
	"tg-release-bot/internal/usecase/compose"
	"tg-release-bot/internal/usecase/ingest"
	"tg-release-bot/internal/usecase/publish"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.MetricsPort))

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	appCache := cache.NewRedis(redisClient)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	logger.Info().Str("username", botAPI.Self.UserName).Msg("бот авторизован")

	repoAdapter := repo.NewPostgres(pool)
	messenger := telegram.NewMessenger(botAPI, logger)
	posterProvider := poster.NewIMDb(appCache, cfg.Poster.CacheTTL, logger)
	intake := queue.NewMemory()

	composer := compose.NewService(repoAdapter, posterProvider, botAPI.Self.UserName, logger)
	publisher := publish.NewService(repoAdapter, messenger, logger, cfg.Publish.SendDelay)
	worker := ingest.NewService(
		intake,
		repoAdapter,
		repoAdapter,
		repoAdapter,
		messenger,
		appCache,
		composer,
		publisher,
		logger,
		ingest.Options{
			FlushDelay:     cfg.Batch.FlushDelay,
			ItemDelay:      cfg.Batch.ItemDelay,
			ArchiveBackoff: cfg.Batch.ArchiveRetryBackoff,
		},
	)

	h := bot.NewHandler(logger, intake, repoAdapter, repoAdapter, repoAdapter, messenger, cfg.Telegram.AdminID)

	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("некорректный URL вебхука")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось установить вебхук")
		}
	}

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, req *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(req.Context(), update)
		w.WriteHeader(http.StatusOK)
	})
	// Публичная ссылка на файл: редирект в чат с ботом с deep link.
	r.Get("/get/{fileUniqueID}", func(w http.ResponseWriter, req *http.Request) {
		fileUniqueID := chi.URLParam(req, "fileUniqueID")
		if fileUniqueID == "" {
			http.NotFound(w, req)
			return
		}
		http.Redirect(w, req, bot.DeepLinkURL(botAPI.Self.UserName, fileUniqueID), http.StatusFound)
	})

	go func() {
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("воркер приёма остановился с ошибкой")
		}
	}()

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("бот запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
