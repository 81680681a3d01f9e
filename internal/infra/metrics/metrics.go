package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FilesQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "files_queued_total",
		Help: "Файлы, принятые в очередь обработки",
	})
	FilesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "files_processed_total",
		Help: "Файлы, скопированные в архив и распределённые по батчам",
	})
	FilesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "files_dropped_total",
		Help: "Файлы, отброшенные из-за незавершённой настройки владельца",
	})
	FilesRequeued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "files_requeued_total",
		Help: "Файлы, возвращённые в очередь (архивный канал не назначен)",
	})
	WorkerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_errors_total",
		Help: "Ошибки обработки файла в воркере",
	})

	BatchesOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "batches_opened_total",
		Help: "Открытые батчи (первая вставка по ключу)",
	})
	BatchesFlushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "batches_flushed_total",
		Help: "Батчи, собранные в пост после окна тишины",
	})
	BatchFlushSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_flush_seconds",
		Help:    "Время сборки и публикации батча",
		Buckets: prometheus.DefBuckets,
	})

	PostsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posts_published_total",
		Help: "Посты, отправленные в каналы публикации",
	}, []string{"outcome"})
	FloodWaits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flood_waits_total",
		Help: "Ограничения частоты от Telegram при публикации",
	})
	ChannelsRevoked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "channels_revoked_total",
		Help: "Каналы, удалённые из настроек из-за потери прав",
	})

	PosterLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "poster_lookups_total",
		Help: "Поиски постера по источникам и исходу",
	}, []string{"source", "status"})

	DBQuerySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_seconds",
		Help:    "Длительность запросов к Postgres",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FilesQueued,
		FilesProcessed,
		FilesDropped,
		FilesRequeued,
		WorkerErrors,
		BatchesOpened,
		BatchesFlushed,
		BatchFlushSeconds,
		PostsPublished,
		FloodWaits,
		ChannelsRevoked,
		PosterLookups,
		DBQuerySeconds,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveDBQuery записывает длительность запроса к БД.
func ObserveDBQuery(query string, start time.Time) {
	DBQuerySeconds.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

// ObservePosterLookup записывает исход обращения к источнику постеров.
func ObservePosterLookup(source string, err error) {
	status := "hit"
	if err != nil {
		status = "miss"
	}
	PosterLookups.WithLabelValues(source, status).Inc()
}
