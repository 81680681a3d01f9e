package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	MetricsPort int `envconfig:"METRICS_PORT" default:"9090"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
		AdminID    int64  `envconfig:"TG_ADMIN_ID"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	// Batch задаёт политику конвейера приёма. Значения по умолчанию
	// подобраны под лимиты Telegram, но остаются настраиваемыми.
	Batch struct {
		// FlushDelay — окно тишины: сколько ждать новых файлов релиза
		// перед сборкой поста.
		FlushDelay time.Duration `envconfig:"BATCH_FLUSH_DELAY" default:"10s"`
		// ItemDelay — пауза между обработкой файлов очереди.
		ItemDelay time.Duration `envconfig:"BATCH_ITEM_DELAY" default:"2s"`
		// ArchiveRetryBackoff — пауза перед повтором, если общий
		// архивный канал ещё не назначен.
		ArchiveRetryBackoff time.Duration `envconfig:"ARCHIVE_RETRY_BACKOFF" default:"60s"`
	} `envconfig:""`

	Publish struct {
		// SendDelay — пауза между успешными отправками в разные каналы.
		SendDelay time.Duration `envconfig:"PUBLISH_SEND_DELAY" default:"3s"`
	} `envconfig:""`

	Poster struct {
		CacheTTL time.Duration `envconfig:"POSTER_CACHE_TTL" default:"24h"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
