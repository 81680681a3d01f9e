package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-release-bot/internal/domain"
	"tg-release-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo     = (*Postgres)(nil)
	_ domain.FileRepo     = (*Postgres)(nil)
	_ domain.SettingsRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 5*time.Second)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetUser возвращает пользователя со списками каналов и кнопками футера.
func (p *Postgres) GetUser(ctx context.Context, tgUserID int64) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	defer metrics.ObserveDBQuery("users_get", start)

	var (
		user       domain.User
		footerJSON []byte
	)
	err := p.pool.QueryRow(ctx, `
SELECT id, tg_user_id, show_poster, COALESCE(footer_buttons, '[]'::jsonb), created_at, updated_at
FROM users
WHERE tg_user_id = $1
`, tgUserID).Scan(&user.ID, &user.TGUserID, &user.ShowPoster, &footerJSON, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("выборка пользователя: %w", err)
	}

	if len(footerJSON) > 0 {
		if err := json.Unmarshal(footerJSON, &user.FooterButtons); err != nil {
			return domain.User{}, fmt.Errorf("кнопки футера: %w", err)
		}
	}

	rows, err := p.pool.Query(ctx, `
SELECT chat_id, kind
FROM user_channels
WHERE user_id = $1
ORDER BY added_at, chat_id
`, user.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("выборка каналов: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			chatID int64
			kind   string
		)
		if err := rows.Scan(&chatID, &kind); err != nil {
			return domain.User{}, fmt.Errorf("строка канала: %w", err)
		}
		switch kind {
		case domain.ListArchiveChannels:
			user.ArchiveChannels = append(user.ArchiveChannels, chatID)
		case domain.ListPostChannels:
			user.PostChannels = append(user.PostChannels, chatID)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.User{}, fmt.Errorf("обход каналов: %w", err)
	}
	return user, nil
}

// FindOwnerByArchiveChannel возвращает tg id владельца архивного канала.
func (p *Postgres) FindOwnerByArchiveChannel(ctx context.Context, chatID int64) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	defer metrics.ObserveDBQuery("users_find_owner", start)

	var tgUserID int64
	err := p.pool.QueryRow(ctx, `
SELECT u.tg_user_id
FROM user_channels uc
JOIN users u ON u.id = uc.user_id
WHERE uc.chat_id = $1 AND uc.kind = $2
LIMIT 1
`, chatID, domain.ListArchiveChannels).Scan(&tgUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("поиск владельца канала: %w", err)
	}
	return tgUserID, nil
}

// RemoveChannelFromList удаляет канал из списка пользователя.
func (p *Postgres) RemoveChannelFromList(ctx context.Context, tgUserID int64, list string, chatID int64) error {
	if list != domain.ListPostChannels && list != domain.ListArchiveChannels {
		return fmt.Errorf("неизвестный список каналов %q", list)
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	defer metrics.ObserveDBQuery("users_remove_channel", start)

	_, err := p.pool.Exec(ctx, `
DELETE FROM user_channels uc
USING users u
WHERE u.id = uc.user_id AND u.tg_user_id = $1 AND uc.kind = $2 AND uc.chat_id = $3
`, tgUserID, list, chatID)
	if err != nil {
		return fmt.Errorf("удаление канала из списка: %w", err)
	}
	return nil
}

// SaveFileRecord сохраняет запись о файле. Повторная доставка того же
// файла перезаписывает координаты архивной копии.
func (p *Postgres) SaveFileRecord(ctx context.Context, rec domain.FileRecord) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	defer metrics.ObserveDBQuery("files_save", start)

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := p.pool.Exec(ctx, `
INSERT INTO files (file_unique_id, owner_id, file_name, file_size, source_chat_id, source_message_id, archive_chat_id, archive_message_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (file_unique_id) DO UPDATE SET
	owner_id = EXCLUDED.owner_id,
	file_name = EXCLUDED.file_name,
	file_size = EXCLUDED.file_size,
	source_chat_id = EXCLUDED.source_chat_id,
	source_message_id = EXCLUDED.source_message_id,
	archive_chat_id = EXCLUDED.archive_chat_id,
	archive_message_id = EXCLUDED.archive_message_id
`, rec.FileUniqueID, rec.OwnerID, rec.FileName, rec.FileSize,
		rec.SourceChatID, rec.SourceMessageID, rec.ArchiveChatID, rec.ArchiveMessageID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("сохранение файла: %w", err)
	}
	return nil
}

// GetFileByUniqueID возвращает запись о файле по его file_unique_id.
func (p *Postgres) GetFileByUniqueID(ctx context.Context, fileUniqueID string) (domain.FileRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	defer metrics.ObserveDBQuery("files_get", start)

	var rec domain.FileRecord
	err := p.pool.QueryRow(ctx, `
SELECT file_unique_id, owner_id, file_name, file_size, source_chat_id, source_message_id, archive_chat_id, archive_message_id, created_at
FROM files
WHERE file_unique_id = $1
`, fileUniqueID).Scan(&rec.FileUniqueID, &rec.OwnerID, &rec.FileName, &rec.FileSize,
		&rec.SourceChatID, &rec.SourceMessageID, &rec.ArchiveChatID, &rec.ArchiveMessageID, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.FileRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.FileRecord{}, fmt.Errorf("выборка файла: %w", err)
	}
	return rec, nil
}

const settingArchiveChannel = "archive_channel_id"

// GetArchiveChannel возвращает id общего архивного канала или 0, если
// он не назначен.
func (p *Postgres) GetArchiveChannel(ctx context.Context) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	defer metrics.ObserveDBQuery("settings_archive_channel", start)

	var chatID int64
	err := p.pool.QueryRow(ctx, `
SELECT value::bigint
FROM bot_settings
WHERE key = $1
`, settingArchiveChannel).Scan(&chatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("чтение настройки архивного канала: %w", err)
	}
	return chatID, nil
}
