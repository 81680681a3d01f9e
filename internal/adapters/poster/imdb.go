// Package poster находит обложки релизов через подсказки IMDb.
package poster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-release-bot/internal/domain"
	"tg-release-bot/internal/infra/metrics"
)

const (
	placeholderBase = "https://via.placeholder.com/500x750/0d0d0d/FFFFFF.png"
	defaultBaseURL  = "https://v3.sg.media-imdb.com"
)

// IMDb ищет постер через suggestion API IMDb и кэширует результат.
// Тотальный провайдер: любая ошибка деградирует до URL-заглушки с
// названием релиза, наружу ошибки не выходят.
type IMDb struct {
	client  *http.Client
	baseURL string
	cache   domain.Cache
	ttl     time.Duration
	log     zerolog.Logger
}

var _ domain.PosterProvider = (*IMDb)(nil)

// NewIMDb создаёт провайдера. Кэш может быть nil.
func NewIMDb(cache domain.Cache, ttl time.Duration, log zerolog.Logger) *IMDb {
	return &IMDb{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
		cache:   cache,
		ttl:     ttl,
		log:     log,
	}
}

// FetchPoster возвращает URL постера для названия и года. Сначала ищет
// точный запрос «название год», затем только название.
func (p *IMDb) FetchPoster(ctx context.Context, title, year string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return placeholder("Release")
	}

	cacheKey := fmt.Sprintf("poster:%s:%s", strings.ToLower(title), year)
	if p.cache != nil {
		if cached, err := p.cache.Get(cacheKey); err == nil && len(cached) > 0 {
			metrics.PosterLookups.WithLabelValues("cache", "hit").Inc()
			return string(cached)
		}
	}

	queries := []string{title}
	if year != "" {
		queries = []string{title + " " + year, title}
	}
	for _, query := range queries {
		posterURL, err := p.suggest(ctx, query)
		metrics.ObservePosterLookup("imdb", err)
		if err != nil {
			p.log.Debug().Err(err).Str("query", query).Msg("постер: запрос к IMDb не дал результата")
			continue
		}
		if p.cache != nil {
			if err := p.cache.Set(cacheKey, []byte(posterURL), p.ttl); err != nil {
				p.log.Warn().Err(err).Msg("постер: не удалось записать в кэш")
			}
		}
		return posterURL
	}
	return placeholder(title)
}

type suggestResponse struct {
	D []struct {
		I struct {
			ImageURL string `json:"imageUrl"`
		} `json:"i"`
	} `json:"d"`
}

func (p *IMDb) suggest(ctx context.Context, query string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return "", fmt.Errorf("пустой запрос")
	}

	endpoint := fmt.Sprintf("%s/suggestion/%c/%s.json",
		p.baseURL, normalized[0], url.PathEscape(normalized))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imdb ответил %d", resp.StatusCode)
	}

	var parsed suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	for _, item := range parsed.D {
		if item.I.ImageURL != "" {
			return item.I.ImageURL, nil
		}
	}
	return "", fmt.Errorf("нет результатов с постером")
}

func placeholder(title string) string {
	return placeholderBase + "?text=" + url.QueryEscape(title)
}
