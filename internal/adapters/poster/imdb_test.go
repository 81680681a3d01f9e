package poster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-release-bot/internal/domain"
)

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{items: map[string][]byte{}}
}

func (c *memCache) Once(_ string, _ time.Duration, fn func() error) error { return fn() }

func (c *memCache) Set(key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *memCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.items[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func newTestProvider(t *testing.T, handler http.HandlerFunc, cache domain.Cache) (*IMDb, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewIMDb(cache, time.Hour, zerolog.Nop())
	p.baseURL = srv.URL
	p.client = srv.Client()
	return p, srv
}

func TestFetchPosterFromSuggestions(t *testing.T) {
	requests := 0
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if !strings.HasPrefix(r.URL.Path, "/suggestion/") {
			t.Errorf("неожиданный путь %s", r.URL.Path)
		}
		w.Write([]byte(`{"d":[{"i":{"imageUrl":"https://m.media-amazon.com/poster.jpg"}}]}`))
	}, nil)

	got := p.FetchPoster(context.Background(), "Movie Name", "2021")
	if got != "https://m.media-amazon.com/poster.jpg" {
		t.Fatalf("ожидали URL из ответа IMDb, получили %q", got)
	}
	if requests != 1 {
		t.Fatalf("первый запрос должен дать результат, запросов %d", requests)
	}
}

func TestFetchPosterFallsBackToTitleOnly(t *testing.T) {
	var queries []string
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Path)
		if strings.Contains(r.URL.Path, "2021") {
			w.Write([]byte(`{"d":[]}`))
			return
		}
		w.Write([]byte(`{"d":[{"i":{"imageUrl":"https://m.media-amazon.com/poster.jpg"}}]}`))
	}, nil)

	got := p.FetchPoster(context.Background(), "Movie Name", "2021")
	if got != "https://m.media-amazon.com/poster.jpg" {
		t.Fatalf("ожидали результат по запросу без года, получили %q", got)
	}
	if len(queries) != 2 {
		t.Fatalf("ожидали запрос с годом и без, запросов %d", len(queries))
	}
}

func TestFetchPosterPlaceholderOnFailure(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	got := p.FetchPoster(context.Background(), "Movie Name", "2021")
	if !strings.HasPrefix(got, placeholderBase) {
		t.Fatalf("при недоступном источнике нужна заглушка, получили %q", got)
	}
	if !strings.Contains(got, "Movie+Name") {
		t.Fatalf("заглушка должна содержать название: %q", got)
	}
}

func TestFetchPosterUsesCache(t *testing.T) {
	requests := 0
	cache := newMemCache()
	p, _ := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.Write([]byte(`{"d":[{"i":{"imageUrl":"https://m.media-amazon.com/poster.jpg"}}]}`))
	}, cache)

	first := p.FetchPoster(context.Background(), "Movie Name", "2021")
	second := p.FetchPoster(context.Background(), "movie name", "2021")

	if first != second {
		t.Fatalf("повторный запрос должен отдаваться из кэша: %q != %q", first, second)
	}
	if requests != 1 {
		t.Fatalf("второй запрос не должен ходить в сеть, запросов %d", requests)
	}
}
