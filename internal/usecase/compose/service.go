package compose

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"tg-release-bot/internal/domain"
	"tg-release-bot/internal/usecase/release"
)

// Service собирает пост из батча архивных копий: постер, подпись со
// ссылками и клавиатуру-футер.
type Service struct {
	users       domain.UserRepo
	poster      domain.PosterProvider
	botUsername string
	log         zerolog.Logger
}

var _ domain.Composer = (*Service)(nil)

// NewService создаёт сборщик постов.
func NewService(users domain.UserRepo, poster domain.PosterProvider, botUsername string, log zerolog.Logger) *Service {
	return &Service{users: users, poster: poster, botUsername: botUsername, log: log}
}

type entry struct {
	label  string
	link   string
	season int
}

// Compose строит пост. Возвращает nil без ошибки, если у владельца нет
// записи настроек.
func (s *Service) Compose(ctx context.Context, ownerID int64, copies []domain.ArchiveCopy) (*domain.ComposedPost, error) {
	user, err := s.users.GetUser(ctx, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	if len(copies) == 0 {
		return nil, nil
	}

	// Естественная сортировка по исходным именам, чтобы эпизоды шли в
	// человеческом порядке.
	sorted := append([]domain.ArchiveCopy(nil), copies...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return naturalLess(sorted[i].FileName, sorted[j].FileName)
	})

	metas := make([]domain.ReleaseMeta, len(sorted))
	for i, c := range sorted {
		metas[i] = release.Classify(c.FileName)
	}

	// Первый файл задаёт каноническое название и год всего поста.
	base := metas[0]

	seasonSet := make(map[int]struct{})
	isSeries := false
	for _, m := range metas {
		if m.Kind == domain.KindSeries {
			isSeries = true
		}
		if m.Season > 0 {
			seasonSet[m.Season] = struct{}{}
		}
	}
	seasons := make([]int, 0, len(seasonSet))
	for season := range seasonSet {
		seasons = append(seasons, season)
	}
	sort.Ints(seasons)
	if !isSeries {
		seasons = nil
	}
	multiSeason := len(seasons) > 1

	var posterURL string
	if user.ShowPoster {
		posterURL = s.poster.FetchPoster(ctx, base.CleanTitle, base.Year)
	}

	// Дедупликация по подписи: при совпадении ключа побеждает последний
	// обработанный файл, позиция остаётся от первого. Это осознанная
	// политика схлопывания, а не случайность порядка цикла.
	entries := make([]entry, 0, len(metas))
	byLabel := make(map[string]int)
	for i, m := range metas {
		e := entry{
			label:  linkLabel(m),
			link:   deepLink(s.botUsername, sorted[i].FileUniqueID),
			season: m.Season,
		}
		if idx, ok := byLabel[e.label]; ok {
			entries[idx] = e
			continue
		}
		byLabel[e.label] = len(entries)
		entries = append(entries, e)
	}

	var links strings.Builder
	lastSeason := -1
	for _, e := range entries {
		if multiSeason && e.season != lastSeason {
			fmt.Fprintf(&links, "\n<b>%s S%02d</b>\n", html.EscapeString(base.CleanTitle), e.season)
			lastSeason = e.season
		}
		fmt.Fprintf(&links, "📤 <b>%s</b> 👉 <a href=\"%s\">Скачать</a>\n", html.EscapeString(e.label), e.link)
	}

	caption := buildHeader(base.CleanTitle, base.Year, seasons) +
		"\n\n" + divider + "\n" +
		strings.TrimSpace(links.String()) +
		"\n" + divider

	return &domain.ComposedPost{
		PosterURL: posterURL,
		Caption:   caption,
		Footer:    user.FooterButtons,
	}, nil
}
