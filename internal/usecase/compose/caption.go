package compose

import (
	"fmt"
	"html"
	"strings"

	"tg-release-bot/internal/domain"
)

const divider = "━━━━━━━━━━━━━━━━━━━━━━━"

// linkLabel строит подпись ссылки на файл: тег эпизода для сериала,
// иначе разрешение с источником, иначе качество, иначе очищенное имя.
func linkLabel(meta domain.ReleaseMeta) string {
	if meta.Kind == domain.KindSeries && meta.Episode > 0 {
		if meta.Season > 0 {
			return fmt.Sprintf("S%02d E%02d", meta.Season, meta.Episode)
		}
		return fmt.Sprintf("E%02d", meta.Episode)
	}
	if meta.Resolution != "" {
		label := strings.ToUpper(meta.Resolution)
		if meta.Source != "" {
			label += " " + meta.Source
		}
		return label
	}
	if meta.Quality != "" {
		return meta.Quality
	}
	return meta.CleanTitle
}

// deepLink строит start-ссылку, которая через обработчик /start
// возвращает пользователю сохранённый файл.
func deepLink(botUsername, fileUniqueID string) string {
	return fmt.Sprintf("https://t.me/%s?start=get_%s", botUsername, fileUniqueID)
}

// buildHeader собирает заголовок поста. Для сериала из одного сезона —
// «Sxx Complete», для нескольких сезонов — диапазон.
func buildHeader(title, year string, seasons []int) string {
	var b strings.Builder
	b.WriteString("🎬 <b>" + html.EscapeString(title))
	if year != "" {
		b.WriteString(" (" + year + ")")
	}
	switch {
	case len(seasons) == 1:
		fmt.Fprintf(&b, " S%02d Complete", seasons[0])
	case len(seasons) > 1:
		fmt.Fprintf(&b, " (S%02d - S%02d)", seasons[0], seasons[len(seasons)-1])
	}
	b.WriteString("</b>")
	return b.String()
}

// naturalLess сравнивает строки в «человеческом» порядке: цифровые
// последовательности сравниваются как числа, не лексикографически.
func naturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, restA := takeNumber(a)
			nb, restB := takeNumber(b)
			if na != nb {
				return numberLess(na, nb)
			}
			a, b = restA, restB
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func takeNumber(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// numberLess сравнивает цифровые последовательности без переполнения:
// после отбрасывания ведущих нулей короче — значит меньше.
func numberLess(a, b string) bool {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
