// Package release извлекает метаданные релиза из имён файлов и строит
// ключ батчирования. Разбор — каскад независимых best-effort правил над
// нормализованной строкой, а не формальная грамматика: неоднозначные
// имена мягко деградируют до «фильм без сезона и эпизода».
//
// Известное ограничение: два разных релиза с одинаковым очищенным
// названием и годом получают один ключ и будут слиты в один пост.
package release

import (
	"regexp"
	"strconv"
	"strings"

	"tg-release-bot/internal/domain"
)

var (
	reBrackets = regexp.MustCompile(`\[[^\]]*\]`)
	reParens   = regexp.MustCompile(`\([^)]*\)`)
	reExt      = regexp.MustCompile(`\.[A-Za-z0-9]{1,5}$`)

	reYear     = regexp.MustCompile(`\b(19[89]\d|20\d{2})\b`)
	reSeasonEp = regexp.MustCompile(`(?i)\bs(\d{1,2})[\s._-]?e(\d{1,3})\b`)
	reEpisode  = regexp.MustCompile(`(?i)\b(?:episode|ep|e|part)\s?(\d{1,3})\b`)
	reSeason   = regexp.MustCompile(`(?i)\b(?:season|s)\s?(\d{1,2})\b`)

	reResolution = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|360p|240p)\b`)
	reQuality    = regexp.MustCompile(`(?i)\b(4k|uhd|fhd|hd|sd)\b`)
	reSource     = regexp.MustCompile(`(?i)\b(bluray|blu-ray|bdrip|brrip|web-dl|webdl|webrip|hdrip|dvdscr|dvd-rip)\b`)
	reAudio      = regexp.MustCompile(`(?i)\b(hindi|english|tamil|telugu|dual[\s-]?audio|multi[\s-]?audio)\b`)

	// Технические токены, которые не должны попадать в название.
	reTech = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|360p|240p|4k|uhd|fhd|hd|sd|bluray|blu-ray|bdrip|brrip|web-dl|webdl|webrip|hdrip|dvdscr|dvd-rip|hindi|english|tamil|telugu|dual[\s-]?audio|multi[\s-]?audio|x264|x265|hevc|aac|ac3|esub|msub)\b`)

	reSpaces = strings.NewReplacer("_", " ", ".", " ")
)

// Classify разбирает имя файла. Тотальная функция: для непустого имени
// всегда возвращает непустой CleanTitle.
func Classify(filename string) domain.ReleaseMeta {
	meta := domain.ReleaseMeta{
		OriginalName: filename,
		Kind:         domain.KindMovie,
	}

	name := reBrackets.ReplaceAllString(filename, "")
	name = reExt.ReplaceAllString(name, "")
	name = reSpaces.Replace(name)

	// Обрезать название по самому раннему маркеру: год, сезон, эпизод.
	titleEnd := len(name)

	if loc := reYear.FindStringIndex(name); loc != nil {
		meta.Year = name[loc[0]:loc[1]]
		if loc[0] < titleEnd {
			titleEnd = loc[0]
		}
	}

	if m := reSeasonEp.FindStringSubmatchIndex(name); m != nil {
		meta.Kind = domain.KindSeries
		meta.Season = atoi(name[m[2]:m[3]])
		meta.Episode = atoi(name[m[4]:m[5]])
		if m[0] < titleEnd {
			titleEnd = m[0]
		}
	} else {
		// Одиночные маркеры: любого из них достаточно для сериала.
		if m := reEpisode.FindStringSubmatchIndex(name); m != nil {
			meta.Kind = domain.KindSeries
			meta.Episode = atoi(name[m[2]:m[3]])
			if m[0] < titleEnd {
				titleEnd = m[0]
			}
		}
		if m := reSeason.FindStringSubmatchIndex(name); m != nil {
			meta.Kind = domain.KindSeries
			meta.Season = atoi(name[m[2]:m[3]])
			if m[0] < titleEnd {
				titleEnd = m[0]
			}
		}
	}

	if m := reResolution.FindString(name); m != "" {
		meta.Resolution = strings.ToLower(m)
	}
	if m := reQuality.FindString(name); m != "" {
		meta.Quality = strings.ToUpper(m)
	}
	if m := reSource.FindString(name); m != "" {
		meta.Source = strings.ReplaceAll(strings.ToUpper(m), "-", "")
	}
	for _, m := range reAudio.FindAllString(name, -1) {
		meta.Audio = append(meta.Audio, titleCase(strings.ReplaceAll(m, "-", " ")))
	}

	title := name[:titleEnd]
	title = reTech.ReplaceAllString(title, "")
	title = reParens.ReplaceAllString(title, "")
	meta.CleanTitle = strings.Join(strings.Fields(title), " ")

	if meta.CleanTitle == "" {
		fallback := reSpaces.Replace(reExt.ReplaceAllString(filename, ""))
		meta.CleanTitle = strings.Join(strings.Fields(fallback), " ")
	}
	if meta.CleanTitle == "" {
		meta.CleanTitle = filename
	}

	return meta
}

// BatchKey строит ключ группировки: два файла принадлежат одному релизу
// тогда и только тогда, когда их ключи совпадают. Сравнение — только
// приведение регистра, без нечёткого сопоставления.
func BatchKey(filename string) string {
	meta := Classify(filename)
	year := meta.Year
	if year == "" {
		year = "0000"
	}
	return strings.ToLower(meta.CleanTitle + "_" + year)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
