package router

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"convoy/internal/config"
)

// Type names a content category.
type Type string

const (
	Movie  Type = "movie"
	Series Type = "series"
	Anime  Type = "anime"
)

// Categorization is the routing decision for one input file.
type Categorization struct {
	Type       Type
	Show       string
	Season     int
	OutputFile string
}

// Router maps input paths to destination paths.
type Router struct {
	moviesDir string
	seriesDir string
	animeDir  string
	extension string
	keywords  []string
	patterns  []*regexp.Regexp
}

// New compiles the configured series patterns. extension is the dotted output
// container extension.
func New(categories config.Categories, extension string) (*Router, error) {
	r := &Router{
		moviesDir: categories.MoviesDir,
		seriesDir: categories.SeriesDir,
		animeDir:  categories.AnimeDir,
		extension: extension,
		keywords:  append([]string(nil), categories.AnimeKeywords...),
	}
	for _, pattern := range categories.SeriesPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile series pattern %q: %w", pattern, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Categorize returns the category and destination for path under outputRoot.
func (r *Router) Categorize(path, outputRoot string) Categorization {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	file := stem + r.extension

	show, season, episodic := r.matchSeries(stem)
	if episodic && show == "" {
		show = cleanTitle(filepath.Base(filepath.Dir(path)))
	}
	if show == "" {
		show = "Unknown"
	}

	if r.isAnime(path) {
		if episodic {
			return Categorization{
				Type:       Anime,
				Show:       show,
				Season:     season,
				OutputFile: filepath.Join(outputRoot, r.animeDir, show, seasonDir(season), file),
			}
		}
		return Categorization{Type: Anime, OutputFile: filepath.Join(outputRoot, r.animeDir, file)}
	}
	if episodic {
		return Categorization{
			Type:       Series,
			Show:       show,
			Season:     season,
			OutputFile: filepath.Join(outputRoot, r.seriesDir, show, seasonDir(season), file),
		}
	}
	return Categorization{Type: Movie, OutputFile: filepath.Join(outputRoot, r.moviesDir, file)}
}

func (r *Router) matchSeries(stem string) (string, int, bool) {
	for _, re := range r.patterns {
		loc := re.FindStringSubmatchIndex(stem)
		if loc == nil {
			continue
		}
		season := 1
		if len(loc) >= 4 && loc[2] >= 0 {
			if n, err := strconv.Atoi(stem[loc[2]:loc[3]]); err == nil && n > 0 {
				season = n
			}
		}
		return cleanTitle(stem[:loc[0]]), season, true
	}
	return "", 0, false
}

// isAnime reports whether any keyword appears as a whole token in the file
// name or one of its two parent directories.
func (r *Router) isAnime(path string) bool {
	if len(r.keywords) == 0 {
		return false
	}
	dir := filepath.Dir(path)
	scope := []string{filepath.Base(path), filepath.Base(dir), filepath.Base(filepath.Dir(dir))}
	for _, part := range scope {
		for _, token := range tokenize(part) {
			for _, keyword := range r.keywords {
				if token == keyword {
					return true
				}
			}
		}
	}
	return false
}

func tokenize(value string) []string {
	return strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func cleanTitle(value string) string {
	var cleaned strings.Builder
	prevSpace := false
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'':
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return ""
	}
	return cases.Title(language.Und).String(title)
}

func seasonDir(season int) string {
	return fmt.Sprintf("Season %02d", season)
}
