package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Genre is the coarse classification used by feed consumers
type Genre int

const (
	GenreApp  Genre = 1
	GenreGame Genre = 2
)

// gamesGenreID is the App Store "Games" category; its subcategories
// all share the 70xx prefix.
const (
	gamesGenreID     = "6014"
	gamesGenreFamily = "70"
)

// Classify derives a genre from App Store genre IDs.
// Anything that is not recognisably a game is an app.
func Classify(genreIDs []string) Genre {
	for _, id := range genreIDs {
		id = strings.TrimSpace(id)
		if id == gamesGenreID || strings.HasPrefix(id, gamesGenreFamily) {
			return GenreGame
		}
	}
	return GenreApp
}

// ParseGenre parses the numeric form stored in caches.
// Empty input is treated as GenreApp.
func ParseGenre(s string) (Genre, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return GenreApp, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return GenreApp, fmt.Errorf("invalid genre %q: %w", s, err)
	}
	g := Genre(n)
	if g != GenreApp && g != GenreGame {
		return GenreApp, fmt.Errorf("invalid genre %d", n)
	}
	return g, nil
}

func (g Genre) String() string {
	switch g {
	case GenreGame:
		return "game"
	default:
		return "app"
	}
}
