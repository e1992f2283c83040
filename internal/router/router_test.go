package router_test

import (
	"path/filepath"
	"testing"

	"convoy/internal/config"
	"convoy/internal/router"
)

func newRouter(t *testing.T) *router.Router {
	t.Helper()
	cfg := config.Default()
	r, err := router.New(cfg.Categories, cfg.Encoder.OutputExtension)
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}
	return r
}

func TestCategorize(t *testing.T) {
	r := newRouter(t)
	out := "/out"
	tests := []struct {
		name     string
		input    string
		wantType router.Type
		wantPath string
	}{
		{"movie", "/in/The.Matrix.1999.1080p.mp4", router.Movie, filepath.Join(out, "movies", "The.Matrix.1999.1080p.mkv")},
		{"series sxxexx", "/in/the.office.S02E05.720p.mkv", router.Series, filepath.Join(out, "series", "The Office", "Season 02", "the.office.S02E05.720p.mkv")},
		{"series nxnn", "/in/Friends 3x12.avi", router.Series, filepath.Join(out, "series", "Friends", "Season 03", "Friends 3x12.mkv")},
		{"series long form", "/in/Lost_Season_1_Episode_4.mp4", router.Series, filepath.Join(out, "series", "Lost", "Season 01", "Lost_Season_1_Episode_4.mkv")},
		{"series name from folder", "/in/Dark/S01E01.mkv", router.Series, filepath.Join(out, "series", "Dark", "Season 01", "S01E01.mkv")},
		{"anime episode", "/in/anime/Naruto S01E03.mkv", router.Anime, filepath.Join(out, "anime", "Naruto", "Season 01", "Naruto S01E03.mkv")},
		{"anime film", "/in/Akira [OVA].mkv", router.Anime, filepath.Join(out, "anime", "Akira [OVA].mkv")},
		{"keyword substring is not a match", "/in/Novacaine.mp4", router.Movie, filepath.Join(out, "movies", "Novacaine.mkv")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Categorize(tt.input, out)
			if got.Type != tt.wantType {
				t.Fatalf("type = %q, want %q", got.Type, tt.wantType)
			}
			if got.OutputFile != tt.wantPath {
				t.Fatalf("output = %q, want %q", got.OutputFile, tt.wantPath)
			}
		})
	}
}

func TestCategorizeIsDeterministic(t *testing.T) {
	r := newRouter(t)
	first := r.Categorize("/in/show.s01e01.mkv", "/out")
	for i := 0; i < 5; i++ {
		if again := r.Categorize("/in/show.s01e01.mkv", "/out"); again != first {
			t.Fatalf("categorization changed: %+v vs %+v", first, again)
		}
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	cats := config.Default().Categories
	cats.SeriesPatterns = []string{"("}
	if _, err := router.New(cats, ".mkv"); err == nil {
		t.Fatal("expected compile error")
	}
}
