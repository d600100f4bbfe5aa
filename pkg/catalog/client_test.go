package catalog

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want Genre
	}{
		{"games category", []string{"6014"}, GenreGame},
		{"games subcategory", []string{"7001"}, GenreGame},
		{"mixed", []string{"6000", "7014"}, GenreGame},
		{"business", []string{"6000"}, GenreApp},
		{"empty", []string{}, GenreApp},
		{"nil", nil, GenreApp},
		{"contains 70 but not prefix", []string{"6070"}, GenreApp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.ids); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.ids, got, tt.want)
			}
		})
	}
}

func TestParseGenre(t *testing.T) {
	if g, err := ParseGenre("2"); err != nil || g != GenreGame {
		t.Errorf("ParseGenre(2) = %v, %v", g, err)
	}
	if g, err := ParseGenre(""); err != nil || g != GenreApp {
		t.Errorf("ParseGenre(\"\") = %v, %v", g, err)
	}
	if _, err := ParseGenre("7"); err == nil {
		t.Error("expected error for out of range genre")
	}
	if _, err := ParseGenre("game"); err == nil {
		t.Error("expected error for non numeric genre")
	}
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newCatalogServer(t *testing.T, lookups *int32) *httptest.Server {
	t.Helper()
	art := jpegBytes(t)
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lookup":
			atomic.AddInt32(lookups, 1)
			if r.URL.Query().Get("limit") != "1" || r.URL.Query().Get("country") != "US" {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			switch r.URL.Query().Get("bundleId") {
			case "com.example.game":
				w.Write([]byte(`{"resultCount":1,"results":[{"trackName":"Game","artworkUrl512":"` + srv.URL + `/art.jpg","genreIds":["6014","7001"]}]}`))
			case "com.example.broken":
				w.Write([]byte(`{"resultCount":`))
			default:
				w.Write([]byte(`{"resultCount":0,"results":[]}`))
			}
		case "/art.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(art)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup_Hit(t *testing.T) {
	var lookups int32
	srv := newCatalogServer(t, &lookups)
	c, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	e, err := c.Lookup(context.Background(), "com.example.game")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if e.Genre() != GenreGame {
		t.Errorf("Genre = %v", e.Genre())
	}
	if e.TrackName != "Game" {
		t.Errorf("TrackName = %q", e.TrackName)
	}

	icon, err := c.FetchIcon(context.Background(), e.ArtworkURL)
	if err != nil {
		t.Fatalf("FetchIcon failed: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(icon)); err != nil {
		t.Fatalf("icon is not a PNG: %v", err)
	}
}

func TestLookup_MissIsMemoised(t *testing.T) {
	var lookups int32
	srv := newCatalogServer(t, &lookups)
	c, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.Lookup(context.Background(), "com.example.unknown"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if n := atomic.LoadInt32(&lookups); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestLookup_Failures(t *testing.T) {
	var lookups int32
	srv := newCatalogServer(t, &lookups)
	c, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Lookup(context.Background(), "com.example.broken"); err == nil {
		t.Error("expected a decode error")
	}

	srv.Close()
	if _, err := c.Lookup(context.Background(), "com.example.game"); err == nil {
		t.Error("expected a network error")
	}
}

func TestToPNG_Rejects(t *testing.T) {
	if _, err := ToPNG([]byte("not an image")); err == nil {
		t.Fatal("expected an error")
	}
}
