package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTMDBServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer secret" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/discover/movie", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("sort_by") != "popularity.desc" {
			http.Error(w, "bad sort", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":1,"title":"Popular","poster_path":"/p.jpg","vote_average":7.5,"release_date":"2024-03-01"}]}`))
	})
	r.Get("/search/movie", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("query") != "alien" || req.URL.Query().Get("page") != "2" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":2,"title":"Alien","poster_path":null,"vote_average":8.4,"release_date":""}]}`))
	})
	r.Get("/broken/discover/movie", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestMovieSourcePopular(t *testing.T) {
	srv := newTMDBServer(t)
	src := NewMovieSource(TMDBConfig{BaseURL: srv.URL + "/", Token: "secret"})
	movies, err := src.Movies(context.Background(), MovieQuery{})
	if err != nil {
		t.Fatalf("movies: %v", err)
	}
	if len(movies) != 1 || movies[0].Title != "Popular" {
		t.Fatalf("unexpected movies %+v", movies)
	}
	m := movies[0]
	if m.PosterURL() != PosterBaseURL+"/p.jpg" || m.Rating() != 4 || m.ReleaseYear() != "2024" {
		t.Fatalf("unexpected derived fields url=%s rating=%d year=%s", m.PosterURL(), m.Rating(), m.ReleaseYear())
	}
}

func TestMovieSourceSearch(t *testing.T) {
	srv := newTMDBServer(t)
	src := NewMovieSource(TMDBConfig{BaseURL: srv.URL, Token: "secret"})
	movies, err := src.Movies(context.Background(), MovieQuery{Query: " alien ", Page: 2})
	if err != nil {
		t.Fatalf("movies: %v", err)
	}
	m := movies[0]
	if m.PosterURL() != PlaceholderPosterURL || m.ReleaseYear() != "" || m.Rating() != 4 {
		t.Fatalf("unexpected derived fields %+v", m)
	}
}

func TestMovieSourceUnauthorized(t *testing.T) {
	srv := newTMDBServer(t)
	_, err := NewMovieSource(TMDBConfig{BaseURL: srv.URL}).Movies(context.Background(), MovieQuery{})
	var netErr *NetworkError
	if !errors.As(err, &netErr) || netErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestMovieSourceMissingResults(t *testing.T) {
	srv := newTMDBServer(t)
	_, err := NewMovieSource(TMDBConfig{BaseURL: srv.URL + "/broken", Token: "secret"}).Movies(context.Background(), MovieQuery{})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestMovieSourceProducerWithResource(t *testing.T) {
	srv := newTMDBServer(t)
	src := NewMovieSource(TMDBConfig{BaseURL: srv.URL, Token: "secret"})
	r := NewResource(context.Background(), src.Producer(MovieQuery{}), WithAutoStart(false), WithResourceLogger(discardLogger()))
	st := r.Fetch(context.Background())
	if st.Err != nil || len(st.Data) != 1 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestMovieRatingBounds(t *testing.T) {
	cases := map[float64]int{0: 0, 1: 1, 4.9: 2, 5: 3, 9: 5, 10: 5, 12: 5, -3: 0}
	for avg, want := range cases {
		if got := (Movie{VoteAverage: avg}).Rating(); got != want {
			t.Fatalf("rating(%v) = %d, want %d", avg, got, want)
		}
	}
}

func TestNewMovieSourceDefaultBase(t *testing.T) {
	src := NewMovieSource(TMDBConfig{})
	if got := src.endpoint(MovieQuery{}); got != DefaultTMDBBaseURL+"/discover/movie?sort_by=popularity.desc" {
		t.Fatalf("unexpected endpoint %s", got)
	}
}
