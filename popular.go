package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultTMDBBaseURL is the API root used when TMDBConfig.BaseURL is empty.
	DefaultTMDBBaseURL = "https://api.themoviedb.org/3"

	// PosterBaseURL prefixes relative poster paths.
	PosterBaseURL = "https://image.tmdb.org/t/p/w500"

	// PlaceholderPosterURL is shown for items without a poster.
	PlaceholderPosterURL = "https://placehold.co/600x400/1a1a1a/FFFFFF.png"
)

// Movie is one item of the popular list.
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview,omitempty"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	ReleaseDate string  `json:"release_date"`
}

// PosterURL returns the full poster image URL, or the placeholder.
func (m Movie) PosterURL() string { return posterURL(m.PosterPath) }

// Rating converts the 0-10 vote average into a 0-5 star count.
func (m Movie) Rating() int {
	stars := int(math.Round(m.VoteAverage / 2))
	switch {
	case stars < 0:
		return 0
	case stars > 5:
		return 5
	}
	return stars
}

// ReleaseYear returns the year part of ReleaseDate, or "".
func (m Movie) ReleaseYear() string {
	year, _, _ := strings.Cut(m.ReleaseDate, "-")
	return year
}

// PosterURL returns the full poster image URL, or the placeholder.
func (e TrendingEntry) PosterURL() string { return posterURL(e.PosterPath) }

func posterURL(path string) string {
	switch {
	case path == "":
		return PlaceholderPosterURL
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	}
	return PosterBaseURL + path
}

// MovieQuery selects the popular list (empty Query) or a title search.
type MovieQuery struct {
	Query string
	Page  int
}

// TMDBConfig configures a MovieSource.
type TMDBConfig struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// MovieSource lists movies from a TMDB-compatible API.
type MovieSource struct {
	cfg TMDBConfig
}

// NewMovieSource returns a MovieSource. BaseURL defaults to DefaultTMDBBaseURL.
func NewMovieSource(cfg TMDBConfig) *MovieSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTMDBBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &MovieSource{cfg: cfg}
}

type movieListResponse struct {
	Results []Movie `json:"results"`
}

// Movies fetches one page of results for q.
func (s *MovieSource) Movies(ctx context.Context, q MovieQuery) ([]Movie, error) {
	endpoint := s.endpoint(q)
	var header http.Header
	if s.cfg.Token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + s.cfg.Token}}
	}
	body, err := getJSON(ctx, s.cfg.HTTPClient, endpoint, header)
	if err != nil {
		return nil, err
	}
	var resp movieListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{Source: endpoint, Err: err}
	}
	if resp.Results == nil {
		return nil, &DecodeError{Source: endpoint, Err: fmt.Errorf("missing results")}
	}
	return resp.Results, nil
}

// Producer returns a Producer fetching q, for use with NewResource.
func (s *MovieSource) Producer(q MovieQuery) Producer[[]Movie] {
	return func(ctx context.Context) ([]Movie, error) {
		return s.Movies(ctx, q)
	}
}

func (s *MovieSource) endpoint(q MovieQuery) string {
	v := url.Values{}
	path := "/discover/movie"
	if query := strings.TrimSpace(q.Query); query != "" {
		path = "/search/movie"
		v.Set("query", query)
	} else {
		v.Set("sort_by", "popularity.desc")
	}
	if q.Page > 0 {
		v.Set("page", fmt.Sprint(q.Page))
	}
	return s.cfg.BaseURL + path + "?" + v.Encode()
}
