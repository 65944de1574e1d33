package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// TrendingEntry is one item of the trending list.
type TrendingEntry struct {
	Title      string `json:"title"`
	PosterPath string `json:"posterPath"`

	// Rank is the 1-based position of the first entry sharing this title.
	// It is derived on publish and never persisted.
	Rank int `json:"-"`
}

// wireEntry accepts the poster field under any of the names remote services use.
type wireEntry struct {
	Title       *string `json:"title"`
	PosterURL   *string `json:"posterUrl"`
	PosterPath  *string `json:"posterPath"`
	PosterPath2 *string `json:"poster_path"`
}

var errNotArray = errors.New("payload is not a JSON array")

// Rank returns the 1-based position of the first entry whose title equals
// title, or 0 when no entry matches.
func Rank(entries []TrendingEntry, title string) int {
	for i, e := range entries {
		if e.Title == title {
			return i + 1
		}
	}
	return 0
}

// withRanks returns a copy of entries with Rank filled in.
func withRanks(entries []TrendingEntry) []TrendingEntry {
	if entries == nil {
		return nil
	}
	out := make([]TrendingEntry, len(entries))
	first := make(map[string]int, len(entries))
	for i, e := range entries {
		rank, ok := first[e.Title]
		if !ok {
			rank = i + 1
			first[e.Title] = rank
		}
		e.Rank = rank
		out[i] = e
	}
	return out
}

// decodeEntries validates and decodes a trending payload. source is used
// only for error reporting.
func decodeEntries(source string, body []byte) ([]TrendingEntry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &DecodeError{Source: source, Err: errNotArray}
	}
	var raw []wireEntry
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	entries := make([]TrendingEntry, 0, len(raw))
	for i, w := range raw {
		if w.Title == nil || *w.Title == "" {
			return nil, &DecodeError{Source: source, Err: fmt.Errorf("entry %d: missing title", i)}
		}
		var poster *string
		switch {
		case w.PosterPath != nil:
			poster = w.PosterPath
		case w.PosterURL != nil:
			poster = w.PosterURL
		case w.PosterPath2 != nil:
			poster = w.PosterPath2
		default:
			return nil, &DecodeError{Source: source, Err: fmt.Errorf("entry %d (%q): missing poster", i, *w.Title)}
		}
		entries = append(entries, TrendingEntry{Title: *w.Title, PosterPath: *poster})
	}
	return entries, nil
}

func encodeEntries(entries []TrendingEntry) ([]byte, error) {
	if entries == nil {
		entries = []TrendingEntry{}
	}
	return json.Marshal(entries)
}

func cloneEntries(entries []TrendingEntry) []TrendingEntry {
	if entries == nil {
		return nil
	}
	out := make([]TrendingEntry, len(entries))
	copy(out, entries)
	return out
}
