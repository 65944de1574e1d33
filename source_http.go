package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPTrendingSource fetches the trending list with a single GET.
type HTTPTrendingSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPTrendingSource returns a source for url. A nil client uses
// http.DefaultClient.
func NewHTTPTrendingSource(url string, client *http.Client) *HTTPTrendingSource {
	return &HTTPTrendingSource{URL: url, Client: client}
}

// FetchTrending implements TrendingSource.
func (s *HTTPTrendingSource) FetchTrending(ctx context.Context) ([]TrendingEntry, error) {
	body, err := getJSON(ctx, s.Client, s.URL, nil)
	if err != nil {
		return nil, err
	}
	return decodeEntries(s.URL, body)
}

// getJSON performs a GET and returns the body of a 2xx response. Transport
// failures and other statuses are *NetworkError; oversized bodies are
// *DecodeError.
func getJSON(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes+1))
	if err != nil {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if len(body) > maxResponseBodyBytes {
		return nil, &DecodeError{Source: url, Err: fmt.Errorf("response exceeds %d bytes", maxResponseBodyBytes)}
	}
	return body, nil
}
