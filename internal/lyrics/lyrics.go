// Package lyrics fetches plain lyrics from lrclib.net.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound is returned when no lyrics exist for the request.
var ErrNotFound = errors.New("lyrics not found")

const baseURL = "https://lrclib.net/api"

type Client struct {
	httpClient *http.Client
	base       string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		base:       baseURL,
	}
}

// NewClientWithBase exists for tests against a local server.
func NewClientWithBase(base string) *Client {
	c := NewClient()
	c.base = base
	return c
}

type result struct {
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	Instrumental bool   `json:"instrumental"`
	PlainLyrics  string `json:"plainLyrics"`
}

// Fetch returns lyrics for a title, optionally narrowed by artist. The title
// may be a free-form search phrase.
func (c *Client) Fetch(ctx context.Context, title, artist string) (string, error) {
	params := url.Values{}
	if artist != "" {
		params.Set("track_name", title)
		params.Set("artist_name", artist)
	} else {
		params.Set("q", title)
	}

	reqURL := fmt.Sprintf("%s/search?%s", c.base, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lyrics lookup: unexpected status %d", resp.StatusCode)
	}

	var results []result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("lyrics lookup: decode: %w", err)
	}
	for _, r := range results {
		if r.Instrumental {
			continue
		}
		if r.PlainLyrics != "" {
			return r.PlainLyrics, nil
		}
	}
	return "", ErrNotFound
}
