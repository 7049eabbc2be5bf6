// Package autocomplete serves slash-command suggestions for the play query
// option: YouTube search completions plus Spotify album/track hits.
package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bwmarrin/discordgo"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/iz7n/music-discord-bot/internal/config"
)

func GetYouTubeSuggestions(ctx context.Context, query string) ([]string, error) {
	u, _ := url.Parse("https://suggestqueries.google.com/complete/search")
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var parsed []any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	arr, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetSuggestions mixes YouTube completions with Spotify hits when Spotify
// credentials are configured. Suggestion values are either plain search
// text or spotify: URIs the resolver understands.
func GetSuggestions(ctx context.Context, cfg *config.Config, query string, limit int) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	if limit <= 0 {
		limit = 10
	}
	yt, _ := GetYouTubeSuggestions(ctx, query)

	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	for i := 0; i < len(yt) && i < limit; i++ {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{
			Name:  "YouTube: " + yt[i],
			Value: yt[i],
		})
	}

	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		albums, tracks, err := searchSpotify(ctx, cfg, query, limit/2)
		if err == nil {
			if room := limit - len(albums) - len(tracks); len(out) > room && room >= 0 {
				out = out[:room]
			}
			for _, a := range albums {
				artist := ""
				if len(a.Artists) > 0 {
					artist = a.Artists[0].Name
				}
				name := fmt.Sprintf("Spotify: 💿 %s", a.Name)
				if artist != "" {
					name += " - " + artist
				}
				out = append(out, &discordgo.ApplicationCommandOptionChoice{
					Name:  name,
					Value: "spotify:album:" + a.ID.String(),
				})
			}
			for _, t := range tracks {
				artist := ""
				if len(t.Artists) > 0 {
					artist = t.Artists[0].Name
				}
				name := fmt.Sprintf("Spotify: 🎵 %s", t.Name)
				if artist != "" {
					name += " - " + artist
				}
				out = append(out, &discordgo.ApplicationCommandOptionChoice{
					Name:  name,
					Value: "spotify:track:" + t.ID.String(),
				})
			}
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func searchSpotify(ctx context.Context, cfg *config.Config, query string, limit int) ([]spotify.SimpleAlbum, []spotify.FullTrack, error) {
	if limit <= 0 {
		limit = 5
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	cl := spotify.New(creds.Client(ctx), spotify.WithRetry(true))
	res, err := cl.Search(ctx, query, spotify.SearchTypeAlbum|spotify.SearchTypeTrack)
	if err != nil {
		return nil, nil, err
	}
	var albums []spotify.SimpleAlbum
	var tracks []spotify.FullTrack
	if res.Albums != nil {
		albums = res.Albums.Albums
		if len(albums) > limit {
			albums = albums[:limit]
		}
	}
	if res.Tracks != nil {
		tracks = res.Tracks.Tracks
		if len(tracks) > limit {
			tracks = tracks[:limit]
		}
	}
	return albums, tracks, nil
}
