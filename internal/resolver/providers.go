package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppalone/ytsearch"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/iz7n/music-discord-bot/internal/config"
	"github.com/iz7n/music-discord-bot/internal/media"
	"github.com/iz7n/music-discord-bot/internal/stream"
	"github.com/iz7n/music-discord-bot/internal/utils"
)

var ErrNoSearchResults = errors.New("no search results")

// New wires a resolver with the real provider clients. Spotify stays nil
// when no credentials are configured.
func New(cfg *config.Config) *Resolver {
	r := &Resolver{
		YouTube:    &youTubeLookup{channelLimit: cfg.ChannelVideoLimit},
		SoundCloud: &soundCloudLookup{},
		Limiter:    rate.NewLimiter(rate.Limit(4), 8),
	}
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		r.Spotify = &spotifyLookup{
			clientID:     cfg.SpotifyClientID,
			clientSecret: cfg.SpotifyClientSecret,
		}
	}
	return r
}

// youTubeLookup resolves YouTube media with yt-dlp for URL shapes and
// ytsearch for the free-text fallback.
type youTubeLookup struct {
	channelLimit int
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func (c *youTubeLookup) Video(ctx context.Context, url string) (media.Media, error) {
	info, err := stream.GetInfo(ctx, url)
	if err != nil {
		return media.Media{}, err
	}
	pageURL := info.WebpageUrl
	if pageURL == "" {
		pageURL = url
	}
	return media.NewYouTube(info.Id, pageURL, info.Title, int(info.Duration), false, media.Requester{}), nil
}

func (c *youTubeLookup) Playlist(ctx context.Context, url string) ([]media.Media, error) {
	info, err := stream.FlatPlaylist(ctx, url)
	if err != nil {
		return nil, err
	}
	out := make([]media.Media, 0, len(info.Entries))
	for _, e := range info.Entries {
		out = append(out, media.NewYouTube(e.Id, watchURL(e.Id), e.Title, int(e.Duration), true, media.Requester{}))
	}
	return out, nil
}

func (c *youTubeLookup) Channel(ctx context.Context, url string) ([]media.Media, error) {
	info, err := stream.FlatPlaylist(ctx, url)
	if err != nil {
		return nil, err
	}
	entries := info.Entries
	if c.channelLimit > 0 && len(entries) > c.channelLimit {
		entries = entries[:c.channelLimit]
	}
	out := make([]media.Media, 0, len(entries))
	for _, e := range entries {
		out = append(out, media.NewYouTube(e.Id, watchURL(e.Id), e.Title, int(e.Duration), true, media.Requester{}))
	}
	return out, nil
}

func (c *youTubeLookup) Search(ctx context.Context, query string) (media.Media, error) {
	yt := ytsearch.NewClient(nil)
	res, err := yt.Search(ctx, query)
	if err != nil {
		return media.Media{}, err
	}
	if len(res.Results) == 0 {
		return media.Media{}, ErrNoSearchResults
	}
	top := res.Results[0]
	dur := utils.ParseDurationString(top.Duration)
	if dur < 0 {
		dur = 0
	}
	return media.NewYouTube(top.VideoID, watchURL(top.VideoID), top.Title, dur, false, media.Requester{}), nil
}

// soundCloudLookup resolves SoundCloud media; yt-dlp extracts SoundCloud
// pages and sets the same way it does YouTube.
type soundCloudLookup struct{}

func (c *soundCloudLookup) Track(ctx context.Context, url string) (media.Media, error) {
	info, err := stream.GetInfo(ctx, url)
	if err != nil {
		return media.Media{}, err
	}
	pageURL := info.WebpageUrl
	if pageURL == "" {
		pageURL = url
	}
	return media.NewSoundCloud(pageURL, info.Title, int(info.Duration), media.Requester{}), nil
}

func (c *soundCloudLookup) Set(ctx context.Context, url string) ([]media.Media, error) {
	info, err := stream.FlatPlaylist(ctx, url)
	if err != nil {
		return nil, err
	}
	out := make([]media.Media, 0, len(info.Entries))
	for _, e := range info.Entries {
		trackURL := e.Url
		if trackURL == "" {
			continue
		}
		out = append(out, media.NewSoundCloud(trackURL, e.Title, int(e.Duration), media.Requester{}))
	}
	return out, nil
}

// spotifyLookup holds a client-credentials session with explicit expiry so
// the resolver can refresh it lazily.
type spotifyLookup struct {
	clientID     string
	clientSecret string

	mu      sync.Mutex
	client  *spotify.Client
	expires time.Time
}

func (c *spotifyLookup) SessionExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client == nil || time.Now().After(c.expires.Add(-time.Minute))
}

func (c *spotifyLookup) RefreshSession(ctx context.Context) error {
	cfg := &clientcredentials.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := cfg.Token(ctx)
	if err != nil {
		return fmt.Errorf("spotify auth: %w", err)
	}
	httpClient := spotifyauth.New().Client(ctx, token)
	c.mu.Lock()
	c.client = spotify.New(httpClient, spotify.WithRetry(true))
	c.expires = token.Expiry
	c.mu.Unlock()
	return nil
}

func (c *spotifyLookup) raw() *spotify.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

func trackURL(id spotify.ID) string {
	return "https://open.spotify.com/track/" + id.String()
}

func simpleTrackMedia(t spotify.SimpleTrack) media.Media {
	artist := ""
	if len(t.Artists) > 0 {
		artist = t.Artists[0].Name
	}
	return media.NewSpotify(trackURL(t.ID), t.Name, artist, int(t.TimeDuration().Seconds()), media.Requester{})
}

func (c *spotifyLookup) Track(ctx context.Context, id string) (media.Media, error) {
	t, err := c.raw().GetTrack(ctx, spotify.ID(id))
	if err != nil {
		return media.Media{}, err
	}
	return simpleTrackMedia(t.SimpleTrack), nil
}

func (c *spotifyLookup) Collection(ctx context.Context, typ, id string) ([]media.Media, error) {
	switch typ {
	case "album":
		return c.albumTracks(ctx, spotify.ID(id))
	case "playlist":
		return c.playlistTracks(ctx, spotify.ID(id))
	}
	return nil, fmt.Errorf("unsupported spotify type: %s", typ)
}

func (c *spotifyLookup) albumTracks(ctx context.Context, id spotify.ID) ([]media.Media, error) {
	raw := c.raw()
	page, err := raw.GetAlbumTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []media.Media
	for {
		for _, t := range page.Tracks {
			out = append(out, simpleTrackMedia(t))
		}
		if page.Next == "" {
			return out, nil
		}
		if err := raw.NextPage(ctx, page); err != nil {
			if errors.Is(err, spotify.ErrNoMorePages) {
				return out, nil
			}
			return nil, fmt.Errorf("spotify album page: %w", err)
		}
	}
}

func (c *spotifyLookup) playlistTracks(ctx context.Context, id spotify.ID) ([]media.Media, error) {
	raw := c.raw()
	page, err := raw.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []media.Media
	for {
		for _, it := range page.Items {
			if it.Track.Track == nil {
				continue
			}
			out = append(out, simpleTrackMedia(it.Track.Track.SimpleTrack))
		}
		if page.Next == "" {
			return out, nil
		}
		if err := raw.NextPage(ctx, page); err != nil {
			if errors.Is(err, spotify.ErrNoMorePages) {
				return out, nil
			}
			return nil, fmt.Errorf("spotify playlist page: %w", err)
		}
	}
}
