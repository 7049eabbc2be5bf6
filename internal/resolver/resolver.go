// Package resolver turns free-form user input into playable media
// descriptors, dispatching phrases to provider clients.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/iz7n/music-discord-bot/internal/media"
)

var ErrSpotifyDisabled = errors.New("spotify is not enabled")

// YouTubeClient looks up YouTube media.
type YouTubeClient interface {
	Video(ctx context.Context, url string) (media.Media, error)
	Playlist(ctx context.Context, url string) ([]media.Media, error)
	Channel(ctx context.Context, url string) ([]media.Media, error)
	Search(ctx context.Context, query string) (media.Media, error)
}

// SpotifyClient looks up Spotify media. The session token is refreshed
// lazily before first use in a resolve call.
type SpotifyClient interface {
	Track(ctx context.Context, id string) (media.Media, error)
	Collection(ctx context.Context, typ, id string) ([]media.Media, error)
	SessionExpired() bool
	RefreshSession(ctx context.Context) error
}

// SoundCloudClient looks up SoundCloud media.
type SoundCloudClient interface {
	Track(ctx context.Context, url string) (media.Media, error)
	Set(ctx context.Context, url string) ([]media.Media, error)
}

// Notice reports a non-fatal per-phrase resolution failure.
type Notice struct {
	Phrase string
	Err    error
}

type Request struct {
	Query       string
	Attachments []string
	Requester   media.Requester
}

type Result struct {
	Medias  []media.Media
	Notices []Notice
}

type Resolver struct {
	YouTube    YouTubeClient
	Spotify    SpotifyClient
	SoundCloud SoundCloudClient

	// Limiter paces provider network calls; nil disables pacing.
	Limiter *rate.Limiter
}

// Resolve turns a request into an ordered media list: attachment-derived
// first, then phrase-derived in phrase order. A failing phrase becomes a
// Notice and never aborts the remaining phrases.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	var out Result

	seen := make(map[string]bool, len(req.Attachments))
	for _, u := range req.Attachments {
		if seen[u] {
			continue
		}
		seen[u] = true
		out.Medias = append(out.Medias, media.NewURL(u, req.Requester))
	}

	phrases := phrasesOf(req.Query)
	// one lookup per distinct phrase, failures included
	type outcome struct {
		medias []media.Media
		err    error
	}
	cache := make(map[string]outcome, len(phrases))
	var session spotifySession

	for _, phrase := range phrases {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		res, ok := cache[phrase]
		if !ok {
			res.medias, res.err = r.resolvePhrase(ctx, phrase, req.Requester, &session)
			cache[phrase] = res
			if res.err != nil {
				slog.Warn("phrase resolution failed", "phrase", phrase, "err", res.err)
				out.Notices = append(out.Notices, Notice{Phrase: phrase, Err: res.err})
			}
		}
		if res.err != nil {
			continue
		}
		out.Medias = append(out.Medias, res.medias...)
	}
	return out, nil
}

func (r *Resolver) resolvePhrase(ctx context.Context, phrase string, req media.Requester, session *spotifySession) ([]media.Media, error) {
	switch classify(phrase) {
	case classYouTubePlaylist:
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
		medias, err := r.YouTube.Playlist(ctx, phrase)
		if err != nil {
			return nil, fmt.Errorf("youtube playlist: %w", err)
		}
		return withRequester(medias, req), nil

	case classYouTubeVideo:
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
		m, err := r.YouTube.Video(ctx, phrase)
		if err != nil {
			return nil, fmt.Errorf("youtube video: %w", err)
		}
		m.Requester = req
		return []media.Media{m}, nil

	case classYouTubeChannel:
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
		medias, err := r.YouTube.Channel(ctx, phrase)
		if err != nil {
			return nil, fmt.Errorf("youtube channel: %w", err)
		}
		return withRequester(medias, req), nil

	case classSpotifyTrack:
		if err := r.checkSpotify(ctx, session); err != nil {
			return nil, err
		}
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
		m, err := r.Spotify.Track(ctx, spotifyTrackID(phrase))
		if err != nil {
			return nil, fmt.Errorf("spotify track: %w", err)
		}
		m.Requester = req
		return []media.Media{m}, nil

	case classSpotifyCollection:
		if err := r.checkSpotify(ctx, session); err != nil {
			return nil, err
		}
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
		typ, id := spotifyCollection(phrase)
		medias, err := r.Spotify.Collection(ctx, typ, id)
		if err != nil {
			return nil, fmt.Errorf("spotify %s: %w", typ, err)
		}
		return withRequester(medias, req), nil

	case classSoundCloudTrack:
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
		m, err := r.SoundCloud.Track(ctx, phrase)
		if err != nil {
			return nil, fmt.Errorf("soundcloud track: %w", err)
		}
		m.Requester = req
		return []media.Media{m}, nil

	case classSoundCloudSet:
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
		medias, err := r.SoundCloud.Set(ctx, phrase)
		if err != nil {
			return nil, fmt.Errorf("soundcloud set: %w", err)
		}
		return withRequester(medias, req), nil

	case classURL:
		return []media.Media{media.NewURL(phrase, req)}, nil

	default:
		if err := r.wait(ctx); err != nil {
			return nil, err
		}
		m, err := r.YouTube.Search(ctx, phrase)
		if err != nil {
			return nil, fmt.Errorf("youtube search: %w", err)
		}
		m.Requester = req
		return []media.Media{m}, nil
	}
}

// spotifySession memoizes the once-per-call lazy session check so every
// phrase depending on a failed refresh reports the same error.
type spotifySession struct {
	checked bool
	err     error
}

func (r *Resolver) checkSpotify(ctx context.Context, session *spotifySession) error {
	if r.Spotify == nil {
		return ErrSpotifyDisabled
	}
	if session.checked {
		return session.err
	}
	session.checked = true
	if r.Spotify.SessionExpired() {
		if err := r.Spotify.RefreshSession(ctx); err != nil {
			session.err = fmt.Errorf("spotify session refresh: %w", err)
		}
	}
	return session.err
}

func (r *Resolver) wait(ctx context.Context) error {
	if r.Limiter == nil {
		return nil
	}
	return r.Limiter.Wait(ctx)
}

func withRequester(medias []media.Media, req media.Requester) []media.Media {
	for i := range medias {
		medias[i].Requester = req
	}
	return medias
}
