// Package stream implements the streaming-provider capability: it turns a
// media locator into a playable source for the voice transport.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/iz7n/music-discord-bot/internal/media"
	"github.com/iz7n/music-discord-bot/internal/tone"
)

var ErrNoPlayableURL = errors.New("no usable media URL")

// Stream is the playable source handed to the voice transport. Either Input
// (a URL or local path the transport can open directly) or Reader is set.
type Stream struct {
	Input  string
	Reader io.ReadCloser
	Format string // container hint: webm, m4a, ogg, wav, ...
	Seek   int    // seconds into the source
}

func (s *Stream) Close() {
	if s.Reader != nil {
		_ = s.Reader.Close()
	}
}

const (
	resolvedURLTTL = 5 * time.Hour
	sessionTTL     = 24 * time.Hour
)

type resolvedURL struct {
	url    string
	format string
	at     time.Time
}

// Provider resolves streams with yt-dlp, reusing resolved URLs within a
// window so a seek does not pay for a second extraction.
type Provider struct {
	mu        sync.Mutex
	resolved  map[string]resolvedURL
	renewedAt time.Time
}

func NewProvider() *Provider {
	return &Provider{
		resolved:  make(map[string]resolvedURL),
		renewedAt: time.Now(),
	}
}

// IsSessionExpired reports whether the extractor session is older than its
// TTL. yt-dlp extractors rot as providers change their internals.
func (p *Provider) IsSessionExpired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.renewedAt) > sessionTTL
}

func (p *Provider) RefreshSession(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, &ytdlp.InstallOptions{}); err != nil {
		return fmt.Errorf("refresh extractor session: %w", err)
	}
	p.mu.Lock()
	p.renewedAt = time.Now()
	p.resolved = make(map[string]resolvedURL)
	p.mu.Unlock()
	return nil
}

// ResolveStream obtains a playable source for m, optionally starting at
// seekSec. Network work happens here, never under a player lock.
func (p *Provider) ResolveStream(ctx context.Context, m media.Media, seekSec int) (*Stream, error) {
	switch m.Kind {
	case media.KindYouTube, media.KindYouTubePlaylistItem:
		pageURL := m.URL
		if pageURL == "" && m.VideoID != "" {
			pageURL = "https://www.youtube.com/watch?v=" + m.VideoID
		}
		return p.extract(ctx, "yt:"+m.VideoID, pageURL, seekSec)
	case media.KindSoundCloud:
		return p.extract(ctx, "sc:"+m.URL, m.URL, seekSec)
	case media.KindSpotify:
		if m.YouTubeURL != "" {
			return p.extract(ctx, "sp:"+m.URL, m.YouTubeURL, seekSec)
		}
		query := fmt.Sprintf("ytsearch1:%q %q", m.Title, m.Artist)
		return p.extract(ctx, "sp:"+m.URL, query, seekSec)
	case media.KindURL:
		return &Stream{Input: m.URL, Format: extOf(m.URL), Seek: seekSec}, nil
	case media.KindFile:
		return &Stream{Input: m.Path, Format: extOf(m.Path)}, nil
	case media.KindTone:
		r, err := tone.Generate(m.Frequency, m.ToneSecs)
		if err != nil {
			return nil, err
		}
		return &Stream{Reader: io.NopCloser(r), Format: "wav"}, nil
	}
	return nil, fmt.Errorf("unplayable media kind %s", m.Kind)
}

func (p *Provider) extract(ctx context.Context, key, target string, seekSec int) (*Stream, error) {
	p.mu.Lock()
	if r, ok := p.resolved[key]; ok && time.Since(r.at) < resolvedURLTTL {
		p.mu.Unlock()
		return &Stream{Input: r.url, Format: r.format, Seek: seekSec}, nil
	}
	p.mu.Unlock()

	if p.IsSessionExpired() {
		if err := p.RefreshSession(ctx); err != nil {
			return nil, err
		}
	}

	info, err := GetInfo(ctx, target)
	if err != nil {
		return nil, err
	}
	audioURL := AudioURL(info)
	if audioURL == "" {
		return nil, ErrNoPlayableURL
	}
	format := info.Ext
	if format == "" {
		format = extOf(audioURL)
	}

	p.mu.Lock()
	p.resolved[key] = resolvedURL{url: audioURL, format: format, at: time.Now()}
	p.mu.Unlock()

	slog.Debug("resolved stream", "key", key, "format", format)
	return &Stream{Input: audioURL, Format: format, Seek: seekSec}, nil
}

func extOf(target string) string {
	base := path.Base(target)
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimPrefix(path.Ext(base), ".")
}
