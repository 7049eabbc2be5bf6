package media

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Kind is the closed set of playable source variants.
type Kind int

const (
	KindYouTube Kind = iota
	KindYouTubePlaylistItem
	KindSpotify
	KindSoundCloud
	KindURL
	KindFile
	KindTone
)

func (k Kind) String() string {
	switch k {
	case KindYouTube:
		return "youtube"
	case KindYouTubePlaylistItem:
		return "youtube-playlist-item"
	case KindSpotify:
		return "spotify"
	case KindSoundCloud:
		return "soundcloud"
	case KindURL:
		return "url"
	case KindFile:
		return "file"
	case KindTone:
		return "tone"
	}
	return "unknown"
}

type Requester struct {
	ID          string
	DisplayName string
}

// Media describes one playable item plus enough provider metadata to later
// obtain a stream. Values are treated as immutable once constructed.
type Media struct {
	Kind      Kind
	Title     string
	Duration  int // seconds; 0 means unknown
	Requester Requester

	// YouTube / SoundCloud / direct URL
	VideoID string
	URL     string

	// Spotify
	Artist     string
	YouTubeURL string // resolved lazily by the stream layer

	// Local file
	Path string

	// Generated tone
	Frequency float64
	ToneSecs  float64
}

func NewYouTube(videoID, pageURL, title string, duration int, isPlaylistItem bool, req Requester) Media {
	kind := KindYouTube
	if isPlaylistItem {
		kind = KindYouTubePlaylistItem
	}
	return Media{
		Kind:      kind,
		Title:     title,
		Duration:  duration,
		Requester: req,
		VideoID:   videoID,
		URL:       pageURL,
	}
}

func NewSpotify(trackURL, title, artist string, duration int, req Requester) Media {
	return Media{
		Kind:      KindSpotify,
		Title:     title,
		Duration:  duration,
		Requester: req,
		URL:       trackURL,
		Artist:    artist,
	}
}

func NewSoundCloud(trackURL, title string, duration int, req Requester) Media {
	return Media{
		Kind:      KindSoundCloud,
		Title:     title,
		Duration:  duration,
		Requester: req,
		URL:       trackURL,
	}
}

func NewURL(rawURL string, req Requester) Media {
	return Media{
		Kind:      KindURL,
		Title:     titleFromURL(rawURL),
		Requester: req,
		URL:       rawURL,
	}
}

func NewFile(filePath string, req Requester) Media {
	name := filepath.Base(filePath)
	return Media{
		Kind:      KindFile,
		Title:     strings.TrimSuffix(name, filepath.Ext(name)),
		Requester: req,
		Path:      filePath,
	}
}

func NewTone(freq, seconds float64, req Requester) Media {
	return Media{
		Kind:      KindTone,
		Title:     fmt.Sprintf("%gHz", freq),
		Duration:  int(seconds),
		Requester: req,
		Frequency: freq,
		ToneSecs:  seconds,
	}
}

func titleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return rawURL
	}
	name := path.Base(u.Path)
	if name == "" || name == "." {
		return rawURL
	}
	return name
}

// Seekable reports whether the stream layer can reissue this media's stream
// at an arbitrary offset.
func (m Media) Seekable() bool {
	switch m.Kind {
	case KindYouTube, KindYouTubePlaylistItem, KindSoundCloud:
		return true
	case KindSpotify, KindURL, KindFile, KindTone:
		return false
	}
	return false
}

// Locator returns the provider-specific string sufficient to obtain a stream.
func (m Media) Locator() string {
	switch m.Kind {
	case KindYouTube, KindYouTubePlaylistItem, KindSoundCloud, KindURL:
		return m.URL
	case KindSpotify:
		if m.YouTubeURL != "" {
			return m.URL + "\n" + m.Artist + "\n" + m.YouTubeURL
		}
		return m.URL + "\n" + m.Artist
	case KindFile:
		return m.Path
	case KindTone:
		return fmt.Sprintf("%g:%g", m.Frequency, m.ToneSecs)
	}
	return ""
}
