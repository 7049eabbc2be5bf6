package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Persisted is the storable form of a Media: provider tag plus locator,
// sufficient to reconstruct an equivalent playable descriptor without a
// network call when the tag is resolvable.
type Persisted struct {
	Kind          string
	Locator       string
	Title         string
	Duration      int
	RequesterID   string
	RequesterName string
}

func (m Media) ToPersisted() Persisted {
	return Persisted{
		Kind:          m.Kind.String(),
		Locator:       m.Locator(),
		Title:         m.Title,
		Duration:      m.Duration,
		RequesterID:   m.Requester.ID,
		RequesterName: m.Requester.DisplayName,
	}
}

func FromPersisted(p Persisted) (Media, error) {
	req := Requester{ID: p.RequesterID, DisplayName: p.RequesterName}
	m := Media{
		Title:     p.Title,
		Duration:  p.Duration,
		Requester: req,
	}
	switch p.Kind {
	case "youtube":
		m.Kind = KindYouTube
		m.URL = p.Locator
		m.VideoID = youTubeID(p.Locator)
	case "youtube-playlist-item":
		m.Kind = KindYouTubePlaylistItem
		m.URL = p.Locator
		m.VideoID = youTubeID(p.Locator)
	case "spotify":
		m.Kind = KindSpotify
		parts := strings.SplitN(p.Locator, "\n", 3)
		m.URL = parts[0]
		if len(parts) > 1 {
			m.Artist = parts[1]
		}
		if len(parts) > 2 {
			m.YouTubeURL = parts[2]
		}
	case "soundcloud":
		m.Kind = KindSoundCloud
		m.URL = p.Locator
	case "url":
		m.Kind = KindURL
		m.URL = p.Locator
	case "file":
		m.Kind = KindFile
		m.Path = p.Locator
	case "tone":
		m.Kind = KindTone
		freq, secs, err := parseToneLocator(p.Locator)
		if err != nil {
			return Media{}, err
		}
		m.Frequency = freq
		m.ToneSecs = secs
	default:
		return Media{}, fmt.Errorf("unknown media kind %q", p.Kind)
	}
	return m, nil
}

func parseToneLocator(loc string) (freq, secs float64, err error) {
	parts := strings.SplitN(loc, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad tone locator %q", loc)
	}
	freq, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad tone locator %q", loc)
	}
	secs, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad tone locator %q", loc)
	}
	return freq, secs, nil
}

func youTubeID(pageURL string) string {
	if i := strings.Index(pageURL, "v="); i >= 0 {
		id := pageURL[i+2:]
		if j := strings.IndexAny(id, "&#"); j >= 0 {
			id = id[:j]
		}
		return id
	}
	if i := strings.Index(pageURL, "youtu.be/"); i >= 0 {
		id := pageURL[i+len("youtu.be/"):]
		if j := strings.IndexAny(id, "?&#"); j >= 0 {
			id = id[:j]
		}
		return id
	}
	return ""
}
