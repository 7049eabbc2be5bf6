package resolver

import (
	"regexp"
	"strings"
)

// phraseClass is the shape a phrase matched, in priority order.
type phraseClass int

const (
	classYouTubePlaylist phraseClass = iota
	classYouTubeVideo
	classYouTubeChannel
	classSpotifyTrack
	classSpotifyCollection
	classSoundCloudTrack
	classSoundCloudSet
	classURL
	classSearch
)

var (
	// a token that is URL-shaped on its own; anchored so multi-line text
	// never passes as a URL
	urlTokenRe = regexp.MustCompile(`(?i)^(?:https?://)?[-a-z0-9@:%._+~#=]{1,256}\.[a-z0-9()]{1,6}\b[-a-z0-9()@:%_+.~#?&/=]*$`)

	ytPlaylistRe = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|music\.|m\.)?(?:youtube\.com)/(?:playlist|watch)\?(?:.*&)?list=[\w-]+`)
	ytVideoRe    = regexp.MustCompile(`(?i)^(?:https?://)?(?:(?:www\.|music\.|m\.)?youtube\.com/watch\?(?:.*&)?v=[\w-]+|youtu\.be/[\w-]+)`)
	ytChannelRe  = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtube\.com/(?:channel|c)/([\w-]+)`)

	spTrackRe      = regexp.MustCompile(`(?i)^(?:(?:https?://)?open\.spotify\.com/track/|spotify:track:)([A-Za-z0-9]+)`)
	spCollectionRe = regexp.MustCompile(`(?i)^(?:(?:https?://)?open\.spotify\.com/(album|playlist)/|spotify:(album|playlist):)([A-Za-z0-9]+)`)

	scTrackRe = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?soundcloud\.com/[\w-]+/(?:[\w-]+)`)
	scSetRe   = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|m\.)?soundcloud\.com/[\w-]+/sets/[\w-]+`)
)

// classify assigns a phrase to the highest-priority matching provider shape.
func classify(phrase string) phraseClass {
	switch {
	case ytPlaylistRe.MatchString(phrase):
		return classYouTubePlaylist
	case ytVideoRe.MatchString(phrase):
		return classYouTubeVideo
	case ytChannelRe.MatchString(phrase):
		return classYouTubeChannel
	case spTrackRe.MatchString(phrase):
		return classSpotifyTrack
	case spCollectionRe.MatchString(phrase):
		return classSpotifyCollection
	case scSetRe.MatchString(phrase):
		return classSoundCloudSet
	case scTrackRe.MatchString(phrase):
		return classSoundCloudTrack
	case urlTokenRe.MatchString(phrase):
		return classURL
	default:
		return classSearch
	}
}

func spotifyTrackID(phrase string) string {
	m := spTrackRe.FindStringSubmatch(phrase)
	if m == nil {
		return ""
	}
	return m[1]
}

func spotifyCollection(phrase string) (typ, id string) {
	m := spCollectionRe.FindStringSubmatch(phrase)
	if m == nil {
		return "", ""
	}
	if m[1] != "" {
		return m[1], m[3]
	}
	return m[2], m[3]
}

// phrasesOf tokenizes a raw query: runs of non-URL tokens coalesce into one
// search phrase, URL-shaped tokens stand alone, and newlines inside coalesced
// text split it into distinct phrases.
func phrasesOf(query string) []string {
	var phrases []string
	flush := func(text string) {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				phrases = append(phrases, line)
			}
		}
	}

	var text strings.Builder
	for _, tok := range strings.Split(query, " ") {
		if tok == "" {
			continue
		}
		if urlTokenRe.MatchString(tok) {
			if text.Len() > 0 {
				flush(text.String())
				text.Reset()
			}
			phrases = append(phrases, tok)
			continue
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(tok)
	}
	if text.Len() > 0 {
		flush(text.String())
	}
	return phrases
}
