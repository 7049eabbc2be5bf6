package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iz7n/music-discord-bot/internal/media"
)

type fakeYouTube struct {
	videoCalls    []string
	playlistCalls []string
	channelCalls  []string
	searchCalls   []string

	videoErr  error
	searchErr error
}

func (f *fakeYouTube) Video(_ context.Context, url string) (media.Media, error) {
	f.videoCalls = append(f.videoCalls, url)
	if f.videoErr != nil {
		return media.Media{}, f.videoErr
	}
	return media.NewYouTube("vid", url, "video "+url, 60, false, media.Requester{}), nil
}

func (f *fakeYouTube) Playlist(_ context.Context, url string) ([]media.Media, error) {
	f.playlistCalls = append(f.playlistCalls, url)
	return []media.Media{
		media.NewYouTube("p1", url+"#1", "pl item 1", 60, true, media.Requester{}),
		media.NewYouTube("p2", url+"#2", "pl item 2", 60, true, media.Requester{}),
	}, nil
}

func (f *fakeYouTube) Channel(_ context.Context, url string) ([]media.Media, error) {
	f.channelCalls = append(f.channelCalls, url)
	return []media.Media{media.NewYouTube("c1", url+"#1", "ch item", 60, true, media.Requester{})}, nil
}

func (f *fakeYouTube) Search(_ context.Context, query string) (media.Media, error) {
	f.searchCalls = append(f.searchCalls, query)
	if f.searchErr != nil {
		return media.Media{}, f.searchErr
	}
	return media.NewYouTube("s1", "https://youtu.be/s1", "found "+query, 60, false, media.Requester{}), nil
}

type fakeSpotify struct {
	expired    bool
	refreshErr error
	refreshes  int
	trackCalls []string
}

func (f *fakeSpotify) Track(_ context.Context, id string) (media.Media, error) {
	f.trackCalls = append(f.trackCalls, id)
	return media.NewSpotify("https://open.spotify.com/track/"+id, "sp "+id, "artist", 100, media.Requester{}), nil
}

func (f *fakeSpotify) Collection(_ context.Context, typ, id string) ([]media.Media, error) {
	return []media.Media{media.NewSpotify("https://open.spotify.com/track/"+typ+id, typ+" track", "artist", 100, media.Requester{})}, nil
}

func (f *fakeSpotify) SessionExpired() bool { return f.expired }

func (f *fakeSpotify) RefreshSession(context.Context) error {
	f.refreshes++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.expired = false
	return nil
}

type fakeSoundCloud struct{}

func (fakeSoundCloud) Track(_ context.Context, url string) (media.Media, error) {
	return media.NewSoundCloud(url, "sc track", 80, media.Requester{}), nil
}

func (fakeSoundCloud) Set(_ context.Context, url string) ([]media.Media, error) {
	return []media.Media{
		media.NewSoundCloud(url+"#1", "sc set 1", 80, media.Requester{}),
		media.NewSoundCloud(url+"#2", "sc set 2", 80, media.Requester{}),
	}, nil
}

func newTestResolver(yt *fakeYouTube, sp *fakeSpotify) *Resolver {
	return &Resolver{YouTube: yt, Spotify: sp, SoundCloud: fakeSoundCloud{}}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		phrase string
		want   phraseClass
	}{
		{"https://www.youtube.com/watch?v=abc&list=PL123", classYouTubePlaylist},
		{"https://www.youtube.com/playlist?list=PL123", classYouTubePlaylist},
		{"https://www.youtube.com/watch?v=abc", classYouTubeVideo},
		{"youtu.be/abc123", classYouTubeVideo},
		{"https://www.youtube.com/channel/UCabc", classYouTubeChannel},
		{"https://open.spotify.com/track/3n3Ppam7vgaVa1iaRUc9Lp", classSpotifyTrack},
		{"spotify:track:3n3Ppam7vgaVa1iaRUc9Lp", classSpotifyTrack},
		{"https://open.spotify.com/album/abc123", classSpotifyCollection},
		{"spotify:playlist:abc123", classSpotifyCollection},
		{"https://soundcloud.com/artist/sets/cool-mix", classSoundCloudSet},
		{"https://soundcloud.com/artist/cool-song", classSoundCloudTrack},
		{"https://example.com/audio.mp3", classURL},
		{"never gonna give you up", classSearch},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classify(c.phrase), "phrase %q", c.phrase)
	}
}

func TestPhrasesOf(t *testing.T) {
	got := phrasesOf("some song https://youtu.be/abc another song")
	assert.Equal(t, []string{"some song", "https://youtu.be/abc", "another song"}, got)

	got = phrasesOf("first song\nsecond song")
	assert.Equal(t, []string{"first song", "second song"}, got)

	assert.Empty(t, phrasesOf("   "))
}

func TestResolveAttachmentsFirst(t *testing.T) {
	yt := &fakeYouTube{}
	r := newTestResolver(yt, &fakeSpotify{})

	res, err := r.Resolve(context.Background(), Request{
		Query:       "some song",
		Attachments: []string{"https://cdn.example.com/a.mp3", "https://cdn.example.com/a.mp3", "https://cdn.example.com/b.mp3"},
		Requester:   media.Requester{ID: "7", DisplayName: "u"},
	})
	require.NoError(t, err)
	require.Len(t, res.Medias, 3)

	// duplicate attachment collapsed, attachments ahead of phrase results
	assert.Equal(t, media.KindURL, res.Medias[0].Kind)
	assert.Equal(t, "https://cdn.example.com/a.mp3", res.Medias[0].URL)
	assert.Equal(t, "https://cdn.example.com/b.mp3", res.Medias[1].URL)
	assert.Equal(t, "found some song", res.Medias[2].Title)
}

func TestResolveSetsRequesterEverywhere(t *testing.T) {
	r := newTestResolver(&fakeYouTube{}, &fakeSpotify{})
	req := media.Requester{ID: "9", DisplayName: "dj"}

	res, err := r.Resolve(context.Background(), Request{
		Query:     "https://www.youtube.com/playlist?list=PL123",
		Requester: req,
	})
	require.NoError(t, err)
	require.Len(t, res.Medias, 2)
	for _, m := range res.Medias {
		assert.Equal(t, req, m.Requester)
	}
}

func TestResolvePartialFailure(t *testing.T) {
	yt := &fakeYouTube{videoErr: errors.New("boom")}
	r := newTestResolver(yt, &fakeSpotify{})

	res, err := r.Resolve(context.Background(), Request{
		Query: "https://youtu.be/bad some song",
	})
	require.NoError(t, err)

	require.Len(t, res.Notices, 1)
	assert.Equal(t, "https://youtu.be/bad", res.Notices[0].Phrase)
	assert.ErrorContains(t, res.Notices[0].Err, "boom")

	// the failing phrase never blocks the others
	require.Len(t, res.Medias, 1)
	assert.Equal(t, "found some song", res.Medias[0].Title)
}

func TestResolveDuplicatePhraseSingleLookup(t *testing.T) {
	yt := &fakeYouTube{}
	r := newTestResolver(yt, &fakeSpotify{})

	res, err := r.Resolve(context.Background(), Request{
		Query: "https://youtu.be/abc https://youtu.be/abc",
	})
	require.NoError(t, err)
	assert.Len(t, res.Medias, 2)
	assert.Len(t, yt.videoCalls, 1)
}

func TestResolveDuplicateFailingPhraseSingleLookup(t *testing.T) {
	yt := &fakeYouTube{videoErr: errors.New("boom")}
	r := newTestResolver(yt, &fakeSpotify{})

	res, err := r.Resolve(context.Background(), Request{
		Query: "https://youtu.be/bad https://youtu.be/bad",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Medias)
	assert.Len(t, yt.videoCalls, 1, "a failing phrase is resolved once")
	require.Len(t, res.Notices, 1)
	assert.Equal(t, "https://youtu.be/bad", res.Notices[0].Phrase)
}

func TestResolveSpotifyDisabled(t *testing.T) {
	r := &Resolver{YouTube: &fakeYouTube{}, SoundCloud: fakeSoundCloud{}}

	res, err := r.Resolve(context.Background(), Request{
		Query: "https://open.spotify.com/track/abc123",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Medias)
	require.Len(t, res.Notices, 1)
	assert.ErrorIs(t, res.Notices[0].Err, ErrSpotifyDisabled)
}

func TestResolveSpotifyLazyRefresh(t *testing.T) {
	sp := &fakeSpotify{expired: true}
	r := newTestResolver(&fakeYouTube{}, sp)

	res, err := r.Resolve(context.Background(), Request{
		Query: "spotify:track:aaa\nspotify:track:bbb",
	})
	require.NoError(t, err)
	assert.Len(t, res.Medias, 2)
	assert.Equal(t, 1, sp.refreshes, "session refreshed once per resolve call")
}

func TestResolveSpotifyRefreshErrorHitsAllPhrases(t *testing.T) {
	sp := &fakeSpotify{expired: true, refreshErr: errors.New("auth down")}
	r := newTestResolver(&fakeYouTube{}, sp)

	res, err := r.Resolve(context.Background(), Request{
		Query: "spotify:track:aaa\nspotify:album:bbb",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Medias)
	require.Len(t, res.Notices, 2)
	for _, n := range res.Notices {
		assert.ErrorContains(t, n.Err, "auth down")
	}
	assert.Equal(t, 1, sp.refreshes)
	assert.Empty(t, sp.trackCalls)
}

func TestResolveSoundCloudSet(t *testing.T) {
	r := newTestResolver(&fakeYouTube{}, &fakeSpotify{})

	res, err := r.Resolve(context.Background(), Request{
		Query: "https://soundcloud.com/artist/sets/cool-mix",
	})
	require.NoError(t, err)
	assert.Len(t, res.Medias, 2)
	assert.Equal(t, media.KindSoundCloud, res.Medias[0].Kind)
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newTestResolver(&fakeYouTube{}, &fakeSpotify{})

	_, err := r.Resolve(ctx, Request{Query: "some song"})
	assert.ErrorIs(t, err, context.Canceled)
}
