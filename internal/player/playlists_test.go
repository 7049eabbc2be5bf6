package player

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iz7n/music-discord-bot/internal/media"
)

// memStore is an in-memory PlaylistStore keyed by user and name.
type memStore struct {
	mu    sync.Mutex
	lists map[string][]media.Persisted
}

func newMemStore() *memStore {
	return &memStore{lists: make(map[string][]media.Persisted)}
}

func (s *memStore) key(userID, name string) string { return userID + "/" + name }

func (s *memStore) Get(_ context.Context, userID, name string) ([]media.Persisted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]media.Persisted{}, s.lists[s.key(userID, name)]...), nil
}

func (s *memStore) List(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for k := range s.lists {
		if len(k) > len(userID) && k[:len(userID)] == userID {
			names = append(names, k[len(userID)+1:])
		}
	}
	return names, nil
}

func (s *memStore) Save(_ context.Context, userID, name string, items []media.Persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[s.key(userID, name)] = append([]media.Persisted{}, items...)
	return nil
}

func (s *memStore) Add(_ context.Context, userID, name string, items []media.Persisted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(userID, name)
	s.lists[k] = append(s.lists[k], items...)
	return nil
}

func (s *memStore) Remove(_ context.Context, userID, name string, index *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(userID, name)
	if index == nil {
		delete(s.lists, k)
		return nil
	}
	items := s.lists[k]
	i := *index
	s.lists[k] = append(items[:i], items[i+1:]...)
	return nil
}

func newPlaylistRig(t *testing.T, res MediaResolver) (*testRig, *memStore) {
	t.Helper()
	store := newMemStore()
	rig := &testRig{
		streams: &fakeStreams{errFor: map[string]error{}, blockFor: map[string]bool{}},
		voice:   &fakeConnector{},
		notify:  &fakeNotifier{},
	}
	rig.player = New(testConfig(), "guild-1", Deps{
		Resolver: res,
		Streams:  rig.streams,
		Voice:    rig.voice,
		Notify:   rig.notify,
		Store:    store,
	}, func() {})
	t.Cleanup(rig.player.Stop)
	return rig, store
}

func TestSavePlaylistIncludesCurrentTrack(t *testing.T) {
	a, b := ytTrack("song-a"), ytTrack("song-b")
	rig, store := newPlaylistRig(t, fixedResolver(a, b))

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)
	waitFor(t, "playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})

	n, err := rig.player.SavePlaylist(context.Background(), "user-1", "bangers")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := store.Get(context.Background(), "user-1", "bangers")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "song-a", rows[0].Title)
	assert.Equal(t, "song-b", rows[1].Title)
}

func TestSavePlaylistEmpty(t *testing.T) {
	rig, _ := newPlaylistRig(t, fixedResolver())
	_, err := rig.player.SavePlaylist(context.Background(), "user-1", "empty")
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestAddToPlaylistDoesNotTouchQueue(t *testing.T) {
	rig, store := newPlaylistRig(t, fixedResolver(ytTrack("song-a")))

	n, notices, err := rig.player.AddToPlaylist(context.Background(), "user-1", "later", "song-a", media.Requester{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, notices)
	assert.Equal(t, 0, rig.player.QueueLen())

	rows, err := store.Get(context.Background(), "user-1", "later")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestLoadPlaylistEnqueuesAndStarts(t *testing.T) {
	rig, store := newPlaylistRig(t, fixedResolver())

	items := []media.Persisted{
		ytTrack("song-a").ToPersisted(),
		ytTrack("song-b").ToPersisted(),
	}
	require.NoError(t, store.Save(context.Background(), "user-1", "mix", items))

	n, err := rig.player.LoadPlaylist(context.Background(), "user-1", "mix", false, "vc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	waitFor(t, "playback from playlist", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})
	cur, ok := rig.player.Current()
	require.True(t, ok)
	assert.Equal(t, "song-a", cur.Title)
	assert.Equal(t, 1, rig.player.QueueLen())
}

func TestLoadPlaylistSkipsBrokenRows(t *testing.T) {
	rig, store := newPlaylistRig(t, fixedResolver())

	items := []media.Persisted{
		ytTrack("song-a").ToPersisted(),
		{Kind: "cassette", Locator: "???", Title: "relic"},
	}
	require.NoError(t, store.Save(context.Background(), "user-1", "mix", items))

	n, err := rig.player.LoadPlaylist(context.Background(), "user-1", "mix", false, "vc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "unreconstructable rows are skipped, not fatal")
}

func TestRemoveFromPlaylistWhole(t *testing.T) {
	rig, store := newPlaylistRig(t, fixedResolver())
	require.NoError(t, store.Save(context.Background(), "user-1", "mix", []media.Persisted{ytTrack("a").ToPersisted()}))

	require.NoError(t, rig.player.RemoveFromPlaylist(context.Background(), "user-1", "mix", nil))
	rows, err := store.Get(context.Background(), "user-1", "mix")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
