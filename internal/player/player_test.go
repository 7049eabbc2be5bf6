package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iz7n/music-discord-bot/internal/config"
	"github.com/iz7n/music-discord-bot/internal/media"
	"github.com/iz7n/music-discord-bot/internal/resolver"
	"github.com/iz7n/music-discord-bot/internal/stream"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxPlaybackFailures: 3,
		MaxVoiceReconnects:  3,
		UITimeoutSeconds:    60,
	}
}

func ytTrack(title string) media.Media {
	return media.NewYouTube("id-"+title, "https://youtu.be/"+title, title, 300, false, media.Requester{ID: "1", DisplayName: "u"})
}

// resolverFunc adapts a func into a MediaResolver.
type resolverFunc func(ctx context.Context, req resolver.Request) (resolver.Result, error)

func (f resolverFunc) Resolve(ctx context.Context, req resolver.Request) (resolver.Result, error) {
	return f(ctx, req)
}

// fixedResolver resolves every query to the given tracks.
func fixedResolver(medias ...media.Media) resolverFunc {
	return func(context.Context, resolver.Request) (resolver.Result, error) {
		return resolver.Result{Medias: medias}, nil
	}
}

type streamCall struct {
	title string
	seek  int
}

// fakeStreams hands out streams and records acquisitions. errFor marks titles
// whose acquisition fails; blockFor marks titles whose acquisition hangs
// until the attempt context is cancelled.
type fakeStreams struct {
	mu       sync.Mutex
	calls    []streamCall
	errFor   map[string]error
	blockFor map[string]bool
}

func (f *fakeStreams) ResolveStream(ctx context.Context, m media.Media, seekSec int) (*stream.Stream, error) {
	f.mu.Lock()
	f.calls = append(f.calls, streamCall{title: m.Title, seek: seekSec})
	block := f.blockFor[m.Title]
	err := f.errFor[m.Title]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &stream.Stream{Input: m.URL, Seek: seekSec}, nil
}

func (f *fakeStreams) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeStreams) callTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.title
	}
	return out
}

// fakeSession blocks in Play until the test pushes a result into finish or
// the attempt context is cancelled.
type fakeSession struct {
	mu           sync.Mutex
	plays        []*stream.Stream
	finish       chan error
	disconnected chan struct{}
	disconnects  int
	cancelDelay  time.Duration
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		finish:       make(chan error),
		disconnected: make(chan struct{}),
	}
}

func (s *fakeSession) Play(ctx context.Context, src *stream.Stream) error {
	s.mu.Lock()
	s.plays = append(s.plays, src)
	delay := s.cancelDelay
	s.mu.Unlock()
	select {
	case err := <-s.finish:
		return err
	case <-ctx.Done():
		if delay > 0 {
			time.Sleep(delay)
		}
		return ctx.Err()
	}
}

func (s *fakeSession) Disconnected() <-chan struct{} { return s.disconnected }

func (s *fakeSession) Disconnect() error {
	s.mu.Lock()
	s.disconnects++
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plays)
}

type fakeConnector struct {
	mu          sync.Mutex
	err         error
	sessions    []*fakeSession
	cancelDelay time.Duration
}

func (c *fakeConnector) Connect(ctx context.Context, guildID, channelID string) (VoiceSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s := newFakeSession()
	s.cancelDelay = c.cancelDelay
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeConnector) session(i int) *fakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.sessions) {
		return nil
	}
	return c.sessions[i]
}

func (c *fakeConnector) sessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

type fakeNotifier struct {
	mu      sync.Mutex
	notes   []string
	started []string
}

func (n *fakeNotifier) Notify(text string) {
	n.mu.Lock()
	n.notes = append(n.notes, text)
	n.mu.Unlock()
}

func (n *fakeNotifier) NowPlaying(m media.Media) {
	n.mu.Lock()
	n.started = append(n.started, m.Title)
	n.mu.Unlock()
}

func (n *fakeNotifier) allNotes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.notes...)
}

type testRig struct {
	player    *Player
	streams   *fakeStreams
	voice     *fakeConnector
	notify    *fakeNotifier
	stopCalls int
	stopMu    sync.Mutex
}

func newRig(t *testing.T, res MediaResolver) *testRig {
	t.Helper()
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
	}, func() {
		rig.stopMu.Lock()
		rig.stopCalls++
		rig.stopMu.Unlock()
	})
	t.Cleanup(rig.player.Stop)
	return rig
}

func (r *testRig) onStopCalls() int {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	return r.stopCalls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestAddStartsPlaybackWhenIdle(t *testing.T) {
	track := ytTrack("song-a")
	rig := newRig(t, fixedResolver(track))

	added, notices, err := rig.player.Add(context.Background(), AddRequest{
		Query:          "song-a",
		VoiceChannelID: "vc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Empty(t, notices)

	waitFor(t, "playback start", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})
	assert.Equal(t, StatusPlaying, rig.player.State())
	cur, ok := rig.player.Current()
	require.True(t, ok)
	assert.Equal(t, "song-a", cur.Title)
	assert.Equal(t, 0, rig.player.QueueLen(), "playing track is not part of the queue")
}

func TestAddRequiresVoiceChannelWhenIdle(t *testing.T) {
	rig := newRig(t, fixedResolver(ytTrack("song-a")))

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "song-a"})
	assert.ErrorIs(t, err, ErrNoVoiceChannel)
	assert.Equal(t, 1, rig.player.QueueLen(), "resolved tracks stay queued")
	assert.Equal(t, StatusIdle, rig.player.State())
}

func TestConnectFailureLeavesQueueIntact(t *testing.T) {
	rig := newRig(t, fixedResolver(ytTrack("song-a")))
	rig.voice.err = errors.New("voice gateway down")

	_, _, err := rig.player.Add(context.Background(), AddRequest{
		Query:          "song-a",
		VoiceChannelID: "vc-1",
	})
	require.Error(t, err)
	assert.Equal(t, 1, rig.player.QueueLen())
	assert.Equal(t, StatusIdle, rig.player.State())
}

func TestAutoAdvanceWithLoop(t *testing.T) {
	a, b := ytTrack("song-a"), ytTrack("song-b")
	rig := newRig(t, fixedResolver(a, b))

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)

	on, err := rig.player.ToggleLoop()
	require.NoError(t, err)
	require.True(t, on)

	waitFor(t, "first track", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})
	rig.voice.session(0).finish <- nil

	waitFor(t, "second track", func() bool { return rig.voice.session(0).playCount() == 2 })
	cur, ok := rig.player.Current()
	require.True(t, ok)
	assert.Equal(t, "song-b", cur.Title)

	// the finished track went back to the tail, once
	snap := rig.player.QueueSnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "song-a", snap[0].Title)
}

func TestErroredTrackIsNotReQueued(t *testing.T) {
	a, b := ytTrack("song-a"), ytTrack("song-b")
	rig := newRig(t, fixedResolver(a, b))
	rig.streams.errFor["song-a"] = errors.New("extractor exploded")

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)
	_, err = rig.player.ToggleLoop()
	require.NoError(t, err)

	waitFor(t, "advance past errored track", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})
	cur, ok := rig.player.Current()
	require.True(t, ok)
	assert.Equal(t, "song-b", cur.Title)
	assert.Empty(t, rig.player.QueueSnapshot(), "errored track is discarded, not re-queued")

	notes := rig.notify.allNotes()
	require.NotEmpty(t, notes)
	assert.Contains(t, notes[0], "song-a")
}

func TestRepeatedFailuresHaltAdvance(t *testing.T) {
	tracks := []media.Media{ytTrack("f1"), ytTrack("f2"), ytTrack("f3"), ytTrack("keep")}
	rig := newRig(t, fixedResolver(tracks...))
	for _, m := range tracks {
		rig.streams.errFor[m.Title] = errors.New("no stream")
	}

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)

	waitFor(t, "halt after repeated failures", func() bool {
		return rig.player.State() == StatusIdle && rig.streams.callCount() == 3
	})

	// third failure stops the advance; the rest of the queue survives
	assert.Equal(t, []string{"f1", "f2", "f3"}, rig.streams.callTitles())
	snap := rig.player.QueueSnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "keep", snap[0].Title)
	_, ok := rig.player.Current()
	assert.False(t, ok)
}

func TestNextDiscardsInFlightAcquisition(t *testing.T) {
	a, b := ytTrack("slow"), ytTrack("song-b")
	rig := newRig(t, fixedResolver(a, b))
	rig.streams.blockFor["slow"] = true

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)

	waitFor(t, "acquisition in flight", func() bool { return rig.streams.callCount() == 1 })

	next, ok, err := rig.player.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "song-b", next.Title)

	waitFor(t, "second track playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})
	// the abandoned acquisition never reached the voice session
	assert.Equal(t, "song-b", rig.voice.session(0).plays[0].Input[len("https://youtu.be/"):])
}

func TestNextOnEmptyQueueGoesIdle(t *testing.T) {
	rig := newRig(t, fixedResolver(ytTrack("song-a")))

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)
	waitFor(t, "playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})

	_, ok, err := rig.player.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StatusIdle, rig.player.State())
	_, hasCurrent := rig.player.Current()
	assert.False(t, hasCurrent)
}

func TestNextWithNothingPlaying(t *testing.T) {
	rig := newRig(t, fixedResolver())
	_, _, err := rig.player.Next(context.Background())
	assert.ErrorIs(t, err, ErrNothingPlaying)
}

func TestPlayNowJumpsTheQueue(t *testing.T) {
	a, b := ytTrack("song-a"), ytTrack("song-b")
	rig := newRig(t, fixedResolver(a, b))

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)
	waitFor(t, "playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})

	urgent := ytTrack("urgent")
	require.NoError(t, rig.player.PlayMedia(context.Background(), urgent, "vc-1"))

	waitFor(t, "urgent track", func() bool {
		cur, ok := rig.player.Current()
		return ok && cur.Title == "urgent"
	})
	// song-b still waits its turn
	snap := rig.player.QueueSnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "song-b", snap[0].Title)
}

func TestPauseAndResume(t *testing.T) {
	rig := newRig(t, fixedResolver(ytTrack("song-a")))

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)
	waitFor(t, "playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})

	require.NoError(t, rig.player.Pause())
	assert.Equal(t, StatusPaused, rig.player.State())
	assert.ErrorIs(t, rig.player.Pause(), ErrNothingPlaying)

	require.NoError(t, rig.player.Resume())
	waitFor(t, "resumed", func() bool { return rig.voice.session(0).playCount() == 2 })
	assert.Equal(t, StatusPlaying, rig.player.State())
	assert.ErrorIs(t, rig.player.Resume(), ErrAlreadyPlaying)
}

func TestSeekValidation(t *testing.T) {
	rig := newRig(t, fixedResolver(ytTrack("song-a")))

	assert.ErrorIs(t, rig.player.Seek(context.Background(), 10), ErrNothingPlaying)

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)
	waitFor(t, "playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})

	// past the 300s duration
	assert.ErrorIs(t, rig.player.Seek(context.Background(), 301), ErrSeekPastEnd)

	require.NoError(t, rig.player.Seek(context.Background(), 42))
	waitFor(t, "seeked stream", func() bool {
		rig.streams.mu.Lock()
		defer rig.streams.mu.Unlock()
		return len(rig.streams.calls) == 2 && rig.streams.calls[1].seek == 42
	})
}

func TestSeekRejectsUnseekableMedia(t *testing.T) {
	rig := newRig(t, fixedResolver())

	tone := media.NewTone(440, 5, media.Requester{})
	require.NoError(t, rig.player.PlayMedia(context.Background(), tone, "vc-1"))
	waitFor(t, "tone playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})

	assert.ErrorIs(t, rig.player.Seek(context.Background(), 1), ErrNotSeekable)
}

func TestStopIsIdempotent(t *testing.T) {
	rig := newRig(t, fixedResolver(ytTrack("song-a"), ytTrack("song-b")))

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)
	waitFor(t, "playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})

	rig.player.Stop()
	rig.player.Stop()

	assert.Equal(t, StatusStopped, rig.player.State())
	assert.Equal(t, 1, rig.onStopCalls(), "teardown fires exactly once")
	assert.Equal(t, 0, rig.player.QueueLen())
	assert.False(t, rig.player.Loop())

	sess := rig.voice.session(0)
	sess.mu.Lock()
	disconnects := sess.disconnects
	sess.mu.Unlock()
	assert.Equal(t, 1, disconnects)

	// a stopped player refuses further commands
	_, _, err = rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, rig.player.Resume(), ErrStopped)
	_, err = rig.player.ToggleLoop()
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStopStaysTerminalDuringSkip(t *testing.T) {
	rig := newRig(t, fixedResolver(ytTrack("song-a"), ytTrack("song-b")))
	// the voice session lingers after cancellation, holding Next in its
	// wait for the abandoned play goroutine
	rig.voice.cancelDelay = 200 * time.Millisecond

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)
	waitFor(t, "playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})

	nextDone := make(chan error, 1)
	go func() {
		_, _, nerr := rig.player.Next(context.Background())
		nextDone <- nerr
	}()
	time.Sleep(50 * time.Millisecond)
	rig.player.Stop()

	nerr := <-nextDone
	assert.ErrorIs(t, nerr, ErrStopped)
	assert.Equal(t, StatusStopped, rig.player.State(), "a completed stop is final")
	_, hasCurrent := rig.player.Current()
	assert.False(t, hasCurrent)
	assert.Equal(t, 1, rig.onStopCalls())
}

func TestReconnectRestartsCurrentTrack(t *testing.T) {
	rig := newRig(t, fixedResolver(ytTrack("song-a")))

	_, _, err := rig.player.Add(context.Background(), AddRequest{Query: "x", VoiceChannelID: "vc-1"})
	require.NoError(t, err)
	waitFor(t, "playing", func() bool {
		s := rig.voice.session(0)
		return s != nil && s.playCount() == 1
	})

	close(rig.voice.session(0).disconnected)

	waitFor(t, "reconnect and restart", func() bool {
		s := rig.voice.session(1)
		return s != nil && s.playCount() == 1
	})
	assert.Equal(t, StatusPlaying, rig.player.State())
	cur, ok := rig.player.Current()
	require.True(t, ok)
	assert.Equal(t, "song-a", cur.Title)
}

func TestPanelSupersedes(t *testing.T) {
	rig := newRig(t, fixedResolver())

	var first, second int
	rig.player.SetPanel(func() { first++ })
	rig.player.SetPanel(func() { second++ })
	assert.Equal(t, 1, first, "previous panel cancelled on replace")
	assert.Equal(t, 0, second)

	rig.player.ClearPanel()
	assert.Equal(t, 1, second)

	rig.player.Stop()
	var afterStop int
	rig.player.SetPanel(func() { afterStop++ })
	assert.Equal(t, 1, afterStop, "panels die immediately on a stopped player")
}
