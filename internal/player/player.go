// Package player drives one playback session per guild: a mutex-guarded
// state machine over a queue, with network work kept off the lock and an
// internal event inbox for transport callbacks.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iz7n/music-discord-bot/internal/config"
	"github.com/iz7n/music-discord-bot/internal/media"
	"github.com/iz7n/music-discord-bot/internal/queue"
	"github.com/iz7n/music-discord-bot/internal/resolver"
)

const (
	voiceConnectTimeout = 10 * time.Second
	playStopWait        = 2 * time.Second
)

type Player struct {
	cfg       *config.Config
	sessionID string
	deps      Deps
	log       *slog.Logger

	events chan event
	quit   chan struct{}

	mu          sync.Mutex
	status      Status
	queue       *queue.Queue
	current     *media.Media
	conn        VoiceSession
	channelID   string
	epoch       uint64
	curPlay     *playSession
	position    int // seconds; authoritative while paused
	failures    int
	reconnects  int
	onStop      func()
	panelCancel func()
}

// playSession is one play attempt. Its epoch is the generation token: a
// result arriving after the player moved on carries a stale epoch and is
// dropped instead of started into playback.
type playSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}

	epoch     uint64
	media     media.Media
	seek      int
	startedAt time.Time // zero until playback actually begins
}

// New constructs a player for one session and starts its event loop. onStop
// fires exactly once when the player reaches Stopped.
func New(cfg *config.Config, sessionID string, deps Deps, onStop func()) *Player {
	p := &Player{
		cfg:       cfg,
		sessionID: sessionID,
		deps:      deps,
		log:       slog.With("guildID", sessionID),
		events:    make(chan event, 8),
		quit:      make(chan struct{}),
		status:    StatusIdle,
		queue:     queue.New(),
		onStop:    onStop,
	}
	go p.run()
	return p
}

func (p *Player) run() {
	for {
		select {
		case <-p.quit:
			return
		case ev := <-p.events:
			switch ev.kind {
			case evTrackFinished:
				p.handleTrackEnd(ev.epoch, nil)
			case evTrackErrored:
				p.handleTrackEnd(ev.epoch, ev.err)
			case evConnectionLost:
				p.handleConnectionLost()
			}
		}
	}
}

func (p *Player) post(ev event) {
	select {
	case p.events <- ev:
	case <-p.quit:
	}
}

// AddRequest is the input of Add and PlayNow.
type AddRequest struct {
	Query          string
	Attachments    []string
	Requester      media.Requester
	VoiceChannelID string
	ShuffleAfter   bool
}

// Add resolves the request, appends the results to the queue tail and starts
// playback when idle. Returns how many tracks were added plus the per-phrase
// resolution notices.
func (p *Player) Add(ctx context.Context, req AddRequest) (int, []resolver.Notice, error) {
	if p.State() == StatusStopped {
		return 0, nil, ErrStopped
	}
	res, err := p.deps.Resolver.Resolve(ctx, resolver.Request{
		Query:       req.Query,
		Attachments: req.Attachments,
		Requester:   req.Requester,
	})
	if err != nil {
		return 0, res.Notices, err
	}
	if len(res.Medias) == 0 {
		return 0, res.Notices, nil
	}

	p.mu.Lock()
	if p.status == StatusStopped {
		p.mu.Unlock()
		return 0, res.Notices, ErrStopped
	}
	p.queue.Enqueue(res.Medias...)
	if req.ShuffleAfter {
		p.queue.Shuffle()
	}
	err = p.playIfIdleLocked(ctx, req.VoiceChannelID)
	p.mu.Unlock()
	return len(res.Medias), res.Notices, err
}

// PlayNow resolves the request, inserts the results at the queue head and
// forces an advance, abandoning whatever is currently playing.
func (p *Player) PlayNow(ctx context.Context, req AddRequest) (int, []resolver.Notice, error) {
	if p.State() == StatusStopped {
		return 0, nil, ErrStopped
	}
	res, err := p.deps.Resolver.Resolve(ctx, resolver.Request{
		Query:       req.Query,
		Attachments: req.Attachments,
		Requester:   req.Requester,
	})
	if err != nil {
		return 0, res.Notices, err
	}
	if len(res.Medias) == 0 {
		return 0, res.Notices, nil
	}

	p.mu.Lock()
	if p.status == StatusStopped {
		p.mu.Unlock()
		return 0, res.Notices, ErrStopped
	}
	p.queue.EnqueueNow(res.Medias...)
	err = p.forceAdvanceLocked(ctx, req.VoiceChannelID)
	p.mu.Unlock()
	return len(res.Medias), res.Notices, err
}

// PlayMedia inserts an already-resolved media at the queue head and forces
// an advance. Used by the soundboard and tone commands.
func (p *Player) PlayMedia(ctx context.Context, m media.Media, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusStopped {
		return ErrStopped
	}
	p.queue.EnqueueNow(m)
	return p.forceAdvanceLocked(ctx, channelID)
}

// forceAdvanceLocked abandons the current track and starts the queue head,
// connecting first when needed. Caller holds p.mu.
func (p *Player) forceAdvanceLocked(ctx context.Context, channelID string) error {
	if p.conn == nil {
		if channelID == "" {
			return ErrNoVoiceChannel
		}
		if err := p.connectLocked(ctx, channelID); err != nil {
			return err
		}
		if p.status == StatusStopped {
			return ErrStopped
		}
	}
	if p.stopPlayLocked() {
		return ErrStopped
	}
	p.position = 0
	next, ok := p.queue.Next()
	if !ok {
		p.status = StatusIdle
		p.current = nil
		return nil
	}
	p.current = &next
	p.startLocked(next, 0)
	return nil
}

// Next skips to the next queued track, discarding the current one. Returns
// the track that started, or ok=false when the queue ran out and the player
// went idle.
func (p *Player) Next(ctx context.Context) (media.Media, bool, error) {
	p.mu.Lock()
	if p.status == StatusStopped {
		p.mu.Unlock()
		return media.Media{}, false, ErrStopped
	}
	if p.current == nil && p.queue.Len() == 0 {
		p.mu.Unlock()
		return media.Media{}, false, ErrNothingPlaying
	}
	if p.stopPlayLocked() {
		p.mu.Unlock()
		return media.Media{}, false, ErrStopped
	}
	p.position = 0
	next, ok := p.queue.Next()
	if !ok {
		p.status = StatusIdle
		p.current = nil
		p.mu.Unlock()
		p.presenceClear()
		return media.Media{}, false, nil
	}
	p.current = &next
	p.startLocked(next, 0)
	p.mu.Unlock()
	return next, true, nil
}

// Seek reissues the current track's stream at posSec. Only seek-capable
// media accept it.
func (p *Player) Seek(ctx context.Context, posSec int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusStopped {
		return ErrStopped
	}
	if p.current == nil || (p.status != StatusPlaying && p.status != StatusPaused) {
		return ErrNothingPlaying
	}
	cur := *p.current
	if !cur.Seekable() {
		return ErrNotSeekable
	}
	if posSec < 0 {
		posSec = 0
	}
	if cur.Duration > 0 && posSec > cur.Duration {
		return ErrSeekPastEnd
	}
	if p.stopPlayLocked() {
		return ErrStopped
	}
	p.position = posSec
	p.startLocked(cur, posSec)
	return nil
}

func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusPlaying {
		return ErrNothingPlaying
	}
	p.position = p.positionLocked()
	if p.stopPlayLocked() {
		return ErrStopped
	}
	p.status = StatusPaused
	return nil
}

func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusStopped {
		return ErrStopped
	}
	if p.status == StatusPlaying {
		return ErrAlreadyPlaying
	}
	if p.current == nil {
		return ErrNothingPlaying
	}
	cur := *p.current
	seek := 0
	if cur.Seekable() {
		seek = p.position
	}
	p.startLocked(cur, seek)
	return nil
}

// Stop is terminal and idempotent: the voice session is released, the queue
// cleared, loop disabled and the teardown callback fired exactly once.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.status == StatusStopped {
		p.mu.Unlock()
		return
	}
	p.status = StatusStopped
	p.stopPlayLocked()
	p.current = nil
	p.position = 0
	p.queue.Clear()
	p.queue.SetLoop(false)
	conn := p.conn
	p.conn = nil
	onStop := p.onStop
	p.onStop = nil
	panel := p.panelCancel
	p.panelCancel = nil
	p.mu.Unlock()

	close(p.quit)
	if panel != nil {
		panel()
	}
	if conn != nil {
		_ = conn.Disconnect()
	}
	p.presenceClear()
	if onStop != nil {
		onStop()
	}
	p.log.Info("player stopped")
}

func (p *Player) ToggleLoop() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusStopped {
		return false, ErrStopped
	}
	return p.queue.ToggleLoop(), nil
}

func (p *Player) Shuffle() {
	p.queue.Shuffle()
}

func (p *Player) Move(from, to int) error {
	return p.queue.Move(from, to)
}

func (p *Player) Remove(indices ...int) int {
	return p.queue.Remove(indices...)
}

func (p *Player) ClearQueue() int {
	return p.queue.Clear()
}

// QueueSnapshot returns the upcoming tracks; the current one is not part of
// the queue.
func (p *Player) QueueSnapshot() []media.Media {
	return p.queue.Medias()
}

func (p *Player) QueueLen() int {
	return p.queue.Len()
}

func (p *Player) Loop() bool {
	return p.queue.Loop()
}

// OnQueueChange registers a presentation observer for queue mutations. The
// callback must not call back into the player.
func (p *Player) OnQueueChange(fn func()) {
	p.queue.SetOnChange(fn)
}

func (p *Player) State() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Player) Current() (media.Media, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return media.Media{}, false
	}
	return *p.current, true
}

// Position reports the playback position of the current track in seconds.
func (p *Player) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() int {
	if p.curPlay != nil && !p.curPlay.startedAt.IsZero() {
		return p.curPlay.seek + int(time.Since(p.curPlay.startedAt).Seconds())
	}
	return p.position
}

// Lyrics fetches lyrics for the query, or for the current track when the
// query is empty.
func (p *Player) Lyrics(ctx context.Context, query string) (string, error) {
	if p.deps.Lyrics == nil {
		return "", ErrNothingPlaying
	}
	title, artist := query, ""
	if query == "" {
		cur, ok := p.Current()
		if !ok {
			return "", ErrNothingPlaying
		}
		title, artist = cur.Title, cur.Artist
	}
	return p.deps.Lyrics.Fetch(ctx, title, artist)
}

// SetPanel registers the cancel function of an ephemeral UI panel. At most
// one panel is live per player; the previous one is cancelled on replace.
func (p *Player) SetPanel(cancel func()) {
	p.mu.Lock()
	prev := p.panelCancel
	p.panelCancel = cancel
	stopped := p.status == StatusStopped
	p.mu.Unlock()
	if prev != nil {
		prev()
	}
	if stopped && cancel != nil {
		cancel()
	}
}

func (p *Player) ClearPanel() {
	p.mu.Lock()
	prev := p.panelCancel
	p.panelCancel = nil
	p.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// playIfIdleLocked starts playback when the player sits idle with a
// non-empty queue, connecting first when needed. Caller holds p.mu; the lock
// is released around the voice handshake.
func (p *Player) playIfIdleLocked(ctx context.Context, channelID string) error {
	if p.status != StatusIdle || p.curPlay != nil {
		return nil
	}
	if p.queue.Len() == 0 {
		return nil
	}
	if p.conn == nil {
		if channelID == "" {
			return ErrNoVoiceChannel
		}
		if err := p.connectLocked(ctx, channelID); err != nil {
			return err
		}
		if p.status == StatusStopped {
			return ErrStopped
		}
	}
	next, ok := p.queue.Next()
	if !ok {
		p.status = StatusIdle
		return nil
	}
	p.current = &next
	p.startLocked(next, 0)
	return nil
}

// connectLocked joins the voice channel. Caller holds p.mu; the lock is
// released for the handshake. A connect failure leaves the player idle with
// the queue intact.
func (p *Player) connectLocked(ctx context.Context, channelID string) error {
	if p.conn != nil && p.channelID == channelID {
		return nil
	}
	old := p.conn
	p.conn = nil
	p.status = StatusConnecting
	p.mu.Unlock()

	if old != nil {
		_ = old.Disconnect()
	}
	cctx, cancel := context.WithTimeout(ctx, voiceConnectTimeout)
	conn, err := p.deps.Voice.Connect(cctx, p.sessionID, channelID)
	cancel()

	p.mu.Lock()
	if err != nil {
		if p.status == StatusConnecting {
			p.status = StatusIdle
		}
		return fmt.Errorf("voice connect: %w", err)
	}
	if p.status == StatusStopped {
		p.mu.Unlock()
		_ = conn.Disconnect()
		p.mu.Lock()
		return ErrStopped
	}
	p.conn = conn
	p.channelID = channelID
	p.reconnects = 0
	go p.watchVoice(conn)
	return nil
}

func (p *Player) watchVoice(conn VoiceSession) {
	select {
	case <-p.quit:
	case <-conn.Disconnected():
		p.mu.Lock()
		stale := p.conn != conn
		p.mu.Unlock()
		if stale {
			return
		}
		p.post(event{kind: evConnectionLost})
	}
}

// startLocked opens a new play attempt for m. Caller holds p.mu.
func (p *Player) startLocked(m media.Media, seek int) {
	p.epoch++
	ctx, cancel := context.WithCancel(context.Background())
	sess := &playSession{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
		epoch:  p.epoch,
		media:  m,
		seek:   seek,
	}
	p.curPlay = sess
	p.status = StatusPlaying
	go p.playTrack(sess)
}

// playTrack acquires the stream and plays it through the voice session. It
// runs off the lock; the commit check drops the attempt when the player
// moved on while the acquisition was in flight.
func (p *Player) playTrack(sess *playSession) {
	defer close(sess.doneCh)

	src, err := p.deps.Streams.ResolveStream(sess.ctx, sess.media, sess.seek)
	if err != nil {
		if sess.ctx.Err() != nil {
			return
		}
		p.log.Warn("stream acquisition failed", "title", sess.media.Title, "err", err)
		p.post(event{kind: evTrackErrored, epoch: sess.epoch, err: err})
		return
	}

	p.mu.Lock()
	if p.curPlay != sess {
		p.mu.Unlock()
		src.Close()
		return
	}
	conn := p.conn
	p.status = StatusPlaying
	p.failures = 0
	sess.startedAt = time.Now()
	p.mu.Unlock()

	if conn == nil {
		src.Close()
		p.post(event{kind: evTrackErrored, epoch: sess.epoch, err: errors.New("no voice session")})
		return
	}

	p.presenceNow(sess.media.Title)
	p.deps.Notify.NowPlaying(sess.media)
	p.log.Info("playback started", "title", sess.media.Title, "seek", sess.seek)

	err = conn.Play(sess.ctx, src)
	src.Close()
	if sess.ctx.Err() != nil {
		return
	}
	if err != nil {
		p.post(event{kind: evTrackErrored, epoch: sess.epoch, err: err})
		return
	}
	p.post(event{kind: evTrackFinished, epoch: sess.epoch})
}

// handleTrackEnd advances after a finished or errored track. Events with a
// stale epoch belong to an abandoned attempt and are dropped.
func (p *Player) handleTrackEnd(epoch uint64, trackErr error) {
	p.mu.Lock()
	if p.status == StatusStopped || p.curPlay == nil || p.curPlay.epoch != epoch {
		p.mu.Unlock()
		return
	}
	finished := p.curPlay.media
	p.curPlay = nil
	p.position = 0

	if trackErr == nil {
		if p.queue.Loop() {
			p.queue.Enqueue(finished)
		}
	} else {
		p.failures++
		failures := p.failures
		if failures >= p.cfg.MaxPlaybackFailures {
			p.status = StatusIdle
			p.current = nil
			p.mu.Unlock()
			p.log.Warn("halting auto-advance after repeated failures", "failures", failures)
			p.notifyf("Playback kept failing (%d in a row), stopping here. The queue is untouched.", failures)
			p.presenceClear()
			return
		}
		p.mu.Unlock()
		p.notifyf("Skipping %s: %v", finished.Title, trackErr)
		p.mu.Lock()
		if p.status == StatusStopped || p.curPlay != nil {
			p.mu.Unlock()
			return
		}
	}

	next, ok := p.queue.Next()
	if !ok {
		p.status = StatusIdle
		p.current = nil
		p.mu.Unlock()
		p.presenceClear()
		return
	}
	p.current = &next
	p.startLocked(next, 0)
	p.mu.Unlock()
}

// handleConnectionLost drives the bounded reconnect. Exhausted attempts are
// fatal for the session.
func (p *Player) handleConnectionLost() {
	p.mu.Lock()
	if p.status == StatusStopped || p.channelID == "" {
		p.mu.Unlock()
		return
	}
	p.position = p.positionLocked()
	pos := p.position
	old := p.conn
	p.conn = nil
	channelID := p.channelID
	stopped := p.stopPlayLocked()
	cur := p.current
	if !stopped {
		p.status = StatusConnecting
	}
	p.mu.Unlock()

	if old != nil {
		_ = old.Disconnect()
	}
	if stopped {
		return
	}

	var conn VoiceSession
	var err error
	for {
		p.mu.Lock()
		if p.status == StatusStopped {
			p.mu.Unlock()
			return
		}
		if p.reconnects >= p.cfg.MaxVoiceReconnects {
			p.mu.Unlock()
			err = errors.New("reconnect attempts exhausted")
			break
		}
		p.reconnects++
		attempt := p.reconnects
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), voiceConnectTimeout)
		conn, err = p.deps.Voice.Connect(ctx, p.sessionID, channelID)
		cancel()
		if err == nil {
			p.log.Info("voice reconnected", "attempt", attempt)
			break
		}
		p.log.Warn("voice reconnect failed", "attempt", attempt, "err", err)
		select {
		case <-p.quit:
			return
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		p.notifyf("Lost the voice connection and could not get it back.")
		p.Stop()
		return
	}

	p.mu.Lock()
	if p.status == StatusStopped {
		p.mu.Unlock()
		_ = conn.Disconnect()
		return
	}
	p.conn = conn
	go p.watchVoice(conn)
	if cur != nil {
		seek := 0
		if cur.Seekable() {
			seek = pos
		}
		p.current = cur
		p.startLocked(*cur, seek)
		p.mu.Unlock()
		return
	}
	p.status = StatusIdle
	p.mu.Unlock()
}

// stopPlayLocked cancels the current play attempt and waits for its
// goroutine, releasing the lock while waiting. Caller holds p.mu. Reports
// whether the player reached Stopped while the lock was released; callers
// other than Stop must not mutate state when it returns true.
func (p *Player) stopPlayLocked() bool {
	if p.curPlay == nil {
		return p.status == StatusStopped
	}
	sess := p.curPlay
	p.curPlay = nil
	sess.cancel()

	done := sess.doneCh
	p.mu.Unlock()
	select {
	case <-done:
	case <-time.After(playStopWait):
	}
	p.mu.Lock()
	return p.status == StatusStopped
}

func (p *Player) notifyf(format string, args ...any) {
	if p.deps.Notify == nil {
		return
	}
	p.deps.Notify.Notify(fmt.Sprintf(format, args...))
}

func (p *Player) presenceNow(title string) {
	if p.deps.Presence != nil {
		p.deps.Presence.NowPlaying(title)
	}
}

func (p *Player) presenceClear() {
	if p.deps.Presence != nil {
		p.deps.Presence.Clear()
	}
}
