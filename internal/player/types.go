package player

import (
	"context"
	"errors"

	"github.com/iz7n/music-discord-bot/internal/media"
	"github.com/iz7n/music-discord-bot/internal/resolver"
	"github.com/iz7n/music-discord-bot/internal/stream"
)

// Status is the playback state of one player. Stopped is terminal; a new
// command recreates a fresh player through the manager.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusPlaying
	StatusPaused
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	}
	return "unknown"
}

var (
	ErrStopped        = errors.New("player is stopped")
	ErrNothingPlaying = errors.New("nothing is playing")
	ErrAlreadyPlaying = errors.New("already playing")
	ErrNotSeekable    = errors.New("this track does not support seeking")
	ErrSeekPastEnd    = errors.New("seek position is past the end of the track")
	ErrNoVoiceChannel = errors.New("no voice channel to join")
	ErrQueueEmpty     = errors.New("the queue is empty")
)

// MediaResolver turns raw user input into playable media descriptors.
type MediaResolver interface {
	Resolve(ctx context.Context, req resolver.Request) (resolver.Result, error)
}

// StreamResolver is the streaming-provider capability. Acquisition is
// network-bound and must never run under the player lock.
type StreamResolver interface {
	ResolveStream(ctx context.Context, m media.Media, seekSec int) (*stream.Stream, error)
}

// VoiceSession is a live voice transport for one channel. Play blocks until
// the source is exhausted, errors, or ctx is cancelled.
type VoiceSession interface {
	Play(ctx context.Context, src *stream.Stream) error
	Disconnected() <-chan struct{}
	Disconnect() error
}

type VoiceConnector interface {
	Connect(ctx context.Context, guildID, channelID string) (VoiceSession, error)
}

// Notifier is the user-facing notification sink. Notify supersedes the
// previous transient notice; NowPlaying announces a track start.
type Notifier interface {
	Notify(text string)
	NowPlaying(m media.Media)
}

// PresenceReporter mirrors the current track into the bot presence. Shared
// across sessions, best-effort, allowed to be racy.
type PresenceReporter interface {
	NowPlaying(title string)
	Clear()
}

type PlaylistStore interface {
	Get(ctx context.Context, userID, name string) ([]media.Persisted, error)
	List(ctx context.Context, userID string) ([]string, error)
	Save(ctx context.Context, userID, name string, items []media.Persisted) error
	Add(ctx context.Context, userID, name string, items []media.Persisted) error
	Remove(ctx context.Context, userID, name string, index *int) error
}

type LyricsProvider interface {
	Fetch(ctx context.Context, title, artist string) (string, error)
}

// Deps are the injected collaborators of a player. Presence and Lyrics may
// be nil; everything else is required.
type Deps struct {
	Resolver MediaResolver
	Streams  StreamResolver
	Voice    VoiceConnector
	Notify   Notifier
	Presence PresenceReporter
	Store    PlaylistStore
	Lyrics   LyricsProvider
}

type eventKind int

const (
	evTrackFinished eventKind = iota
	evTrackErrored
	evConnectionLost
)

// event is the internal inbox entry: transport callbacks are translated into
// these and consumed by the per-player run loop.
type event struct {
	kind  eventKind
	epoch uint64
	err   error
}
