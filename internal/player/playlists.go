package player

import (
	"context"
	"fmt"

	"github.com/iz7n/music-discord-bot/internal/media"
	"github.com/iz7n/music-discord-bot/internal/resolver"
)

// SavePlaylist persists the current track plus the upcoming queue under the
// user's playlist name, replacing any previous content.
func (p *Player) SavePlaylist(ctx context.Context, userID, name string) (int, error) {
	p.mu.Lock()
	var items []media.Media
	if p.current != nil {
		items = append(items, *p.current)
	}
	p.mu.Unlock()
	items = append(items, p.queue.Medias()...)
	if len(items) == 0 {
		return 0, ErrQueueEmpty
	}
	persisted := make([]media.Persisted, len(items))
	for i, m := range items {
		persisted[i] = m.ToPersisted()
	}
	if err := p.deps.Store.Save(ctx, userID, name, persisted); err != nil {
		return 0, fmt.Errorf("save playlist %q: %w", name, err)
	}
	return len(items), nil
}

// AddToPlaylist resolves the query and appends the results to the named
// playlist without touching the queue.
func (p *Player) AddToPlaylist(ctx context.Context, userID, name, query string, req media.Requester) (int, []resolver.Notice, error) {
	res, err := p.deps.Resolver.Resolve(ctx, resolver.Request{Query: query, Requester: req})
	if err != nil {
		return 0, res.Notices, err
	}
	if len(res.Medias) == 0 {
		return 0, res.Notices, nil
	}
	persisted := make([]media.Persisted, len(res.Medias))
	for i, m := range res.Medias {
		persisted[i] = m.ToPersisted()
	}
	if err := p.deps.Store.Add(ctx, userID, name, persisted); err != nil {
		return 0, res.Notices, fmt.Errorf("add to playlist %q: %w", name, err)
	}
	return len(res.Medias), res.Notices, nil
}

// LoadPlaylist enqueues the stored playlist and starts playback when idle.
// Entries that no longer reconstruct are skipped with a log line instead of
// failing the whole load.
func (p *Player) LoadPlaylist(ctx context.Context, userID, name string, shuffle bool, channelID string) (int, error) {
	if p.State() == StatusStopped {
		return 0, ErrStopped
	}
	rows, err := p.deps.Store.Get(ctx, userID, name)
	if err != nil {
		return 0, fmt.Errorf("load playlist %q: %w", name, err)
	}
	medias := make([]media.Media, 0, len(rows))
	for _, row := range rows {
		m, err := media.FromPersisted(row)
		if err != nil {
			p.log.Warn("skipping unplayable playlist entry", "playlist", name, "title", row.Title, "err", err)
			continue
		}
		medias = append(medias, m)
	}
	if len(medias) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	if p.status == StatusStopped {
		p.mu.Unlock()
		return 0, ErrStopped
	}
	p.queue.Enqueue(medias...)
	if shuffle {
		p.queue.Shuffle()
	}
	err = p.playIfIdleLocked(ctx, channelID)
	p.mu.Unlock()
	return len(medias), err
}

// RemoveFromPlaylist drops one entry by position, or the whole playlist when
// index is nil.
func (p *Player) RemoveFromPlaylist(ctx context.Context, userID, name string, index *int) error {
	if err := p.deps.Store.Remove(ctx, userID, name, index); err != nil {
		return fmt.Errorf("remove from playlist %q: %w", name, err)
	}
	return nil
}

// ListPlaylists returns the user's playlist names. A store failure degrades
// to an empty list so the session keeps working.
func (p *Player) ListPlaylists(ctx context.Context, userID string) ([]string, error) {
	names, err := p.deps.Store.List(ctx, userID)
	if err != nil {
		p.log.Warn("listing playlists failed", "err", err)
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	return names, nil
}

// PlaylistTracks returns the stored entries without enqueuing them, for the
// playlist browser. A store failure degrades to an empty list.
func (p *Player) PlaylistTracks(ctx context.Context, userID, name string) ([]media.Persisted, error) {
	rows, err := p.deps.Store.Get(ctx, userID, name)
	if err != nil {
		p.log.Warn("reading playlist failed", "playlist", name, "err", err)
		return nil, fmt.Errorf("read playlist %q: %w", name, err)
	}
	return rows, nil
}
