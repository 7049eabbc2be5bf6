// Package repository persists user playlists in sqlite. Each entry stores
// the provider tag and locator so tracks reconstruct without a network call.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iz7n/music-discord-bot/internal/media"
)

var ErrPlaylistNotFound = errors.New("playlist not found")

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) playlistID(ctx context.Context, userID, name string) (int64, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id FROM playlists WHERE user_id=? AND name=?`, userID, name)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrPlaylistNotFound
		}
		return 0, err
	}
	return id, nil
}

// Get returns the playlist's entries in stored order.
func (r *Repo) Get(ctx context.Context, userID, name string) ([]media.Persisted, error) {
	id, err := r.playlistID(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, locator, title, duration, requester_id, requester_name
		FROM playlist_tracks WHERE playlist_id=? ORDER BY position ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []media.Persisted
	for rows.Next() {
		var p media.Persisted
		if err := rows.Scan(&p.Kind, &p.Locator, &p.Title, &p.Duration, &p.RequesterID, &p.RequesterName); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// List returns the user's playlist names sorted alphabetically.
func (r *Repo) List(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM playlists WHERE user_id=? ORDER BY name ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Save replaces the playlist's content with items, creating the playlist
// when it does not exist yet.
func (r *Repo) Save(ctx context.Context, userID, name string, items []media.Persisted) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlists(user_id, name) VALUES (?,?)`, userID, name); err != nil {
		return err
	}
	row := tx.QueryRowContext(ctx,
		`SELECT id FROM playlists WHERE user_id=? AND name=?`, userID, name)
	var id int64
	if err := row.Scan(&id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM playlist_tracks WHERE playlist_id=?`, id); err != nil {
		return err
	}
	if err := insertTracks(ctx, tx, id, 0, items); err != nil {
		return err
	}
	return tx.Commit()
}

// Add appends items to the playlist, creating it when missing.
func (r *Repo) Add(ctx context.Context, userID, name string, items []media.Persisted) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlists(user_id, name) VALUES (?,?)`, userID, name); err != nil {
		return err
	}
	row := tx.QueryRowContext(ctx,
		`SELECT id FROM playlists WHERE user_id=? AND name=?`, userID, name)
	var id int64
	if err := row.Scan(&id); err != nil {
		return err
	}
	row = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position)+1, 0) FROM playlist_tracks WHERE playlist_id=?`, id)
	var next int
	if err := row.Scan(&next); err != nil {
		return err
	}
	if err := insertTracks(ctx, tx, id, next, items); err != nil {
		return err
	}
	return tx.Commit()
}

// Remove drops the entry at index, or the whole playlist when index is nil.
// Positions of the remaining entries are compacted.
func (r *Repo) Remove(ctx context.Context, userID, name string, index *int) error {
	id, err := r.playlistID(ctx, userID, name)
	if err != nil {
		return err
	}
	if index == nil {
		_, err := r.db.ExecContext(ctx, `DELETE FROM playlists WHERE id=?`, id)
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM playlist_tracks WHERE playlist_id=? AND position=?`, id, *index)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no track at position %d", *index)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE playlist_tracks SET position = position - 1 WHERE playlist_id=? AND position > ?`,
		id, *index); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTracks(ctx context.Context, tx *sql.Tx, playlistID int64, startPos int, items []media.Persisted) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks(playlist_id, position, kind, locator, title, duration, requester_id, requester_name)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range items {
		if _, err := stmt.ExecContext(ctx, playlistID, startPos+i,
			p.Kind, p.Locator, p.Title, p.Duration, p.RequesterID, p.RequesterName); err != nil {
			return err
		}
	}
	return nil
}
