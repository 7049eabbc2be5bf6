// Package sound lists the local soundboard files.
package sound

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/iz7n/music-discord-bot/internal/utils"
)

var ErrUnknownSound = errors.New("unknown sound")

type Board struct {
	dir string
}

func NewBoard(dir string) *Board {
	return &Board{dir: dir}
}

// Names returns the sound names (file names without the .ogg suffix).
func (b *Board) Names() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".ogg") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".ogg"))
	}
	return names, nil
}

// RandomNames returns up to n sound names in random order, for the button
// panel.
func (b *Board) RandomNames(n int) ([]string, error) {
	names, err := b.Names()
	if err != nil {
		return nil, err
	}
	utils.ShuffleSlice(names)
	if len(names) > n {
		names = names[:n]
	}
	return names, nil
}

// Path returns the file path for a sound name, verifying it exists.
func (b *Board) Path(name string) (string, error) {
	if name != filepath.Base(name) {
		return "", ErrUnknownSound
	}
	p := filepath.Join(b.dir, name+".ogg")
	if _, err := os.Stat(p); err != nil {
		return "", ErrUnknownSound
	}
	return p, nil
}
