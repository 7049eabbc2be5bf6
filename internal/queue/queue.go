// Package queue holds the ordered play queue. The queue has no notion of a
// current track; the most recently dequeued item is tracked by the player.
package queue

import (
	"errors"
	"sort"
	"sync"

	"github.com/iz7n/music-discord-bot/internal/media"
	"github.com/iz7n/music-discord-bot/internal/utils"
)

var ErrIndexOutOfRange = errors.New("queue index out of range")

type Queue struct {
	mu       sync.Mutex
	items    []media.Media
	loop     bool
	onChange func()
}

func New() *Queue {
	return &Queue{}
}

// SetOnChange registers an observer called after every mutation. Presentation
// only; correctness never depends on it.
func (q *Queue) SetOnChange(fn func()) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

func (q *Queue) notify(fn func()) {
	if fn != nil {
		fn()
	}
}

// Enqueue appends medias to the tail, preserving call order.
func (q *Queue) Enqueue(medias ...media.Media) {
	if len(medias) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, medias...)
	fn := q.onChange
	q.mu.Unlock()
	q.notify(fn)
}

// EnqueueNow inserts medias at the head so they play next, keeping both the
// batch's order and the relative order of everything already queued.
func (q *Queue) EnqueueNow(medias ...media.Media) {
	if len(medias) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(append([]media.Media{}, medias...), q.items...)
	fn := q.onChange
	q.mu.Unlock()
	q.notify(fn)
}

// Next removes and returns the head item.
func (q *Queue) Next() (media.Media, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return media.Media{}, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	fn := q.onChange
	q.mu.Unlock()
	q.notify(fn)
	return m, true
}

func (q *Queue) Shuffle() {
	q.mu.Lock()
	utils.ShuffleSlice(q.items)
	fn := q.onChange
	q.mu.Unlock()
	q.notify(fn)
}

// Move relocates the item at from to position to, shifting items in between.
func (q *Queue) Move(from, to int) error {
	q.mu.Lock()
	if from < 0 || from >= len(q.items) || to < 0 || to >= len(q.items) {
		q.mu.Unlock()
		return ErrIndexOutOfRange
	}
	item := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items[:to], append([]media.Media{item}, q.items[to:]...)...)
	fn := q.onChange
	q.mu.Unlock()
	q.notify(fn)
	return nil
}

// Remove deletes the given logical positions as they existed before the call.
// Indices are processed highest to lowest so earlier removals cannot shift the
// meaning of later ones; duplicates and out-of-range values are ignored.
// Returns the number of items removed.
func (q *Queue) Remove(indices ...int) int {
	q.mu.Lock()
	sorted := append([]int{}, indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	removed := 0
	prev := -1
	for _, i := range sorted {
		if i == prev {
			continue
		}
		prev = i
		if i < 0 || i >= len(q.items) {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		removed++
	}
	fn := q.onChange
	q.mu.Unlock()
	if removed > 0 {
		q.notify(fn)
	}
	return removed
}

// Clear empties the queue and returns how many items were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = nil
	fn := q.onChange
	q.mu.Unlock()
	if n > 0 {
		q.notify(fn)
	}
	return n
}

// Medias returns a read-only snapshot of the queued items.
func (q *Queue) Medias() []media.Media {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]media.Media, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Loop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loop
}

func (q *Queue) ToggleLoop() bool {
	q.mu.Lock()
	q.loop = !q.loop
	v := q.loop
	fn := q.onChange
	q.mu.Unlock()
	q.notify(fn)
	return v
}

func (q *Queue) SetLoop(v bool) {
	q.mu.Lock()
	q.loop = v
	q.mu.Unlock()
}
