package audio

import (
	"errors"
	"math/rand/v2"
)

var (
	ErrQueueFull       = errors.New("queue is full")
	ErrInvalidPosition = errors.New("invalid queue position")
	ErrTooFewToShuffle = errors.New("not enough songs to shuffle")
)

// QueueEntry is a read-only view of one queued song.
type QueueEntry struct {
	Title     string
	Reference string
	AddedBy   AddedBy
}

// Append adds song to the tail of the queue.
func (g *GuildState) Append(song *Song) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) >= g.limit {
		return ErrQueueFull
	}
	g.queue = append(g.queue, song)
	return nil
}

// AppendMany appends songs in order until the queue is full and returns how
// many were added.
func (g *GuildState) AppendMany(songs []*Song) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	added := 0
	for _, s := range songs {
		if len(g.queue) >= g.limit {
			break
		}
		g.queue = append(g.queue, s)
		added++
	}
	return added
}

// RemoveAt removes the song at the 1-based position.
func (g *GuildState) RemoveAt(position int) (*Song, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if position < 1 || position > len(g.queue) {
		return nil, ErrInvalidPosition
	}
	i := position - 1
	removed := g.queue[i]
	g.queue = append(g.queue[:i], g.queue[i+1:]...)
	return removed, nil
}

// Clear empties the queue and returns how many songs were dropped.
func (g *GuildState) Clear() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.queue)
	g.queue = g.queue[:0]
	return n
}

func (g *GuildState) Shuffle() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) < 2 {
		return ErrTooFewToShuffle
	}
	rand.Shuffle(len(g.queue), func(i, j int) {
		g.queue[i], g.queue[j] = g.queue[j], g.queue[i]
	})
	return nil
}

// DropAutoplayEntries removes every autoplay-sourced song so that a user
// request is played next. It returns the number removed.
func (g *GuildState) DropAutoplayEntries() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	kept := g.queue[:0]
	for _, s := range g.queue {
		if s.AddedBy != AddedByAutoplay {
			kept = append(kept, s)
		}
	}
	dropped := len(g.queue) - len(kept)
	for i := len(kept); i < len(g.queue); i++ {
		g.queue[i] = nil
	}
	g.queue = kept
	return dropped
}

func (g *GuildState) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.queue)
}

// Snapshot copies the queue in play order for display.
func (g *GuildState) Snapshot() []QueueEntry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]QueueEntry, len(g.queue))
	for i, s := range g.queue {
		out[i] = QueueEntry{Title: s.Title, Reference: s.Reference, AddedBy: s.AddedBy}
	}
	return out
}
