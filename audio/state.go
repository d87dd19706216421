package audio

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

type LoopMode int

const (
	LoopOff LoopMode = iota
	LoopCurrent
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopCurrent:
		return "current"
	case LoopQueue:
		return "queue"
	default:
		return "off"
	}
}

var ErrInvalidLoopMode = errors.New("loop mode must be off, current or queue")

func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return LoopOff, nil
	case "current":
		return LoopCurrent, nil
	case "queue":
		return LoopQueue, nil
	}
	return LoopOff, fmt.Errorf("%w: %q", ErrInvalidLoopMode, s)
}

// GuildState is the playback record of one guild.
//
// advance serializes the pop -> prepare -> play sequence. mu guards every
// field below it and is only ever held for short, non-blocking sections, so
// readers always observe a state between two complete updates.
type GuildState struct {
	GuildID string

	advance *semaphore.Weighted

	mu       sync.RWMutex
	queue    []*Song
	current  *Song
	playing  bool
	autoplay bool
	loopMode LoopMode
	history  *PlayedHistory
	limit    int
}

func newGuildState(guildID string, limit, historySize int) *GuildState {
	return &GuildState{
		GuildID:  guildID,
		advance:  semaphore.NewWeighted(1),
		queue:    make([]*Song, 0, limit),
		autoplay: true,
		loopMode: LoopOff,
		history:  NewPlayedHistory(historySize),
		limit:    limit,
	}
}

func (g *GuildState) IsPlaying() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.playing
}

func (g *GuildState) CurrentSong() *Song {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

func (g *GuildState) AutoplayEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.autoplay
}

func (g *GuildState) SetAutoplay(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoplay = enabled
}

func (g *GuildState) LoopMode() LoopMode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loopMode
}

func (g *GuildState) SetLoopMode(mode LoopMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loopMode = mode
}

// History returns the played ids, oldest first.
func (g *GuildState) History() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.history.IDs()
}

func (g *GuildState) Limit() int {
	return g.limit
}

func (g *GuildState) setPlaying(song *Song) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = song
	g.playing = true
}

func (g *GuildState) setIdle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = nil
	g.playing = false
}

func (g *GuildState) popHead() *Song {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return nil
	}
	song := g.queue[0]
	g.queue[0] = nil
	g.queue = g.queue[1:]
	return song
}

func (g *GuildState) head() *Song {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.queue) == 0 {
		return nil
	}
	return g.queue[0]
}

// finish records a played song and re-queues it according to the loop mode.
// It reports whether the song was re-queued; a full queue drops the repeat.
func (g *GuildState) finish(song *Song) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := song.ID(); ok {
		g.history.Add(id)
	}
	if len(g.queue) >= g.limit {
		return false
	}
	switch g.loopMode {
	case LoopCurrent:
		g.queue = append([]*Song{song}, g.queue...)
	case LoopQueue:
		g.queue = append(g.queue, song)
	default:
		return false
	}
	return true
}

// discard records a song that failed during playback without re-queueing it.
func (g *GuildState) discard(song *Song) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := song.ID(); ok {
		g.history.Add(id)
	}
}

// excludedIDs is the set autoplay must not pick from: everything queued, the
// recent history and the current song.
func (g *GuildState) excludedIDs() map[string]struct{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make(map[string]struct{}, len(g.queue)+g.history.Len()+1)
	for _, s := range g.queue {
		if id, ok := s.ID(); ok {
			ids[id] = struct{}{}
		}
	}
	for _, id := range g.history.IDs() {
		ids[id] = struct{}{}
	}
	if g.current != nil {
		if id, ok := g.current.ID(); ok {
			ids[id] = struct{}{}
		}
	}
	return ids
}
