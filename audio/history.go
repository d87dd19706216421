package audio

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// PlayedHistory remembers the most recently played video ids, oldest evicted
// first. It is only used to steer autoplay away from repeats.
type PlayedHistory struct {
	ids *lru.Cache[string, struct{}]
}

func NewPlayedHistory(size int) *PlayedHistory {
	if size < 1 {
		size = 1
	}
	ids, _ := lru.New[string, struct{}](size)
	return &PlayedHistory{ids: ids}
}

// Add records id as the most recent entry. Re-adding an id refreshes it.
func (h *PlayedHistory) Add(id string) {
	if id == "" {
		return
	}
	h.ids.Add(id, struct{}{})
}

func (h *PlayedHistory) Contains(id string) bool {
	return h.ids.Contains(id)
}

// IDs returns the history from oldest to newest.
func (h *PlayedHistory) IDs() []string {
	return h.ids.Keys()
}

func (h *PlayedHistory) Len() int {
	return h.ids.Len()
}
